// Showreel - Movie Recommendations with Poster Resolution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/showreel

// Package catalog holds the movie catalog and its precomputed item-item
// similarity matrix, and answers top-K similarity queries against them.
//
// Both artifacts are produced by an offline pipeline and are read-only
// after load: an ordered item list and a dense square matrix aligned to
// that ordering by position. Queries are served lock-free because nothing
// is mutated after New returns.
package catalog

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/goccy/go-json"
)

// Errors returned by catalog loading and queries.
var (
	// ErrTitleNotFound indicates the queried title is not in the catalog.
	ErrTitleNotFound = errors.New("title not found in catalog")

	// ErrInvalidK indicates a top-K request outside the valid range.
	ErrInvalidK = errors.New("k out of range")

	// ErrMatrixShape indicates the similarity matrix does not match the
	// catalog size on both axes.
	ErrMatrixShape = errors.New("similarity matrix shape does not match catalog")

	// ErrDuplicateTitle indicates two catalog items share a title.
	// Titles are the lookup key for selection, so they must be unique.
	ErrDuplicateTitle = errors.New("duplicate title in catalog")
)

// MissingInputError indicates neither the plain nor the compressed form
// of a required input artifact exists.
type MissingInputError struct {
	PlainPath      string
	CompressedPath string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("missing input: neither %s nor %s exists", e.PlainPath, e.CompressedPath)
}

// Item is a single catalog entry. Identity is ID; Title is the
// user-facing selection key and is unique within the catalog.
type Item struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// RankedItem is a catalog item paired with its similarity score to a
// queried item.
type RankedItem struct {
	Item  Item    `json:"item"`
	Score float64 `json:"score"`
}

// Index holds the catalog and similarity matrix and answers top-K
// queries. Construct with New; immutable afterwards.
type Index struct {
	items   []Item
	byTitle map[string]int
	matrix  [][]float64
}

// New builds an Index from an ordered item list and a dense square
// similarity matrix aligned to it positionally.
func New(items []Item, matrix [][]float64) (*Index, error) {
	if len(matrix) != len(items) {
		return nil, fmt.Errorf("%w: %d items, %d matrix rows", ErrMatrixShape, len(items), len(matrix))
	}
	for i, row := range matrix {
		if len(row) != len(items) {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrMatrixShape, i, len(row), len(items))
		}
	}

	byTitle := make(map[string]int, len(items))
	for i, item := range items {
		if _, exists := byTitle[item.Title]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateTitle, item.Title)
		}
		byTitle[item.Title] = i
	}

	return &Index{items: items, byTitle: byTitle, matrix: matrix}, nil
}

// Load reads the catalog and similarity artifacts from disk and builds
// an Index. Each path is tried raw and with a ".gz" suffix.
func Load(itemsPath, matrixPath string) (*Index, error) {
	var items []Item
	if err := loadJSON(itemsPath, &items); err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	var matrix [][]float64
	if err := loadJSON(matrixPath, &matrix); err != nil {
		return nil, fmt.Errorf("load similarity matrix: %w", err)
	}

	return New(items, matrix)
}

// TopK returns the k items most similar to the given title, descending
// by similarity score, excluding the queried item itself. Ties are
// broken by ascending catalog index so results are deterministic.
//
// Valid k is 1 <= k <= len(catalog)-2; anything else returns ErrInvalidK.
func (x *Index) TopK(title string, k int) ([]RankedItem, error) {
	if k < 1 || k > len(x.items)-2 {
		return nil, fmt.Errorf("%w: k=%d with catalog size %d", ErrInvalidK, k, len(x.items))
	}

	// Look up by title, not by any caller-supplied index: the matrix row
	// is only meaningful for the position the title occupies.
	idx, ok := x.byTitle[title]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTitleNotFound, title)
	}

	row := x.matrix[idx]
	candidates := make([]int, 0, len(x.items)-1)
	for i := range x.items {
		if i != idx {
			candidates = append(candidates, i)
		}
	}

	// Stable sort keeps ascending-index order for equal scores.
	sort.SliceStable(candidates, func(a, b int) bool {
		return row[candidates[a]] > row[candidates[b]]
	})

	ranked := make([]RankedItem, k)
	for i := 0; i < k; i++ {
		c := candidates[i]
		ranked[i] = RankedItem{Item: x.items[c], Score: row[c]}
	}
	return ranked, nil
}

// Titles returns all catalog titles in catalog order, for selection UIs.
func (x *Index) Titles() []string {
	titles := make([]string, len(x.items))
	for i, item := range x.items {
		titles[i] = item.Title
	}
	return titles
}

// Len returns the catalog size.
func (x *Index) Len() int {
	return len(x.items)
}

// loadJSON decodes a JSON artifact from path or path+".gz", whichever
// exists, decompressing transparently. The compressed variant is
// preferred when both are present.
func loadJSON(path string, v interface{}) error {
	gzPath := path + ".gz"

	if f, err := os.Open(gzPath); err == nil {
		defer func() { _ = f.Close() }()
		zr, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("open gzip %s: %w", gzPath, err)
		}
		defer func() { _ = zr.Close() }()
		return decodeJSON(zr, gzPath, v)
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &MissingInputError{PlainPath: path, CompressedPath: gzPath}
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return decodeJSON(f, path, v)
}

func decodeJSON(r io.Reader, name string, v interface{}) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}
