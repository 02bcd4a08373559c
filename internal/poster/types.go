// Showreel - Movie Recommendations with Poster Resolution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/showreel

package poster

// Outcome classifies how a poster fetch resolved.
type Outcome int

const (
	// OutcomeHit means the cache already held a resolved entry (present
	// or absent) and no remote call was made.
	OutcomeHit Outcome = iota
	// OutcomeFetched means a remote lookup completed and resolved the
	// key, either to a URL or to a definitive "no poster exists".
	OutcomeFetched
	// OutcomeFailedPermanent means all attempts were exhausted; the key
	// is cached as resolved-absent so it is not retried on every call.
	OutcomeFailedPermanent
)

// String returns a human-readable outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeHit:
		return "hit"
	case OutcomeFetched:
		return "fetched"
	case OutcomeFailedPermanent:
		return "failed_permanent"
	default:
		return "unknown"
	}
}

// FetchResult is the resolution of a single poster lookup.
// URL is nil when the key resolved absent or the fetch failed.
type FetchResult struct {
	ItemID  int     `json:"item_id"`
	URL     *string `json:"url"`
	Outcome Outcome `json:"outcome"`
}
