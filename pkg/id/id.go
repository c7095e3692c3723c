// Package id mints position identifiers for live trading. Ids are
// ULIDs, so the trade journal sorts naturally by entry time even when
// several symbols fill in the same millisecond.
//
// Backtests bypass this package: replays must be reproducible, so the
// fill simulator assigns sequential ids instead.
package id

import "github.com/oklog/ulid/v2"

// New returns a fresh position id. Ids minted within the same
// millisecond stay lexicographically increasing, and the shared entropy
// source is safe for concurrent fills.
func New() string {
	return ulid.Make().String()
}
