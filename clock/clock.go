// Package clock returns milliseconds elapsed since a fixed epoch, the
// unit every freshness descriptor in this module is stamped with.
package clock

import "time"

// EpochYear is the fixed reference point every timestamp in this module
// is measured from (2025-01-01 00:00:00 UTC).
const EpochYear = 2025

var epochStart = time.Date(EpochYear, time.January, 1, 0, 0, 0, 0, time.UTC)

// Clock returns the current time as milliseconds since EpochYear.
type Clock interface {
	NowMillis() uint64
}

// System is the production Clock, backed by time.Now.
type System struct{}

// NowMillis returns milliseconds elapsed since EpochYear.
func (System) NowMillis() uint64 {
	return uint64(time.Since(epochStart).Milliseconds())
}

// fixed is a Clock pinned to a single instant, used in tests so that
// freshness-scan behavior doesn't depend on wall-clock timing.
type fixed struct {
	at time.Time
}

// Fixed returns a Clock that always reports at as the current instant.
func Fixed(at time.Time) Clock {
	return fixed{at: at}
}

func (f fixed) NowMillis() uint64 {
	return uint64(f.at.Sub(epochStart).Milliseconds())
}
