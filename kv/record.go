// Package kv implements the logical key-value Map: a value paired with
// a freshness descriptor, a freshness scan that expires stale records,
// and the prefix/suffix filtering used by both the HTTP and CLI
// frontends. Map itself holds no lock — the guard package wraps it with
// the single reader/writer lock spec.md §5 calls for.
package kv

// Descriptor carries the single freshness field every Record is tagged
// with: milliseconds since clock.EpochYear of the last successful read
// or insert.
type Descriptor struct {
	Used uint64
}

// Record pairs a logical value with its freshness Descriptor.
type Record struct {
	Value      string
	Descriptor Descriptor
}

// NewRecord builds a Record stamped with now as its freshness.
func NewRecord(value string, now uint64) Record {
	return Record{Value: value, Descriptor: Descriptor{Used: now}}
}

// MaxAgeMillis is the global freshness policy: a Record older than this
// many milliseconds since its last use is stale (spec.md §4.3 — seven
// days).
const MaxAgeMillis uint64 = 604_800_000

// Stale reports whether the Record is older than MaxAgeMillis as of now.
func (r Record) Stale(now uint64) bool {
	return now-r.Descriptor.Used > MaxAgeMillis
}
