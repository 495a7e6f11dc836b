package kv

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/oysterdb/oysterd/clock"
)

// Map is the primary key→Record data structure: a Go map under the
// hood (spec.md §9 picks the hash-map backend as the simplest one that
// matches the HTTP semantics exactly; PagedStore in package pagestore
// offers the PageBook-backed alternative as its own library).
//
// Map is not internally synchronized. The guard package wraps it with
// a single reader/writer lock; readers proceed concurrently, writers
// exclude all others (spec.md §5).
type Map struct {
	clock   clock.Clock
	records map[string]Record
}

// New creates an empty Map that stamps freshness using c.
func New(c clock.Clock) *Map {
	return &Map{clock: c, records: make(map[string]Record)}
}

// Len returns the number of records currently stored.
func (m *Map) Len() int { return len(m.records) }

// Insert installs value under key with a fresh Descriptor, replacing
// any existing Record for the key.
func (m *Map) Insert(key, value string) {
	m.records[key] = NewRecord(value, m.clock.NowMillis())
}

// InsertFull installs value and descriptor verbatim, used by restore to
// reinstall Records without resetting their freshness (spec.md §4.5).
func (m *Map) InsertFull(key string, value string, descriptor Descriptor) {
	m.records[key] = Record{Value: value, Descriptor: descriptor}
}

// Get returns the value for key without any side effect. The HTTP
// frontend is responsible for refreshing freshness after a successful
// Get (spec.md §4.2) — Map itself never does.
func (m *Map) Get(key string) (string, bool) {
	r, ok := m.records[key]
	if !ok {
		return "", false
	}
	return r.Value, true
}

// GetFull is Get, additionally returning the freshness Descriptor.
func (m *Map) GetFull(key string) (Record, bool) {
	r, ok := m.records[key]
	return r, ok
}

// UpdateUsed stamps key's Descriptor with the current time. The caller
// guarantees key exists; a missing key is a programmer error and
// panics (spec.md §7, MissingDescriptor) — callers that cannot make
// that guarantee (like the HTTP freshness-refresh race, spec.md §9)
// must check Get first and tolerate absence themselves rather than
// calling this blindly.
func (m *Map) UpdateUsed(key string) {
	r, ok := m.records[key]
	if !ok {
		panic(fmt.Sprintf("kv: UpdateUsed called on missing key %q", key))
	}
	r.Descriptor.Used = m.clock.NowMillis()
	m.records[key] = r
}

// TryRefresh stamps key's Descriptor with the current time if key is
// still present, and is a silent no-op otherwise. This is the tightened
// version of the freshness refresh spec.md §9 calls for: unlike
// UpdateUsed, it tolerates the key having been removed between the
// read that triggered the refresh and the refresh itself.
func (m *Map) TryRefresh(key string) {
	r, ok := m.records[key]
	if !ok {
		return
	}
	r.Descriptor.Used = m.clock.NowMillis()
	m.records[key] = r
}

// Incr parses the current value as a nonnegative integer and stores it
// incremented by one. A missing key is a no-op that returns false. A
// value that fails to parse (spec.md §7, ParseFailure) returns an error
// instead of panicking, since unlike MissingDescriptor this can be
// triggered by external input (a prior Insert of a non-numeric value)
// rather than caller misuse.
func (m *Map) Incr(key string) (bool, error) {
	r, ok := m.records[key]
	if !ok {
		return false, nil
	}
	n, err := strconv.ParseUint(r.Value, 10, 64)
	if err != nil {
		return false, fmt.Errorf("kv: incr %q: value %q is not a nonnegative integer: %w", key, r.Value, err)
	}
	m.Insert(key, strconv.FormatUint(n+1, 10))
	return true, nil
}

// Decr is Incr's mirror, saturating at zero rather than underflowing.
func (m *Map) Decr(key string) (bool, error) {
	r, ok := m.records[key]
	if !ok {
		return false, nil
	}
	n, err := strconv.ParseUint(r.Value, 10, 64)
	if err != nil {
		return false, fmt.Errorf("kv: decr %q: value %q is not a nonnegative integer: %w", key, r.Value, err)
	}
	if n > 0 {
		n--
	}
	m.Insert(key, strconv.FormatUint(n, 10))
	return true, nil
}

// Remove deletes key, returning the Record that was present (if any).
func (m *Map) Remove(key string) (Record, bool) {
	r, ok := m.records[key]
	if ok {
		delete(m.records, key)
	}
	return r, ok
}

// Filter matches keys against pattern: a pattern beginning with "*"
// matches by suffix (the asterisk stripped), any other pattern —
// including one ending in "*", or containing no asterisk at all —
// matches by prefix with every asterisk stripped. Result order is
// unspecified (spec.md §4.2).
func (m *Map) Filter(pattern string) []KeyRecord {
	suffix := strings.HasPrefix(pattern, "*")
	bare := strings.ReplaceAll(pattern, "*", "")

	out := make([]KeyRecord, 0)
	for k, r := range m.records {
		if suffix {
			if strings.HasSuffix(k, bare) {
				out = append(out, KeyRecord{Key: k, Record: r})
			}
		} else if strings.HasPrefix(k, bare) {
			out = append(out, KeyRecord{Key: k, Record: r})
		}
	}
	return out
}

// FilterKeys is Filter, returning only the matching keys.
func (m *Map) FilterKeys(pattern string) []string {
	matches := m.Filter(pattern)
	out := make([]string, len(matches))
	for i, kr := range matches {
		out[i] = kr.Key
	}
	return out
}

// Scan removes every Record whose freshness is older than MaxAgeMillis
// (spec.md §4.3). It is a single linear pass; the guard package holds
// the writer lock for its entire duration.
func (m *Map) Scan() {
	now := m.clock.NowMillis()
	for k, r := range m.records {
		if r.Stale(now) {
			delete(m.records, k)
		}
	}
}

// Snapshot returns every (key, value, used) triple currently in the
// Map, used by the snapshot package to dump without holding the Map's
// lock during disk I/O (spec.md §5).
func (m *Map) Snapshot() []Triple {
	out := make([]Triple, 0, len(m.records))
	for k, r := range m.records {
		out = append(out, Triple{Key: k, Value: r.Value, Used: r.Descriptor.Used})
	}
	return out
}

// KeyRecord pairs a key with its Record, returned by Filter.
type KeyRecord struct {
	Key    string
	Record Record
}

// Triple is the flattened (key, value, used) form used for snapshotting.
type Triple struct {
	Key   string
	Value string
	Used  uint64
}
