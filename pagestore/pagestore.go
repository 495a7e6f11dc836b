// Package pagestore is the PageBook-backed alternate to kv.Map
// (spec.md §2, "PagedStore (optional alternate backend)"): the same
// logical insert/get/incr/decr/remove/filter/scan contract as kv.Map,
// but every key and value lives as UTF-8 bytes inside a
// pagebook.PageBook instead of a Go map.
//
// PagedStore is not wired as the default Map backend — spec.md §9
// recommends the hash-map backend for that — but it is a complete,
// independently tested library for callers who need PageBook's
// page-granular memory layout end to end. Memory is not bounded: the
// PageBook adds a page whenever no existing page has room for a record.
package pagestore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/oysterdb/oysterd/clock"
	"github.com/oysterdb/oysterd/kv"
	"github.com/oysterdb/oysterd/pagebook"
)

// usedWidth is the fixed hex width of an encoded freshness timestamp,
// chosen so the descriptor suffix can always be sliced off the end of a
// stored value without scanning for a separator (see encodeStored).
const usedWidth = 16

// descriptorSuffixLen is the byte length of the "sep + hex" suffix
// appended to every stored value.
const descriptorSuffixLen = 1 + usedWidth

// Store is a PagedStore: a PageBook whose sentinel-framed records back
// sequential enumeration (Filter/Scan) via pagebook.PageBook.ForEach.
type Store struct {
	clock clock.Clock
	book  *pagebook.PageBook
}

// New creates a Store backed by a PageBook with the given initial page
// count and size.
func New(c clock.Clock, pages, pageSize int) *Store {
	return &Store{clock: c, book: pagebook.New(pages, pageSize)}
}

// encodeStored appends a fixed-width freshness suffix to value so it
// can be recovered by position alone, regardless of what bytes value
// itself contains.
func encodeStored(value string, used uint64) string {
	return value + "\x1f" + fmt.Sprintf("%0*x", usedWidth, used)
}

// decodeStored splits a stored payload back into (value, used). It
// panics if raw is shorter than the fixed suffix, which would indicate
// PageBook corruption rather than a user-reachable condition.
func decodeStored(raw string) (string, uint64) {
	if len(raw) < descriptorSuffixLen {
		panic("pagestore: stored value shorter than the descriptor suffix")
	}
	split := len(raw) - descriptorSuffixLen
	value := raw[:split]
	hex := raw[split+1:]
	used, err := strconv.ParseUint(hex, 16, 64)
	if err != nil {
		panic("pagestore: malformed descriptor suffix: " + err.Error())
	}
	return value, used
}

// Insert installs value under key with a fresh Descriptor, replacing
// any prior record for key (PageBook itself does not deduplicate, so
// Insert removes before writing, per spec.md §4.1's "Tie-breaks").
func (s *Store) Insert(key, value string) {
	s.book.Remove([]byte(key))
	s.book.Insert([]byte(key), []byte(encodeStored(value, s.clock.NowMillis())))
}

// InsertFull installs value and descriptor verbatim (used by restore).
func (s *Store) InsertFull(key, value string, descriptor kv.Descriptor) {
	s.book.Remove([]byte(key))
	s.book.Insert([]byte(key), []byte(encodeStored(value, descriptor.Used)))
}

// Get returns the value for key, without refreshing its freshness.
func (s *Store) Get(key string) (string, bool) {
	raw, ok := s.book.Get([]byte(key))
	if !ok {
		return "", false
	}
	value, _ := decodeStored(string(raw))
	return value, true
}

// GetFull is Get, additionally returning the freshness Descriptor.
func (s *Store) GetFull(key string) (kv.Record, bool) {
	raw, ok := s.book.Get([]byte(key))
	if !ok {
		return kv.Record{}, false
	}
	value, used := decodeStored(string(raw))
	return kv.Record{Value: value, Descriptor: kv.Descriptor{Used: used}}, true
}

// UpdateUsed re-stamps key's freshness to now. The key must exist.
func (s *Store) UpdateUsed(key string) {
	raw, ok := s.book.Get([]byte(key))
	if !ok {
		panic(fmt.Sprintf("pagestore: UpdateUsed called on missing key %q", key))
	}
	value, _ := decodeStored(string(raw))
	s.Insert(key, value)
}

// TryRefresh is UpdateUsed but tolerant of key having disappeared.
func (s *Store) TryRefresh(key string) {
	raw, ok := s.book.Get([]byte(key))
	if !ok {
		return
	}
	value, _ := decodeStored(string(raw))
	s.Insert(key, value)
}

// Incr parses the current value as a nonnegative integer and stores it
// incremented by one.
func (s *Store) Incr(key string) (bool, error) {
	v, ok := s.Get(key)
	if !ok {
		return false, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return false, fmt.Errorf("pagestore: incr %q: value %q is not a nonnegative integer: %w", key, v, err)
	}
	s.Insert(key, strconv.FormatUint(n+1, 10))
	return true, nil
}

// Decr is Incr's mirror, saturating at zero.
func (s *Store) Decr(key string) (bool, error) {
	v, ok := s.Get(key)
	if !ok {
		return false, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return false, fmt.Errorf("pagestore: decr %q: value %q is not a nonnegative integer: %w", key, v, err)
	}
	if n > 0 {
		n--
	}
	s.Insert(key, strconv.FormatUint(n, 10))
	return true, nil
}

// Remove deletes key, returning the Record that was present (if any).
func (s *Store) Remove(key string) (kv.Record, bool) {
	r, ok := s.GetFull(key)
	if ok {
		s.book.Remove([]byte(key))
	}
	return r, ok
}

// Filter matches keys against pattern using the same prefix/suffix
// rules as kv.Map.Filter.
func (s *Store) Filter(pattern string) []kv.KeyRecord {
	suffix := strings.HasPrefix(pattern, "*")
	bare := strings.ReplaceAll(pattern, "*", "")

	out := make([]kv.KeyRecord, 0)
	s.book.ForEach(func(keyBytes, valueBytes []byte) {
		key := string(keyBytes)
		matches := false
		if suffix {
			matches = strings.HasSuffix(key, bare)
		} else {
			matches = strings.HasPrefix(key, bare)
		}
		if !matches {
			return
		}
		value, used := decodeStored(string(valueBytes))
		out = append(out, kv.KeyRecord{Key: key, Record: kv.Record{Value: value, Descriptor: kv.Descriptor{Used: used}}})
	})
	return out
}

// FilterKeys is Filter, returning only the matching keys.
func (s *Store) FilterKeys(pattern string) []string {
	matches := s.Filter(pattern)
	out := make([]string, len(matches))
	for i, kr := range matches {
		out[i] = kr.Key
	}
	return out
}

// Scan removes every record older than kv.MaxAgeMillis.
func (s *Store) Scan() {
	now := s.clock.NowMillis()
	var stale [][]byte
	s.book.ForEach(func(key, valueBytes []byte) {
		_, used := decodeStored(string(valueBytes))
		if now-used > kv.MaxAgeMillis {
			stale = append(stale, append([]byte(nil), key...))
		}
	})
	for _, k := range stale {
		s.book.Remove(k)
	}
}

// Len returns the number of live records.
func (s *Store) Len() int { return s.book.Len() }
