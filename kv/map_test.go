package kv

import (
	"sort"
	"testing"
	"time"

	"github.com/oysterdb/oysterd/clock"
)

func TestBasicRoundTrip(t *testing.T) {
	m := New(clock.System{})
	m.Insert("hello", "world")

	v, ok := m.Get("hello")
	if !ok || v != "world" {
		t.Fatalf("expected (world, true), got (%q, %v)", v, ok)
	}

	m.Remove("hello")
	if _, ok := m.Get("hello"); ok {
		t.Fatal("expected Get to miss after Remove")
	}
}

func TestIncrementSaturation(t *testing.T) {
	m := New(clock.System{})
	m.Insert("n", "0")

	if ok, err := m.Decr("n"); err != nil || !ok {
		t.Fatalf("unexpected decr result: ok=%v err=%v", ok, err)
	}
	if v, _ := m.Get("n"); v != "0" {
		t.Fatalf("expected decr of 0 to saturate at 0, got %q", v)
	}

	if ok, err := m.Incr("n"); err != nil || !ok {
		t.Fatalf("unexpected incr result: ok=%v err=%v", ok, err)
	}
	if v, _ := m.Get("n"); v != "1" {
		t.Fatalf("expected 1 after incr, got %q", v)
	}
}

func TestDecrNeverUnderflows(t *testing.T) {
	m := New(clock.System{})
	m.Insert("n", "0")
	for i := 0; i < 5; i++ {
		m.Decr("n")
	}
	if v, _ := m.Get("n"); v != "0" {
		t.Fatalf("expected repeated decr from 0 to stay 0, got %q", v)
	}
}

func TestIncrOnAbsentKeyIsNoop(t *testing.T) {
	m := New(clock.System{})
	ok, err := m.Incr("missing")
	if ok || err != nil {
		t.Fatalf("expected (false, nil) for incr on absent key, got (%v, %v)", ok, err)
	}
	if _, ok := m.Get("missing"); ok {
		t.Fatal("incr on absent key must not create it")
	}
}

func TestPrefixAndSuffixFilter(t *testing.T) {
	m := New(clock.System{})
	m.Insert("user:1", "a")
	m.Insert("user:2", "b")
	m.Insert("admin:1", "c")

	prefixKeys := sortedKeys(m.FilterKeys("user*"))
	wantPrefix := []string{"user:1", "user:2"}
	if !equalStrings(prefixKeys, wantPrefix) {
		t.Fatalf("expected %v, got %v", wantPrefix, prefixKeys)
	}

	suffixKeys := sortedKeys(m.FilterKeys("*:1"))
	wantSuffix := []string{"admin:1", "user:1"}
	if !equalStrings(suffixKeys, wantSuffix) {
		t.Fatalf("expected %v, got %v", wantSuffix, suffixKeys)
	}
}

func TestFilterStarMatchesEverything(t *testing.T) {
	m := New(clock.System{})
	m.Insert("a", "1")
	m.Insert("b", "2")

	keys := sortedKeys(m.FilterKeys("*"))
	if !equalStrings(keys, []string{"a", "b"}) {
		t.Fatalf("expected every key to match \"*\", got %v", keys)
	}
}

func TestLiveCountTracksInsertsAndRemoves(t *testing.T) {
	m := New(clock.System{})
	m.Insert("a", "1")
	m.Insert("b", "2")
	m.Insert("c", "3")
	m.Remove("b")

	if m.Len() != 2 {
		t.Fatalf("expected live count 2, got %d", m.Len())
	}
}

func TestEmptyValueInsert(t *testing.T) {
	m := New(clock.System{})
	m.Insert("k", "")
	v, ok := m.Get("k")
	if !ok || v != "" {
		t.Fatalf("expected empty string value, got %q ok=%v", v, ok)
	}
}

func TestFreshnessScanRemovesStaleRecords(t *testing.T) {
	base := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	c := clock.Fixed(base)
	m := New(c)

	staleUsed := c.NowMillis() - MaxAgeMillis - 1
	m.InsertFull("k", "v", Descriptor{Used: staleUsed})
	m.InsertFull("fresh", "v", Descriptor{Used: c.NowMillis()})

	m.Scan()

	if _, ok := m.Get("k"); ok {
		t.Fatal("expected stale record to be removed by Scan")
	}
	if _, ok := m.Get("fresh"); !ok {
		t.Fatal("expected fresh record to survive Scan")
	}
}

func TestScanLeavesNoRecordOlderThanMaxAge(t *testing.T) {
	c := clock.Fixed(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))
	m := New(c)
	now := c.NowMillis()

	for i := uint64(0); i < 10; i++ {
		age := i * (MaxAgeMillis / 5)
		used := uint64(0)
		if now > age {
			used = now - age
		}
		m.InsertFull(string(rune('a'+i)), "v", Descriptor{Used: used})
	}
	m.Scan()

	for _, kr := range m.Filter("*") {
		if now-kr.Record.Descriptor.Used > MaxAgeMillis {
			t.Fatalf("record %q has age %d > MaxAgeMillis after scan", kr.Key, now-kr.Record.Descriptor.Used)
		}
	}
}

func TestTryRefreshToleratesMissingKey(t *testing.T) {
	m := New(clock.System{})
	m.TryRefresh("nope") // must not panic
}

func TestUpdateUsedPanicsOnMissingKey(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected UpdateUsed on missing key to panic")
		}
	}()
	m := New(clock.System{})
	m.UpdateUsed("missing")
}

func sortedKeys(keys []string) []string {
	out := append([]string(nil), keys...)
	sort.Strings(out)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
