package httpapi

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/oysterdb/oysterd/clock"
	"github.com/oysterdb/oysterd/guard"
	"github.com/oysterdb/oysterd/kv"
)

func newTestServer(t *testing.T) (*Server, *guard.Store) {
	t.Helper()
	store := guard.New(kv.New(clock.System{}))
	dumpPath := filepath.Join(t.TempDir(), "dump.db")
	return New(store, zap.NewNop(), dumpPath), store
}

func TestGetMissingKeyReturns404(t *testing.T) {
	s, _ := newTestServer(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	s.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestInsertThenGetRoundTrip(t *testing.T) {
	s, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/hello", strings.NewReader("world"))
	s.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 on insert, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/hello", nil)
	s.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || rr.Body.String() != "world" {
		t.Fatalf("expected (200, world), got (%d, %q)", rr.Code, rr.Body.String())
	}
}

func TestGetRefreshesFreshness(t *testing.T) {
	s, store := newTestServer(t)
	store.InsertFull("k", "v", kv.Descriptor{Used: 0})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/k", nil)
	s.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rec, ok := store.GetFull("k")
	if !ok {
		t.Fatal("expected key to still be present")
	}
	if rec.Descriptor.Used == 0 {
		t.Fatal("expected GET to have refreshed the freshness descriptor")
	}
}

func TestDeleteReturns200EvenForMissingKey(t *testing.T) {
	s, _ := newTestServer(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/missing", nil)
	s.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestIncrAndDecr(t *testing.T) {
	s, store := newTestServer(t)
	store.Insert("n", "1")

	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/_incr/n", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 on incr, got %d", rr.Code)
	}
	if v, _ := store.Get("n"); v != "2" {
		t.Fatalf("expected 2 after incr, got %q", v)
	}

	rr = httptest.NewRecorder()
	s.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/_decr/n", nil))
	if v, _ := store.Get("n"); v != "1" {
		t.Fatalf("expected 1 after decr, got %q", v)
	}
}

func TestFilterReturnsExpectedShape(t *testing.T) {
	s, store := newTestServer(t)
	store.Insert("user:1", "a")
	store.Insert("user:2", "b")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/_filter", strings.NewReader("user*"))
	s.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `"used"`) {
		t.Fatalf("expected filter response to include a used field, got %s", body)
	}
}

func TestFilterKeysReturnsJSONArray(t *testing.T) {
	s, store := newTestServer(t)
	store.Insert("a", "1")
	store.Insert("b", "2")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/_filter/keys", strings.NewReader("*"))
	s.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "a") || !strings.Contains(rr.Body.String(), "b") {
		t.Fatalf("expected both keys present, got %s", rr.Body.String())
	}
}

func TestDumpRespondsImmediatelyWithStartedMessage(t *testing.T) {
	s, store := newTestServer(t)
	store.Insert("k", "v")

	done := make(chan struct{})
	s.onDumpDone = func(error) { close(done) }

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/_dump", nil)
	s.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK || rr.Body.String() != "Data dump in started" {
		t.Fatalf("expected (200, \"Data dump in started\"), got (%d, %q)", rr.Code, rr.Body.String())
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected background dump to complete")
	}
}

func TestScanBlocksUntilComplete(t *testing.T) {
	s, store := newTestServer(t)
	store.InsertFull("stale", "v", kv.Descriptor{Used: 0})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/_scan", nil)
	s.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if _, ok := store.Get("stale"); ok {
		t.Fatal("expected scan to have removed the stale record before responding")
	}
}
