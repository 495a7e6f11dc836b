// Package httpapi is the HTTP frontend adapter: it translates the
// routes in spec.md §6 into calls against a *guard.Store, handling the
// freshness-refresh race and the dump-in-flight guard the way spec.md
// §9 describes, and logs every request's outcome with zap, the way the
// teacher repo's cmd/server logs requests with the standard logger.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/oysterdb/oysterd/guard"
	"github.com/oysterdb/oysterd/snapshot"
)

// Server holds the dependencies every handler needs.
type Server struct {
	store      *guard.Store
	log        *zap.Logger
	dumpPath   string
	onDumpDone func(err error)
}

// New builds a Server. dumpPath is the SQLite file dumps are written
// to (snapshot.Path in production, a temp file in tests).
func New(store *guard.Store, log *zap.Logger, dumpPath string) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{store: store, log: log, dumpPath: dumpPath}
}

// Router builds the chi router implementing spec.md §6's HTTP surface.
// Fixed-prefix routes (`/_dump`, `/_scan`, `/_full/{key}`, ...) are
// registered before the bare `/{key}` wildcard so they are matched
// first, the ordering chi's own routing tree already guarantees for
// static-vs-wildcard segments.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/_dump", s.handleDump)
	r.Post("/_scan", s.handleScan)
	r.Get("/_full/{key}", s.handleGetFull)
	r.Post("/_filter", s.handleFilter)
	r.Post("/_filter/keys", s.handleFilterKeys)
	r.Post("/_incr/{key}", s.handleIncr)
	r.Post("/_decr/{key}", s.handleDecr)
	r.Get("/{key}", s.handleGet)
	r.Post("/{key}", s.handleInsert)
	r.Delete("/{key}", s.handleRemove)
	return r
}

func readBody(r *http.Request) (string, error) {
	b, err := io.ReadAll(r.Body)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// handleGet serves GET /{key}. A hit refreshes freshness under a
// second, independent lock acquisition (spec.md §9).
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	v, ok := s.store.Get(key)
	if !ok {
		s.log.Info("get", zap.String("key", key), zap.Int("status", http.StatusNotFound))
		w.WriteHeader(http.StatusNotFound)
		return
	}
	s.store.Refresh(key)
	s.log.Info("get", zap.String("key", key), zap.Int("status", http.StatusOK))
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, v)
}

// handleGetFull serves GET /_full/{key}.
func (s *Server) handleGetFull(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	rec, ok := s.store.GetFull(key)
	if !ok {
		s.log.Info("get_full", zap.String("key", key), zap.Int("status", http.StatusNotFound))
		w.WriteHeader(http.StatusNotFound)
		return
	}
	s.log.Info("get_full", zap.String("key", key), zap.Int("status", http.StatusOK))
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "Value: %s\nLast Used: %d", rec.Value, rec.Descriptor.Used)
}

// handleInsert serves POST /{key}; the whole body is the value.
func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	value, err := readBody(r)
	if err != nil {
		s.log.Error("insert: read body", zap.String("key", key), zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.store.Insert(key, value)
	s.log.Info("insert", zap.String("key", key), zap.Int("status", http.StatusOK))
	w.WriteHeader(http.StatusOK)
}

// handleRemove serves DELETE /{key}. Removal mirrors into the dump
// file too (spec.md §4.5), tolerating the file's absence.
func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	s.store.Remove(key)
	if err := snapshot.Remove(s.dumpPath, key); err != nil {
		s.log.Error("remove: mirror delete into dump file", zap.String("key", key), zap.Error(err))
	}
	s.log.Info("remove", zap.String("key", key), zap.Int("status", http.StatusOK))
	w.WriteHeader(http.StatusOK)
}

// handleIncr serves POST /_incr/{key}.
func (s *Server) handleIncr(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if _, err := s.store.Incr(key); err != nil {
		s.log.Error("incr", zap.String("key", key), zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.log.Info("incr", zap.String("key", key), zap.Int("status", http.StatusOK))
	w.WriteHeader(http.StatusOK)
}

// handleDecr serves POST /_decr/{key}.
func (s *Server) handleDecr(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if _, err := s.store.Decr(key); err != nil {
		s.log.Error("decr", zap.String("key", key), zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.log.Info("decr", zap.String("key", key), zap.Int("status", http.StatusOK))
	w.WriteHeader(http.StatusOK)
}

type filterEntry struct {
	Used uint64 `json:"used"`
}

// handleFilter serves POST /_filter; the whole body is the pattern.
// The response shape is spec.md §6's `[key, [value, {used}]]`.
func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	pattern, err := readBody(r)
	if err != nil {
		s.log.Error("filter: read body", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	matches := s.store.Filter(pattern)
	out := make([]any, len(matches))
	for i, kr := range matches {
		out[i] = []any{kr.Key, []any{kr.Record.Value, filterEntry{Used: kr.Record.Descriptor.Used}}}
	}
	s.log.Info("filter", zap.String("pattern", pattern), zap.Int("matches", len(matches)))
	writeJSON(w, out)
}

// handleFilterKeys serves POST /_filter/keys.
func (s *Server) handleFilterKeys(w http.ResponseWriter, r *http.Request) {
	pattern, err := readBody(r)
	if err != nil {
		s.log.Error("filter_keys: read body", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	keys := s.store.FilterKeys(pattern)
	s.log.Info("filter_keys", zap.String("pattern", pattern), zap.Int("matches", len(keys)))
	writeJSON(w, keys)
}

// handleDump serves POST /_dump: a spawned goroutine snapshots the map
// under a read lock, releases it, then writes to disk, matching spec.md
// §5's "copies ... and releases" and §9's dump-in-flight guard.
func (s *Server) handleDump(w http.ResponseWriter, r *http.Request) {
	if !s.store.BeginDump() {
		s.log.Info("dump: already in flight")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "Data dump in started")
		return
	}

	go func() {
		defer s.store.EndDump()
		triples := s.store.Snapshot()
		err := snapshot.Dump(s.dumpPath, triples)
		if err != nil {
			s.log.Error("dump", zap.Error(err))
		} else {
			s.log.Info("dump: complete", zap.Int("records", len(triples)))
		}
		if s.onDumpDone != nil {
			s.onDumpDone(err)
		}
	}()

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "Data dump in started")
}

// handleScan serves POST /_scan, blocking until the freshness scan
// completes (spec.md §6: "200 after scan completes").
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	s.store.Scan()
	s.log.Info("scan: complete")
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil && !errors.Is(err, http.ErrBodyNotAllowed) {
		// Encoding failures here mean v itself is malformed, which would
		// be a programming error in this package, not a client fault.
		panic(err)
	}
}
