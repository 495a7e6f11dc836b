// oysterd is the server entrypoint: it loads configuration, restores
// the last dump (tolerating its absence), and serves the HTTP surface
// described in spec.md §6.
package main

import (
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/oysterdb/oysterd/clock"
	"github.com/oysterdb/oysterd/config"
	"github.com/oysterdb/oysterd/guard"
	"github.com/oysterdb/oysterd/httpapi"
	"github.com/oysterdb/oysterd/kv"
	"github.com/oysterdb/oysterd/snapshot"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "oysterd: build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}

	m := kv.New(clock.System{})
	if err := snapshot.Restore(snapshot.Path, m); err != nil {
		// A restore failure is a PersistenceError (spec.md §7): it is
		// logged, and the server continues with an empty map rather
		// than refusing to start.
		log.Error("restore snapshot; continuing with an empty map", zap.Error(err))
		m = kv.New(clock.System{})
	}

	store := guard.New(m)
	server := httpapi.New(store, log, snapshot.Path)

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Info("oysterd listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, server.Router()); err != nil {
		log.Fatal("serve", zap.Error(err))
	}
}
