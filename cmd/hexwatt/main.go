// Command hexwatt serves the hex-grid energy economy over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/talgya/hexwatt/internal/api"
	"github.com/talgya/hexwatt/internal/config"
	"github.com/talgya/hexwatt/internal/economy"
	"github.com/talgya/hexwatt/internal/engine"
	"github.com/talgya/hexwatt/internal/persistence"
	"github.com/talgya/hexwatt/internal/session"
	"github.com/talgya/hexwatt/internal/world"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (empty = defaults)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := run(*configPath); err != nil {
		slog.Error("hexwatt stopped", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// ── Catalog ───────────────────────────────────────────────────────
	catalog := economy.DefaultCatalog()
	if cfg.CatalogPath != "" {
		if catalog, err = economy.LoadCatalog(cfg.CatalogPath); err != nil {
			return err
		}
	}
	slog.Info("catalog loaded", "buildings", catalog.Len(), "path", cfg.CatalogPath)

	// ── Ledger (optional) ─────────────────────────────────────────────
	var db *persistence.DB
	if path := cfg.Storage.Path; path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
		if db, err = persistence.Open(path); err != nil {
			return err
		}
		defer db.Close()
		recordStart(db)
		slog.Info("ledger opened", "path", path)
	} else {
		slog.Warn("storage.path empty; history and archives disabled")
	}

	// ── Sessions ──────────────────────────────────────────────────────
	var created atomic.Int64
	factory := func() (*engine.Session, error) {
		seed := cfg.Session.Seed
		if seed != 0 {
			seed += created.Add(1)
		}
		picker, err := world.NewPicker(cfg.Session.TilePicker, seed)
		if err != nil {
			return nil, err
		}
		sess := engine.NewSession(cfg.Session.Params, catalog, picker)
		slog.Debug("session map generated", "tiles", sess.Map.TileCount(), "types", sess.Map.TypeCounts())
		return sess, nil
	}
	store := session.NewStore(factory, cfg.Session.IdleTimeout, cfg.Session.MaxSessions)

	hub := api.NewHub()
	store.OnEvict = func(id string, final engine.Snapshot) {
		hub.CloseSession(id)
		if db == nil {
			return
		}
		if err := db.ArchiveSession(id, final, time.Now()); err != nil {
			slog.Error("archive failed", "session", id, "error", err)
		}
	}

	// ── Engine + API ──────────────────────────────────────────────────
	eng := engine.NewEngine(cfg.Tick.Interval)
	if cfg.Server.AdminKey == "" {
		slog.Warn("HEXWATT_ADMIN_KEY not set; admin endpoints will be disabled")
	}
	server := &api.Server{
		Store:   store,
		Eng:     eng,
		DB:      db,
		Catalog: catalog,
		Hub:     hub,
		Config:  cfg.Server,
	}
	eng.OnTick = server.OnTick

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		eng.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		sweepLoop(ctx, server, cfg.Session.SweepEvery, cfg.Session.IdleTimeout)
	}()

	fmt.Printf("hexwatt: %d-ring maps, %d buildings, tick every %s\n",
		cfg.Session.Rings, catalog.Len(), cfg.Tick.Interval)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.Server.Port)

	err = server.Run(ctx)
	stop()
	wg.Wait()

	// Archive whatever is still live so the ledger has every session's end state.
	if db != nil {
		archived := archiveLive(store, func(id string, snap engine.Snapshot) error {
			return db.ArchiveSession(id, snap, time.Now())
		})
		slog.Info("live sessions archived", "archived", archived, "live", store.Len())
	}
	return err
}

// archiveLive hands every live session's snapshot to archive and returns
// how many were archived.
func archiveLive(store *session.Store, archive func(id string, snap engine.Snapshot) error) int {
	archived := 0
	for _, id := range store.IDs() {
		err := store.View(id, func(s *engine.Session) error {
			return archive(id, s.Snapshot())
		})
		if err != nil {
			slog.Error("archive failed", "session", id, "error", err)
			continue
		}
		archived++
	}
	return archived
}

func sweepLoop(ctx context.Context, server *api.Server, every, idle time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ids := server.Sweep(idle); len(ids) > 0 {
				slog.Info("idle sessions evicted", "count", len(ids), "live", server.Store.Len())
			}
		}
	}
}

// recordStart bumps the start counter kept in ledger metadata.
func recordStart(db *persistence.DB) {
	starts := 0
	if v, err := db.GetMeta("starts"); err == nil {
		starts, _ = strconv.Atoi(v)
	}
	starts++
	if err := db.SaveMeta("starts", strconv.Itoa(starts)); err != nil {
		slog.Warn("save meta failed", "error", err)
		return
	}
	if err := db.SaveMeta("last_start", time.Now().UTC().Format(time.RFC3339)); err != nil {
		slog.Warn("save meta failed", "error", err)
	}
	slog.Info("ledger start", "starts", starts)
}
