// Command lensfetch resolves a batch of lens hashes and writes the assembled
// records to disk and, when configured, to the Postgres record store. One
// record's failure never aborts the batch.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sourcegraph/conc/pool"

	"github.com/lensvault/lensvault/config"
	"github.com/lensvault/lensvault/core/record"
	"github.com/lensvault/lensvault/internal/infra/persistence/postgres"
	"github.com/lensvault/lensvault/internal/observability"
	"github.com/lensvault/lensvault/lib/telemetry"
	"github.com/lensvault/lensvault/pkg/resolver"
)

const telemetryShutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		cfgPath     = flag.String("config", "", "Optional YAML configuration file")
		hashesPath  = flag.String("hashes", "", "File with one lens hash per line")
		outDir      = flag.String("out", "records", "Directory for resolved record JSON files")
		dsn         = flag.String("database", "", "Optional PostgreSQL DSN overriding the configuration")
		concurrency = flag.Int("concurrency", 4, "Concurrent resolutions (per-host pacing still applies)")
		useArchive  = flag.Bool("archive", true, "Fall back to archived snapshots for incomplete records")
		verbose     = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	if strings.TrimSpace(*hashesPath) == "" {
		return errors.New("-hashes flag is required")
	}

	logger := log.New(os.Stdout, "lensfetch ", log.LstdFlags)
	observability.SetLogger(observability.NewStdLogger(logger, *verbose))

	cfg, fromFile, err := config.LoadOrDefault(*cfgPath)
	if err != nil {
		return err
	}
	if !fromFile && strings.TrimSpace(*cfgPath) != "" {
		logger.Printf("configuration file not found, using defaults")
	}
	if strings.TrimSpace(*dsn) != "" {
		cfg = config.Apply(cfg, config.WithDatabaseDSN(*dsn))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	_, telemetryShutdown, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer shutdownCancel()
		if err := telemetryShutdown(shutdownCtx); err != nil {
			logger.Printf("telemetry shutdown: %v", err)
		}
	}()

	hashes, err := readHashes(*hashesPath)
	if err != nil {
		return err
	}
	if len(hashes) == 0 {
		return errors.New("no hashes to resolve")
	}
	logger.Printf("resolving %d hashes", len(hashes))

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	var store *postgres.LensStore
	if cfg.Database.DSN != "" {
		dbPool, err := pgxpool.New(ctx, cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("connect record store: %w", err)
		}
		defer dbPool.Close()
		store = postgres.NewLensStore(dbPool)
	}

	engine := resolver.New(cfg)
	defer engine.Close()

	if *concurrency < 1 {
		*concurrency = 1
	}
	workers := pool.New().WithMaxGoroutines(*concurrency)
	var resolved, failed atomic.Int64
	for _, hash := range hashes {
		hash := hash
		workers.Go(func() {
			if err := resolveOne(ctx, engine, store, *outDir, hash, *useArchive); err != nil {
				logger.Printf("resolve %s: %v", hash, err)
				failed.Add(1)
				return
			}
			resolved.Add(1)
		})
	}
	workers.Wait()

	logger.Printf("batch complete: resolved=%d failed=%d", resolved.Load(), failed.Load())
	return nil
}

// resolveOne assembles the fullest record available for hash: live page first,
// unlock fields next, archived snapshots last, merged most-authoritative first.
func resolveOne(ctx context.Context, engine *resolver.Engine, store *postgres.LensStore, outDir, hash string, useArchive bool) error {
	rec, liveErr := engine.ByHash(ctx, hash)
	if unlock, err := engine.UnlockByHash(ctx, hash); err == nil {
		rec = record.Merge(rec, unlock)
	}
	if useArchive && rec.LensURL == "" {
		if archived, err := engine.ByArchivedSnapshot(ctx, hash); err == nil || !archived.Empty() {
			rec = record.Merge(rec, archived)
		}
	}
	if rec.Empty() {
		if liveErr != nil {
			return liveErr
		}
		return errors.New("no source yielded a record")
	}

	if store != nil {
		merged, err := store.Upsert(ctx, rec)
		if err != nil {
			return err
		}
		rec = merged
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	name := rec.UUID
	if name == "" {
		name = strings.ToLower(hash)
	}
	path := filepath.Join(outDir, name+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

func readHashes(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open hashes file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	var hashes []string
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		hashes = append(hashes, line)
	}
	return hashes, scanner.Err()
}
