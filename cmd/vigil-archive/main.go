// vigil-archive exports readings and invalidation records from the
// configured backend to a Parquet snapshot.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/xtxerr/vigil/internal/config"
	"github.com/xtxerr/vigil/internal/logging"
	"github.com/xtxerr/vigil/internal/storage"
	"github.com/xtxerr/vigil/internal/storage/archive"
	"github.com/xtxerr/vigil/internal/storage/parquet"
	"github.com/xtxerr/vigil/internal/storage/timerange"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "vigil-archive: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := flag.String("config", "config.yaml", "config file path")
	out := flag.String("out", "", "snapshot directory (default: <archive.dir>/<timestamp>)")
	since := flag.String("since", "", "earliest time to include")
	until := flag.String("until", "", "latest time to include")
	compression := flag.String("compression", "", "compression (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	if err := logging.InitFromConfig(cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}

	if *compression != "" {
		cfg.Archive.Compression = *compression
	}
	ct, err := parquet.ParseCompressionType(cfg.Archive.Compression)
	if err != nil {
		return err
	}
	opts := parquet.DefaultOptions()
	opts.Compression = ct

	formatter, err := timerange.NewFormatter(cfg.Query.Timezone)
	if err != nil {
		return err
	}
	bounds, err := timerange.ParseBounds(*since, *until, formatter.Location)
	if err != nil {
		return err
	}

	dir := *out
	if dir == "" {
		dir = filepath.Join(cfg.Archive.Dir, time.Now().UTC().Format("20060102T150405Z"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer b.Close()

	sum, err := archive.Snapshot(ctx, b, dir, bounds, opts)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(sum)
}
