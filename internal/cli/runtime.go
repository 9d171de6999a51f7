package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/sandeepkv93/timelock/internal/config"
	"github.com/sandeepkv93/timelock/internal/reconcile"
	"github.com/sandeepkv93/timelock/internal/scheduler"
	"github.com/sandeepkv93/timelock/internal/storage"
	"github.com/sandeepkv93/timelock/internal/tasks"
)

// runtime is one opened set of collaborators. The engine shares the
// notification queue table with every other timelock process on the same
// database, so one-shot commands schedule without starting it.
type runtime struct {
	cfg     *config.Config
	logger  *log.Logger
	repo    *storage.SQLiteRepository
	engine  *scheduler.Engine
	rec     *reconcile.Reconciler
	service *tasks.Service
	logFile *os.File
}

func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return nil, err
	}
	if a.dbPath != "" {
		cfg.Database.Path = a.dbPath
	}
	return cfg, nil
}

// logger writes warnings to stderr, or to logPath when set. Without
// --verbose only lines that start with "warning" are kept.
func (a *app) logger(logPath string) (*log.Logger, *os.File, error) {
	var out io.Writer = a.stderr
	var file *os.File
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out, file = f, f
	}
	if !a.verbose {
		out = warningsOnly{out}
	}
	return log.New(out, "timelock: ", log.LstdFlags), file, nil
}

type warningsOnly struct {
	w io.Writer
}

func (f warningsOnly) Write(p []byte) (int, error) {
	if !bytes.Contains(p, []byte(" warning:")) {
		return len(p), nil
	}
	return f.w.Write(p)
}

// open builds the runtime. A non-empty logPath sends log output to that
// file, which the TUI needs to keep the terminal clean.
func (a *app) open(ctx context.Context, logPath string) (*runtime, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if logPath == "-" {
		logPath = filepath.Join(filepath.Dir(cfg.Database.Path), "timelock.log")
	}
	logger, logFile, err := a.logger(logPath)
	if err != nil {
		return nil, err
	}

	repo, err := storage.OpenSQLite(cfg.Database.Path)
	if err != nil {
		if logFile != nil {
			_ = logFile.Close()
		}
		return nil, err
	}
	engine := scheduler.NewEngine(cfg.Scheduler.Buffer,
		scheduler.WithQueueStore(repo),
		scheduler.WithLogger(logger),
		scheduler.WithClock(func() time.Time { return a.now().UTC() }),
	)
	// notifications.enabled stands in for the desktop permission grant;
	// while it is off every Schedule call fails and a later sweep repairs.
	engine.SetPermission(cfg.Notifications.Enabled)
	if err := engine.Reload(ctx); err != nil {
		_ = repo.Close()
		if logFile != nil {
			_ = logFile.Close()
		}
		return nil, err
	}
	offsets, err := cfg.Offsets()
	if err != nil {
		_ = repo.Close()
		if logFile != nil {
			_ = logFile.Close()
		}
		return nil, err
	}

	rec := reconcile.New(engine, reconcile.WithLogger(logger))
	service := tasks.NewService(repo, rec,
		tasks.WithLogger(logger),
		tasks.WithDefaultOffsets(offsets),
		tasks.WithClock(func() time.Time { return a.now().UTC() }),
	)
	return &runtime{
		cfg:     cfg,
		logger:  logger,
		repo:    repo,
		engine:  engine,
		rec:     rec,
		service: service,
		logFile: logFile,
	}, nil
}

func (r *runtime) Close() error {
	r.engine.Stop()
	err := r.repo.Close()
	if r.logFile != nil {
		_ = r.logFile.Close()
	}
	return err
}
