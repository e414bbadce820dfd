// Package app wires the long-running daemon: scheduled pipeline runs,
// reply scanning, and the operator HTTP API.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"outreach-engine-go/internal/config"
	"outreach-engine-go/internal/database"
	"outreach-engine-go/internal/followup"
	"outreach-engine-go/internal/gate"
	"outreach-engine-go/internal/handlers"
	"outreach-engine-go/internal/mailer"
	"outreach-engine-go/internal/manager"
	"outreach-engine-go/internal/metrics"
	"outreach-engine-go/internal/model"
	"outreach-engine-go/internal/qualify"
	"outreach-engine-go/internal/replies"
	"outreach-engine-go/internal/resolver"
	"outreach-engine-go/internal/sender"
	"outreach-engine-go/internal/server"
	"outreach-engine-go/internal/store"
	"outreach-engine-go/internal/summary"
	"outreach-engine-go/internal/template"
)

// App is the assembled daemon.
type App struct {
	cfg      *config.Config
	manager  *manager.Manager
	store    *store.Store
	detector *replies.Detector
	reporter *summary.Reporter

	runMu sync.Mutex // one pipeline run at a time
}

// Run initializes and starts the daemon, blocking until shutdown.
func Run() error {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	logrus.Info("Starting outreach engine daemon")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	app, db, err := Build(cfg)
	if err != nil {
		return err
	}

	h := handlers.NewHandlers(db, app.store, app.manager, app)
	router := server.SetupRouter(h)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sched := cron.New(cron.WithSeconds())
	if _, err := sched.AddFunc(cfg.Daemon.RunSpec, func() {
		if _, err := app.TriggerRun(context.Background()); err != nil {
			logrus.Errorf("Scheduled run failed: %v", err)
		}
		if err := app.reporter.Send(context.Background()); err != nil {
			logrus.Errorf("Summary send failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule pipeline run: %w", err)
	}
	if cfg.IMAP.Enabled {
		if _, err := sched.AddFunc(cfg.Daemon.ReplySpec, func() {
			if n, err := app.detector.Scan(); err != nil {
				logrus.Errorf("Reply scan failed: %v", err)
			} else if n > 0 {
				logrus.Infof("Reply scan recorded %d replies", n)
			}
		}); err != nil {
			return fmt.Errorf("failed to schedule reply scan: %w", err)
		}
	}
	sched.Start()

	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	<-sched.Stop().Done()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logrus.Info("Daemon stopped")
	return nil
}

// Build assembles the component graph from configuration. Shared by the
// daemon and the CLI.
func Build(cfg *config.Config) (*App, *gorm.DB, error) {
	db, err := database.Init(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	st := store.New(db)
	met := metrics.New()

	var res qualify.Resolver
	if cfg.Outreach.ResolverURL != "" {
		res = resolver.New(cfg.Outreach.ResolverURL)
	}
	q := qualify.New(st, res, cfg.Outreach)

	renderer, err := template.NewRenderer(cfg.Sender)
	if err != nil {
		return nil, nil, err
	}

	g := gate.New(st, cfg.Outreach)

	configErrs := cfg.ValidateTransport()
	var transport mailer.Mailer
	if len(configErrs) == 0 {
		transport, err = mailer.New(cfg)
		if err != nil {
			return nil, nil, err
		}
	} else {
		for _, msg := range configErrs {
			logrus.Warnf("Config issue: %s", msg)
		}
	}

	snd := sender.New(transport, g, cfg.Outreach, configErrs)
	fu := followup.New(st, renderer, snd, cfg.Outreach)
	m := manager.New(st, q, renderer, snd, fu, g, met, cfg.Outreach)
	det := replies.New(cfg.IMAP, st, met)
	rep := summary.NewReporter(st, g, fu.Intervals(), cfg.Outreach.MaxFollowups, transport, cfg.Outreach.SummaryEmail)

	return &App{
		cfg:      cfg,
		manager:  m,
		store:    st,
		detector: det,
		reporter: rep,
	}, db, nil
}

// Manager exposes the pipeline orchestrator.
func (a *App) Manager() *manager.Manager { return a.manager }

// Store exposes the persistence layer.
func (a *App) Store() *store.Store { return a.store }

// Detector exposes the reply scanner.
func (a *App) Detector() *replies.Detector { return a.detector }

// Reporter exposes the summary builder.
func (a *App) Reporter() *summary.Reporter { return a.reporter }

// TriggerRun consumes every staged intake file and runs the pipeline over
// the combined opportunity set. Consumed files are renamed with a .done
// suffix so a crashed run never reprocesses input it already handled.
func (a *App) TriggerRun(ctx context.Context) (manager.RunResult, error) {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	opps, consumed, err := a.loadIntake()
	if err != nil {
		return manager.RunResult{}, err
	}

	result, err := a.manager.Run(ctx, opps)
	if err != nil {
		return result, err
	}

	for _, path := range consumed {
		if err := os.Rename(path, path+".done"); err != nil {
			logrus.Errorf("Could not mark intake file %s as done: %v", path, err)
		}
	}
	return result, nil
}

func (a *App) loadIntake() ([]model.Opportunity, []string, error) {
	dir := a.cfg.Daemon.IntakeDir
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("read intake dir %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)

	var opps []model.Opportunity
	var consumed []string
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			logrus.Errorf("Could not open intake file %s: %v", path, err)
			continue
		}
		batch, err := model.ParseOpportunities(f)
		f.Close()
		if err != nil {
			logrus.Errorf("Could not parse intake file %s: %v", path, err)
			continue
		}
		logrus.Infof("Loaded %d opportunities from %s", len(batch), path)
		opps = append(opps, batch...)
		consumed = append(consumed, path)
	}
	return opps, consumed, nil
}
