package daemon

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"recap/internal/api"
	"recap/internal/config"
	"recap/internal/email"
	"recap/internal/logging"
	"recap/internal/pipeline"
	"recap/internal/runlock"
	"recap/internal/scheduler"
	"recap/internal/store"
	"recap/internal/summarizer"
	"recap/internal/transcript"
	"recap/internal/youtube"
)

// Daemon owns the component graph for one recapd process.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	service *api.Service
	sched   *scheduler.Scheduler
	server  *apiServer

	running atomic.Bool
}

// New builds the full component graph from configuration. The store is
// opened here; everything else hangs off it.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	st, err := store.Open(cfg)
	if err != nil {
		return nil, err
	}

	feedTimeout := time.Duration(cfg.YouTube.RequestTimeout) * time.Second
	summarizerClient := summarizer.NewClient(cfg.Summarizer.APIKey,
		summarizer.WithBaseURL(cfg.Summarizer.BaseURL),
		summarizer.WithModel(cfg.Summarizer.Model),
		summarizer.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Summarizer.TimeoutSeconds) * time.Second}))

	var sender email.Sender
	if cfg.DeliveryConfigured() {
		sender = email.NewSMTPSender(cfg.Email)
	} else {
		logger.Warn("email delivery not configured, running summary-only")
	}

	runner, err := pipeline.New(cfg, pipeline.Deps{
		Store:       st,
		Lock:        runlock.New(cfg.LockPath()),
		Feeds:       youtube.NewFeedClient(cfg.YouTube.FeedBaseURL, feedTimeout, nil),
		Metadata:    youtube.NewMetadataClient(cfg.YouTube.YtDlpBinary, feedTimeout),
		Transcripts: transcript.NewCascade(cfg, st, logger),
		Summarizer:  summarizerClient,
		Email:       sender,
		Logger:      logger,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	fallback := time.Duration(cfg.Scheduler.DefaultIntervalMinutes) * time.Minute
	sched := scheduler.New(runner.RunOnce, st, fallback, logger)

	d := &Daemon{
		cfg:     cfg,
		logger:  logger.With(logging.String(logging.FieldComponent, "daemon")),
		store:   st,
		service: api.NewService(st),
		sched:   sched,
	}
	d.server = newAPIServer(cfg.Paths.APIBind, d, logger)
	return d, nil
}

// Run blocks until the context is cancelled, serving HTTP and running the
// scheduler loop. Both halves share one lifecycle: if either fails, the
// other is shut down.
func (d *Daemon) Run(ctx context.Context) error {
	d.running.Store(true)
	defer d.running.Store(false)
	defer d.store.Close()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		err := d.sched.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	group.Go(func() error {
		return d.server.run(ctx)
	})

	d.logger.Info("daemon started",
		logging.String("db", d.store.Path()),
		logging.String("bind", d.cfg.Paths.APIBind))
	err := group.Wait()
	d.logger.Info("daemon stopped")
	return err
}

// Status assembles the live status view.
func (d *Daemon) Status(ctx context.Context) (api.StatusView, error) {
	counts, err := d.service.ItemCounts(ctx)
	if err != nil {
		return api.StatusView{}, err
	}
	view := api.StatusView{
		Running:      d.running.Load(),
		RunInFlight:  d.sched.Running(),
		LastRun:      d.sched.LastRun(),
		ItemCounts:   counts,
		DatabasePath: d.cfg.DatabasePath(),
		LockPath:     d.cfg.LockPath(),
	}
	if next := d.sched.NextRunAt(); !next.IsZero() {
		view.NextRunAt = &next
	}
	return view, nil
}
