package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nhle/workhub/internal/filter"
	"github.com/nhle/workhub/internal/hubapi"
	"github.com/nhle/workhub/internal/kvsync"
	"github.com/nhle/workhub/internal/logger"
	"github.com/nhle/workhub/internal/metrics"
	"github.com/nhle/workhub/internal/model"
	"github.com/nhle/workhub/internal/sync"
)

// Session owns everything one signed-in user needs: the shared state hub,
// the API client and the notification center.
type Session struct {
	Config   *model.AppConfig
	Hub      *kvsync.Hub
	Client   *hubapi.Client
	Center   *sync.Center
	Recorder *metrics.Recorder
	AuthFlag *kvsync.Binding[bool]
	Settings *kvsync.Binding[model.ProfileSettings]

	logger *slog.Logger
	unbind func()
}

// SessionOptions customize NewSession. Zero values use the configuration.
type SessionOptions struct {
	Token      string
	Backend    kvsync.Backend
	HTTPClient *http.Client
	Scheduler  sync.Scheduler
	OnNotice   func(sync.Notice)
}

// OpenBackend opens the shared key/value backend selected by cfg.
func OpenBackend(cfg model.StateConfig, l *slog.Logger) (kvsync.Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("creating state directory: %w", err)
		}
		opts := []kvsync.SQLiteOption{kvsync.WithSQLiteLogger(l)}
		if cfg.PollIntervalMs > 0 {
			opts = append(opts, kvsync.WithPollInterval(time.Duration(cfg.PollIntervalMs)*time.Millisecond))
		}
		return kvsync.NewSQLiteBackend(cfg.SQLitePath, opts...)

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
		}
		return kvsync.NewRedisBackend(client, l), nil

	case "memory":
		return kvsync.NewMemoryBackend(), nil
	}
	return nil, fmt.Errorf("unknown state backend %q", cfg.Backend)
}

// NewSession wires a session from cfg. ctx bounds every stream the
// center opens. The session does nothing until Start.
func NewSession(ctx context.Context, cfg *model.AppConfig, opts SessionOptions) (*Session, error) {
	l := logger.WithComponent("app")

	backend := opts.Backend
	if backend == nil {
		var err error
		backend, err = OpenBackend(cfg.State, logger.WithComponent("kvsync"))
		if err != nil {
			return nil, err
		}
	}
	hub := kvsync.NewHub(backend, kvsync.WithLogger(logger.WithComponent("kvsync")))

	settings := kvsync.Bind(hub, model.KeyProfileSettings, kvsync.Options[model.ProfileSettings]{
		Default: model.ProfileSettings{
			Language:   cfg.Sync.Language,
			DefaultTab: string(filter.TabAll),
		},
		ListenAcrossTabs: true,
	})
	authFlag := kvsync.Bind(hub, model.KeyAuthFlag, kvsync.Options[bool]{
		ListenAcrossTabs: true,
	})

	language := settings.Value().Language
	if language == "" {
		language = cfg.Sync.Language
	}

	normalizer := hubapi.NewNormalizer()
	normalizer.Language = language

	var clientOpts []hubapi.Option
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, hubapi.WithHTTPClient(opts.HTTPClient))
	}
	clientOpts = append(clientOpts,
		hubapi.WithTimeout(time.Duration(cfg.API.TimeoutSec) * time.Second),
		hubapi.WithMaxRetries(cfg.API.MaxRetries),
		hubapi.WithStreamPath(cfg.API.StreamPath),
		hubapi.WithSnapshotSize(cfg.API.SnapshotSize),
		hubapi.WithNormalizer(normalizer),
		hubapi.WithLogger(logger.WithComponent("hubapi")),
	)
	client := hubapi.NewClient(cfg.API.BaseURL, opts.Token, clientOpts...)

	recorder := metrics.NewRecorder()
	center := sync.New(sync.NewTransport(client), sync.Options{
		Context:        ctx,
		Hub:            hub,
		Scheduler:      opts.Scheduler,
		Logger:         logger.WithComponent("sync"),
		Recorder:       recorder,
		Normalizer:     normalizer,
		OnNotice:       opts.OnNotice,
		ReconnectDelay: time.Duration(cfg.Sync.ReconnectDelaySec) * time.Second,
		TickInterval:   time.Duration(cfg.Sync.TimeAgoIntervalSec) * time.Second,
		Language:       language,
	})

	l.Debug("session wired",
		"base_url", cfg.API.BaseURL,
		"state_backend", cfg.State.Backend,
		"language", language,
	)

	return &Session{
		Config:   cfg,
		Hub:      hub,
		Client:   client,
		Center:   center,
		Recorder: recorder,
		AuthFlag: authFlag,
		Settings: settings,
		logger:   l,
	}, nil
}

// Start begins cross-process sharing and lets the auth flag drive the
// center: a true flag enables it right away.
func (s *Session) Start(ctx context.Context) error {
	if err := s.Hub.Start(ctx); err != nil {
		return fmt.Errorf("watching shared state: %w", err)
	}
	s.unbind = s.Center.BindSession(ctx, s.AuthFlag)
	return nil
}

// SignIn raises the auth flag on every instance sharing the state backend.
func (s *Session) SignIn() { s.AuthFlag.Set(true) }

// SignOut lowers the auth flag; every instance disconnects.
func (s *Session) SignOut() { s.AuthFlag.Set(false) }

// Close stops the center and releases the shared state backend.
func (s *Session) Close() error {
	if s.unbind != nil {
		s.unbind()
	}
	s.Center.Shutdown()
	s.AuthFlag.Close()
	s.Settings.Close()
	return s.Hub.Close()
}
