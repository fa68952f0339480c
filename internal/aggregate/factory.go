package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/signald/internal/adapters"
	"github.com/fyrsmithlabs/signald/internal/adapters/asana"
	"github.com/fyrsmithlabs/signald/internal/adapters/github"
	"github.com/fyrsmithlabs/signald/internal/adapters/linear"
	"github.com/fyrsmithlabs/signald/internal/adapters/slack"
	"github.com/fyrsmithlabs/signald/internal/adapters/whatsapp"
	"github.com/fyrsmithlabs/signald/internal/config"
	"github.com/fyrsmithlabs/signald/internal/logging"
)

const redisPingTimeout = 5 * time.Second

// NewFromConfig builds a Manager with one adapter per credential slot that
// is set. Unset slots are skipped. Malformed credentials are reported
// together, before any network I/O.
//
// Fields of deps left zero are filled from cfg.Fetch. When the WhatsApp
// inbox is redis, the connection is checked once all adapters are valid and
// is closed by Manager.Close.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *logging.Logger, deps adapters.Deps, opts ...Option) (*Manager, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if deps.Logger == nil {
		deps.Logger = logger.Underlying()
	}
	if deps.Timeout == 0 {
		deps.Timeout = cfg.Fetch.Timeout
	}
	if deps.RatePerSecond == 0 {
		deps.RatePerSecond = cfg.Fetch.RatePerSecond
	}
	if deps.Window == 0 {
		deps.Window = cfg.Fetch.DefaultWindow
	}
	if deps.MaxSubUnits == 0 {
		deps.MaxSubUnits = cfg.Fetch.MaxSubUnits
	}

	opts = append([]Option{
		WithMetrics(deps.Metrics),
		WithHealthCacheTTL(cfg.Aggregate.HealthCacheTTL),
		WithFetchTimeout(cfg.Aggregate.FetchTimeout),
	}, opts...)
	m := New(logger, opts...)

	var errs []error

	if cfg.Slack.Token.IsSet() {
		a, err := slack.New(slack.Config{Token: cfg.Slack.Token, BaseURL: cfg.Slack.BaseURL}, deps)
		if err != nil {
			errs = append(errs, err)
		} else {
			m.Register(a)
		}
	}
	if cfg.Asana.Token.IsSet() {
		a, err := asana.New(asana.Config{Token: cfg.Asana.Token, BaseURL: cfg.Asana.BaseURL}, deps)
		if err != nil {
			errs = append(errs, err)
		} else {
			m.Register(a)
		}
	}
	if cfg.Linear.Token.IsSet() {
		a, err := linear.New(linear.Config{Token: cfg.Linear.Token, BaseURL: cfg.Linear.BaseURL}, deps)
		if err != nil {
			errs = append(errs, err)
		} else {
			m.Register(a)
		}
	}
	if cfg.GitHub.Token.IsSet() {
		a, err := github.New(github.Config{
			Token:   cfg.GitHub.Token,
			BaseURL: cfg.GitHub.BaseURL,
			Repos:   cfg.GitHub.Repos,
		}, deps)
		if err != nil {
			errs = append(errs, err)
		} else {
			m.Register(a)
		}
	}

	var rdb *redis.Client
	if cfg.WhatsApp.Token.IsSet() {
		var inbox whatsapp.Inbox
		if cfg.WhatsApp.Inbox == "redis" {
			rdb = redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password.Value(),
				DB:       cfg.Redis.DB,
			})
			inbox = whatsapp.NewRedisInbox(rdb, cfg.Redis.KeyPrefix, deps.Logger)
		}
		a, err := whatsapp.New(whatsapp.Config{
			Token:         cfg.WhatsApp.Token,
			PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
			BaseURL:       cfg.WhatsApp.BaseURL,
		}, inbox, deps)
		if err != nil {
			errs = append(errs, err)
		} else {
			m.Register(a)
		}
	}

	if err := errors.Join(errs...); err != nil {
		if rdb != nil {
			_ = rdb.Close()
		}
		return nil, err
	}

	if rdb != nil {
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("connect to redis inbox at %s: %w", cfg.Redis.Addr, err)
		}
		m.onClose(rdb.Close)
	}

	logger.Info(ctx, "aggregation manager ready",
		zap.Strings("sources", cfg.ConfiguredSources()),
		zap.String("whatsapp_inbox", inboxKind(cfg)))
	return m, nil
}

func inboxKind(cfg *config.Config) string {
	if !cfg.WhatsApp.Token.IsSet() {
		return ""
	}
	return cfg.WhatsApp.Inbox
}
