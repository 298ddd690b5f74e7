package app

import (
	"context"
	"errors"
	"math/big"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"supplywatcher/internal/alerting"
	"supplywatcher/internal/api"
	"supplywatcher/internal/config"
	"supplywatcher/internal/dedup"
	"supplywatcher/internal/fetcher"
	"supplywatcher/internal/logging"
	"supplywatcher/internal/scheduler"
	"supplywatcher/internal/service"
	"supplywatcher/internal/settings"
	"supplywatcher/internal/storage"
	"supplywatcher/internal/version"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logging.Component(logger, "app")}
}

func (a *App) newTokenReader() *fetcher.Token {
	return fetcher.NewToken(fetcher.TokenOptions{
		RPCURL:  a.Config.Ethereum.RPCURL,
		Timeout: a.Config.Ethereum.RequestTimeout,
	}, a.Logger)
}

func (a *App) newSettings() (*settings.Store, error) {
	initial, err := a.Config.Monitor.InitialSettings()
	if err != nil {
		return nil, err
	}
	return settings.New(a.Config.Monitor.OwnerAddress(), initial)
}

// newNotifier builds the sinks named in alerting.channels. Nil means no sink.
func (a *App) newNotifier() alerting.Notifier {
	var sinks alerting.Multi
	for _, channel := range a.Config.Alerting.Channels {
		switch channel {
		case "log":
			sinks = append(sinks, alerting.NewLogNotifier(a.Logger))
		case "telegram":
			if !a.Config.Alerting.Telegram.Enabled {
				a.Logger.Warn().Msg("telegram channel listed but alerting.telegram.enabled is false")
				continue
			}
			cfg := a.Config.Alerting.Telegram
			sinks = append(sinks, alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger))
		default:
			a.Logger.Warn().Str("channel", channel).Msg("unknown alert channel ignored")
		}
	}
	if len(sinks) == 0 {
		return nil
	}
	return sinks
}

func (a *App) newCooldown(ctx context.Context) (dedup.Cooldown, func(), error) {
	if a.Config.Redis.URL == "" {
		return dedup.NewMemory(), nil, nil
	}
	rdb, err := dedup.NewRedis(ctx, a.Config.Redis.URL, a.Config.Redis.Password, a.Config.Redis.KeyPrefix)
	if err != nil {
		return nil, nil, err
	}
	return rdb, func() { _ = rdb.Close() }, nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	store, err := storage.Open(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// decimalsResolver looks up token decimals once per token and falls back to
// raw units when no RPC endpoint is configured or the call fails.
type decimalsResolver struct {
	reader fetcher.TokenMetadataReader
	cache  map[string]uint8
	logger zerolog.Logger
}

func (a *App) newDecimalsResolver(reader fetcher.TokenMetadataReader) *decimalsResolver {
	if a.Config.Ethereum.RPCURL == "" {
		reader = nil
	}
	return &decimalsResolver{reader: reader, cache: map[string]uint8{}, logger: a.Logger}
}

func (d *decimalsResolver) lookup(ctx context.Context, token string) uint8 {
	if v, ok := d.cache[token]; ok {
		return v
	}
	var decimals uint8
	if d.reader != nil && common.IsHexAddress(token) && common.HexToAddress(token) != (common.Address{}) {
		v, err := d.reader.Decimals(ctx, common.HexToAddress(token))
		if err != nil {
			d.logger.Warn().Err(err).Str("token", token).Msg("decimals unavailable; showing raw units")
		} else {
			decimals = v
		}
	}
	d.cache[token] = decimals
	return decimals
}

// Run executes the long-running monitoring service. With opts.Once a single
// bucket is sampled and recorded, and the HTTP server is not started.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	cfgStore, err := a.newSettings()
	if err != nil {
		return err
	}
	a.Logger.Info().
		Str("owner", cfgStore.Owner().Hex()).
		Str("state", cfgStore.State().String()).
		Msg("settings initialised")

	cooldown, closeCooldown, err := a.newCooldown(ctx)
	if err != nil {
		return err
	}
	if closeCooldown != nil {
		defer closeCooldown()
	}

	reader := a.newTokenReader()
	defer reader.Close()

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	deps := service.Deps{
		Scheduler: sched,
		Settings:  cfgStore,
		Reader:    reader,
		Metadata:  reader,
		Notifier:  a.newNotifier(),
		Cooldown:  cooldown,
	}
	var pinger api.Pinger
	if store != nil {
		deps.Store = store
		deps.AlertStore = store
		pinger = store
	}

	svc := service.New(a.Config, deps, a.Logger)

	if opts.Once {
		bucket := time.Now().UTC().Truncate(a.Config.Scheduler.Interval)
		return svc.ProcessBucket(ctx, bucket)
	}

	serverErr := make(chan error, 1)
	if a.Config.Server.Enabled {
		srv := api.NewServer(a.Config.Server, cfgStore, pinger, svc, a.Logger)
		go func() {
			serverErr <- srv.Run(ctx)
		}()
	} else {
		serverErr <- nil
	}

	a.Logger.Info().
		Str("version", version.Version).
		Int("window_size", a.Config.Monitor.WindowSize).
		Msg("starting monitoring service")
	err = svc.Run(ctx)
	cancel()
	if srvErr := <-serverErr; srvErr != nil {
		a.Logger.Error().Err(srvErr).Msg("http server terminated with error")
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}

// RunOptions configure the run command.
type RunOptions struct {
	Once bool
}

// ExportOptions hold parameters for exporting historical samples.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
	Token     string
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit  int
	Alerts bool
}

// ReplayOptions configure an offline replay over stored samples.
type ReplayOptions struct {
	From       time.Time
	To         time.Time
	WindowSize int
}

// SimulateOptions describe a synthetic two-sample window.
type SimulateOptions struct {
	Token     common.Address
	Old       *big.Int
	New       *big.Int
	Threshold *big.Int
	Decimals  uint8
}
