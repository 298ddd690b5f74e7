package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"supplywatcher/internal/alerting"
	"supplywatcher/internal/config"
	"supplywatcher/internal/dedup"
	"supplywatcher/internal/fetcher"
	"supplywatcher/internal/logging"
	"supplywatcher/internal/metrics"
	"supplywatcher/internal/scheduler"
	"supplywatcher/internal/storage"
	"supplywatcher/internal/supply"
)

// Deps collects the collaborators of the service. Nil stores, notifier,
// metadata and cooldown are allowed and disable the matching feature.
type Deps struct {
	Scheduler  *scheduler.Scheduler
	Settings   supply.ConfigSource
	Reader     supply.Reader
	Metadata   fetcher.TokenMetadataReader
	Store      storage.SampleStore
	AlertStore storage.AlertStore
	Notifier   alerting.Notifier
	Cooldown   dedup.Cooldown
}

// Service orchestrates sampling, window accumulation, evaluation and alerting.
type Service struct {
	scheduler  *scheduler.Scheduler
	settings   supply.ConfigSource
	sampler    *supply.Sampler
	metadata   fetcher.TokenMetadataReader
	store      storage.SampleStore
	alertStore storage.AlertStore
	notifier   alerting.Notifier
	cooldown   dedup.Cooldown
	logger     zerolog.Logger

	cooldownTTL time.Duration
	channels    []string
	alertsOn    bool
	locker      storage.AdvisoryLocker
	lockKey     int64

	mu     sync.Mutex
	window *Window
}

// New constructs the monitoring service.
func New(cfg *config.Config, deps Deps, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := deps.Store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		scheduler:   deps.Scheduler,
		settings:    deps.Settings,
		sampler:     supply.NewSampler(deps.Settings, deps.Reader),
		metadata:    deps.Metadata,
		store:       deps.Store,
		alertStore:  deps.AlertStore,
		notifier:    deps.Notifier,
		cooldown:    deps.Cooldown,
		logger:      logging.Component(logger, "service"),
		cooldownTTL: cfg.Monitor.Cooldown,
		channels:    cfg.Alerting.Channels,
		alertsOn:    cfg.Alerting.Enabled,
		locker:      locker,
		lockKey:     cfg.Scheduler.AdvisoryLockKey,
		window:      NewWindow(cfg.Monitor.WindowSize),
	}
}

// Run begins the sampling loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessBucket)
}

// Window returns a copy of the current evaluation window, newest first.
func (s *Service) Window() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window.Snapshot()
}

// ProcessBucket takes one sample and evaluates the window once it is full.
func (s *Service) ProcessBucket(ctx context.Context, bucket time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("bucket", bucket).Msg("skip bucket because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	return s.executeBucket(ctx, bucket)
}

func (s *Service) executeBucket(ctx context.Context, bucket time.Time) error {
	sample, err := s.sampler.Sample(ctx)
	if err != nil {
		metrics.SamplesTotal.WithLabelValues(storage.StatusErrored).Inc()
		s.recordFailure(ctx, bucket, err)
		return fmt.Errorf("capture sample: %w", err)
	}

	s.mu.Lock()
	reset, err := s.window.Push(sample)
	window := s.window.Snapshot()
	full := s.window.Full()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	metrics.SamplesTotal.WithLabelValues(storage.StatusComplete).Inc()
	metrics.LastSuccess.SetToCurrentTime()
	metrics.WindowFill.Set(float64(len(window)))

	decimals := s.decimals(ctx, sample.Token())
	if sample.Token() != (common.Address{}) {
		units, _ := alerting.Units(sample.ObservedSupply(), decimals).Float64()
		metrics.ObservedSupply.WithLabelValues(sample.Token().Hex()).Set(units)
	}

	s.persistSample(ctx, bucket, sample, window[0])

	logEvent := s.logger.Info().Time("bucket", bucket).
		Str("token", sample.Token().Hex()).
		Str("observed_supply", sample.ObservedSupply().String()).
		Str("threshold", sample.Threshold().String()).
		Int("window", len(window))
	if reset {
		logEvent = logEvent.Bool("window_reset", true)
	}
	logEvent.Msg("sample recorded")

	if !full {
		return nil
	}

	_, err = s.EvaluateWindow(ctx, bucket, window, decimals)
	return err
}

// EvaluateWindow runs the evaluator over window and dispatches an alert on trigger.
func (s *Service) EvaluateWindow(ctx context.Context, bucket time.Time, window [][]byte, decimals uint8) (bool, error) {
	triggered, payload, err := supply.Evaluate(window)
	if err != nil {
		metrics.EvaluationsTotal.WithLabelValues("malformed").Inc()
		s.logger.Error().Err(err).Time("bucket", bucket).Msg("window evaluation failed")
		return false, fmt.Errorf("evaluate window: %w", err)
	}
	if !triggered {
		metrics.EvaluationsTotal.WithLabelValues("clear").Inc()
		return false, nil
	}
	metrics.EvaluationsTotal.WithLabelValues("triggered").Inc()

	latest, err := supply.DecodeSample(window[0])
	if err != nil {
		return true, err
	}

	note, err := alerting.NewNotification(bucket, payload, latest.Threshold(), decimals, s.channels)
	if err != nil {
		return true, fmt.Errorf("decode alert payload: %w", err)
	}

	return true, s.dispatch(ctx, note)
}

func (s *Service) dispatch(ctx context.Context, note alerting.Notification) error {
	if s.cooldown != nil {
		acquired, err := s.cooldown.Acquire(ctx, note.Token.Hex(), s.cooldownTTL)
		if err != nil {
			metrics.AlertsSuppressedTotal.Inc()
			return fmt.Errorf("alert cooldown: %w", err)
		}
		if !acquired {
			metrics.AlertsSuppressedTotal.Inc()
			s.logger.Info().Time("bucket", note.Bucket).
				Str("token", note.Token.Hex()).
				Dur("cooldown", s.cooldownTTL).
				Msg("alert suppressed by cooldown")
			return nil
		}
	}

	if s.alertStore != nil {
		record := storage.AlertRecord{
			SampleTS:  note.Bucket,
			Token:     note.Token.Hex(),
			OldSupply: note.OldSupply,
			NewSupply: note.NewSupply,
			Threshold: note.Threshold,
			Payload:   note.Payload,
			Channels:  s.channels,
		}
		if _, err := s.alertStore.InsertAlert(ctx, record); err != nil {
			s.logger.Error().Err(err).Time("bucket", note.Bucket).Msg("failed to persist alert record")
		}
	}

	if !s.alertsOn || s.notifier == nil {
		s.logger.Warn().Time("bucket", note.Bucket).Str("token", note.Token.Hex()).Msg("alert triggered but alerting disabled")
		return nil
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Time("bucket", note.Bucket).Msg("failed to dispatch alert")
	}
	return nil
}

func (s *Service) persistSample(ctx context.Context, bucket time.Time, sample supply.Sample, encoded []byte) {
	if s.store == nil {
		return
	}
	row := storage.SupplySample{
		Bucket:         bucket,
		Token:          sample.Token().Hex(),
		ObservedSupply: sample.ObservedSupply(),
		Threshold:      sample.Threshold(),
		Encoded:        encoded,
		Status:         storage.StatusComplete,
	}
	if err := s.store.UpsertSample(ctx, row); err != nil {
		s.logger.Error().Err(err).Time("bucket", bucket).Msg("failed to upsert sample")
	}
}

func (s *Service) recordFailure(ctx context.Context, bucket time.Time, cause error) {
	s.logger.Error().Err(cause).Time("bucket", bucket).
		Bool("read_failure", errors.Is(cause, supply.ErrReadFailure)).
		Msg("sample capture failed")
	if s.store == nil {
		return
	}

	var token string
	if s.settings != nil {
		token = s.settings.Snapshot().Target.Hex()
	}
	msg := cause.Error()
	row := storage.SupplySample{Bucket: bucket, Token: token, Status: storage.StatusErrored, Error: &msg}
	if err := s.store.UpsertSample(ctx, row); err != nil {
		s.logger.Error().Err(err).Time("bucket", bucket).Msg("failed to record errored sample")
	}
}

func (s *Service) decimals(ctx context.Context, token common.Address) uint8 {
	if s.metadata == nil || token == (common.Address{}) {
		return 0
	}
	decimals, err := s.metadata.Decimals(ctx, token)
	if err != nil {
		s.logger.Warn().Err(err).Str("token", token.Hex()).Msg("decimals unavailable; reporting raw units")
		return 0
	}
	return decimals
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
