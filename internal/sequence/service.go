package sequence

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-books/internal/observability"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	Get(ctx context.Context, key string) (Sequence, error)
	List(ctx context.Context) ([]Sequence, error)
}

// Service allocates document numbers.
type Service struct {
	repo     RepositoryPort
	defaults Defaults
	metrics  *observability.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds Service. Zero defaults fall back to a pad of 6.
func NewService(repo RepositoryPort, defaults Defaults, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if defaults.PadLength <= 0 {
		defaults.PadLength = 6
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		defaults: defaults,
		metrics:  metrics,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ReserveNextNumber allocates the next number for key inside the caller's
// transaction. The counter row stays locked until that transaction ends, so
// concurrent callers serialize and a rollback returns the number.
func (s *Service) ReserveNextNumber(ctx context.Context, store TxStore, key string, now time.Time) (Reservation, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Reservation{}, fmt.Errorf("%w: key required", ErrInvalidSequence)
	}
	year := now.Year()
	seq, err := store.LockOrCreate(ctx, s.defaultFor(key, year))
	if err != nil {
		return Reservation{}, fmt.Errorf("sequence: lock %s: %w", key, err)
	}
	// The counter year only moves forward. A caller whose clock lags behind
	// the row numbers under the row's year instead of resetting it.
	switch {
	case year > seq.CurrentYear:
		if seq.ResetAnnually {
			seq.LastNumber = 0
		}
		seq.CurrentYear = year
	case year < seq.CurrentYear:
		s.logger.Warn("sequence clock behind counter year", slog.String("key", key),
			slog.Int("year", year), slog.Int("current_year", seq.CurrentYear))
		year = seq.CurrentYear
	}
	seq.LastNumber++
	if err := store.Save(ctx, seq); err != nil {
		return Reservation{}, fmt.Errorf("sequence: save %s: %w", key, err)
	}
	s.metrics.SequenceReserved(key)
	return Reservation{
		Key:       key,
		Year:      year,
		Number:    seq.LastNumber,
		Formatted: seq.Format(seq.LastNumber, year),
	}, nil
}

// Reserve allocates a number in a transaction of its own, for callers that
// have no parent write to tie it to.
func (s *Service) Reserve(ctx context.Context, key string) (Reservation, error) {
	var res Reservation
	err := s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		var err error
		res, err = s.ReserveNextNumber(ctx, store, key, s.now())
		return err
	})
	return res, err
}

// Configure sets prefix, suffix, padding and the reset flag for key. Counters
// are left untouched.
func (s *Service) Configure(ctx context.Context, cfg Sequence) (Sequence, error) {
	cfg.Key = strings.TrimSpace(cfg.Key)
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix(cfg.Key)
	}
	if cfg.PadLength == 0 {
		cfg.PadLength = s.defaults.PadLength
	}
	if err := cfg.validate(); err != nil {
		return Sequence{}, err
	}
	cfg.CurrentYear = s.now().Year()
	var out Sequence
	err := s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		var err error
		out, err = store.Configure(ctx, cfg)
		return err
	})
	if err != nil {
		return Sequence{}, err
	}
	s.logger.Info("sequence configured", slog.String("key", out.Key), slog.String("prefix", out.Prefix),
		slog.Int("pad_length", out.PadLength), slog.Bool("reset_annually", out.ResetAnnually))
	return out, nil
}

// Get returns the current state of key without reserving anything.
func (s *Service) Get(ctx context.Context, key string) (Sequence, error) {
	return s.repo.Get(ctx, strings.TrimSpace(key))
}

// List returns every configured sequence.
func (s *Service) List(ctx context.Context) ([]Sequence, error) {
	return s.repo.List(ctx)
}

func (s *Service) defaultFor(key string, year int) Sequence {
	return Sequence{
		Key:           key,
		Prefix:        DefaultPrefix(key),
		PadLength:     s.defaults.PadLength,
		CurrentYear:   year,
		ResetAnnually: s.defaults.ResetAnnually,
	}
}
