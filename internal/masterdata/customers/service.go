package customers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/odyssey-erp/odyssey-books/internal/masterdata"
	"github.com/odyssey-erp/odyssey-books/internal/observability"
	"github.com/odyssey-erp/odyssey-books/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

const entity = "customer"

type Service struct {
	repo    Repository
	cache   *cache.JSON
	metrics *observability.Metrics
	logger  *slog.Logger
}

func NewService(repo Repository, cache *cache.JSON, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, metrics: metrics, logger: logger}
}

func (s *Service) List(ctx context.Context, filters masterdata.ListFilters) ([]Customer, int, error) {
	return s.repo.List(ctx, filters.Normalize())
}

// Get reads through the cache. Misses and cache outages fall back to the repository.
func (s *Service) Get(ctx context.Context, id int64) (Customer, error) {
	if id <= 0 {
		return Customer{}, fmt.Errorf("%w: invalid customer id %d", shared.ErrInvalidInput, id)
	}
	var c Customer
	err := s.cache.Fetch(ctx, s.key(id), &c, func(ctx context.Context) (any, error) {
		return s.repo.Get(ctx, id)
	})
	if err != nil {
		return Customer{}, err
	}
	return c, nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Customer, error) {
	in.normalize()
	if err := shared.ValidateStruct(in); err != nil {
		return Customer{}, err
	}
	c, err := s.repo.Create(ctx, in)
	if err != nil {
		return Customer{}, err
	}
	s.logger.Info("customer created", slog.Int64("id", c.ID), slog.String("code", c.Code))
	return c, nil
}

// Update applies a partial update guarded by in.RowVersion. A stale version
// returns CONCURRENT_UPDATE and leaves the stored record untouched.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (Customer, error) {
	if in.RowVersion == nil {
		return Customer{}, fmt.Errorf("%w: customer %d", shared.ErrMissingVersion, id)
	}
	in.normalize()
	if err := shared.ValidateStruct(in); err != nil {
		return Customer{}, err
	}
	if in.empty() {
		return Customer{}, masterdata.ErrEmptyPatch
	}

	updated, err := s.repo.Update(ctx, id, in)
	if err != nil {
		// A conflict also evicts: the caller is about to reload.
		s.cache.Delete(ctx, s.key(id))
		if errors.Is(err, shared.ErrConcurrentUpdate) {
			s.metrics.VersionConflict(entity)
			s.logger.Info("customer update conflict", slog.Int64("id", id), slog.Int64("row_version", *in.RowVersion))
		}
		return Customer{}, err
	}
	s.cache.Store(ctx, s.key(id), updated)
	return updated, nil
}

func (s *Service) key(id int64) string {
	return s.cache.Key(strconv.FormatInt(id, 10))
}
