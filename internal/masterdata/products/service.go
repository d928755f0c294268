package products

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/odyssey-erp/odyssey-books/internal/masterdata"
	"github.com/odyssey-erp/odyssey-books/internal/money"
	"github.com/odyssey-erp/odyssey-books/internal/observability"
	"github.com/odyssey-erp/odyssey-books/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

const (
	entity      = "product"
	defaultUnit = "pcs"
)

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

func (s *Service) List(ctx context.Context, filters masterdata.ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, filters.Normalize())
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, fmt.Errorf("%w: invalid product id %d", shared.ErrInvalidInput, id)
	}
	var p Product
	err := s.cache.Fetch(ctx, s.key(id), &p, func(ctx context.Context) (any, error) {
		return s.repo.Get(ctx, id)
	})
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

// Create validates shape, then prices: UnitPrice must be a non-negative
// decimal and VATRate a percentage.
func (s *Service) Create(ctx context.Context, in CreateInput) (Product, error) {
	in.SKU = strings.TrimSpace(in.SKU)
	in.Name = strings.TrimSpace(in.Name)
	in.Unit = strings.TrimSpace(in.Unit)
	if in.Unit == "" {
		in.Unit = defaultUnit
	}
	if err := shared.ValidateStruct(in); err != nil {
		return Product{}, err
	}
	cents, err := parsePrice(in.UnitPrice)
	if err != nil {
		return Product{}, err
	}
	in.unitPriceCents = cents
	if in.VATRate, err = normalizeRate(in.VATRate); err != nil {
		return Product{}, err
	}

	p, err := s.repo.Create(ctx, in)
	if err != nil {
		return Product{}, err
	}
	s.logger.Info("product created", slog.Int64("id", p.ID), slog.String("sku", p.SKU))
	return p, nil
}

// Update applies a partial update guarded by in.RowVersion.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (Product, error) {
	if in.RowVersion == nil {
		return Product{}, fmt.Errorf("%w: product %d", shared.ErrMissingVersion, id)
	}
	in.SKU = trimmed(in.SKU)
	in.Name = trimmed(in.Name)
	in.Unit = trimmed(in.Unit)
	if err := shared.ValidateStruct(in); err != nil {
		return Product{}, err
	}
	if in.empty() {
		return Product{}, masterdata.ErrEmptyPatch
	}
	if in.UnitPrice != nil {
		cents, err := parsePrice(*in.UnitPrice)
		if err != nil {
			return Product{}, err
		}
		in.unitPriceCents = &cents
	}
	if in.VATRate != nil {
		rate, err := normalizeRate(*in.VATRate)
		if err != nil {
			return Product{}, err
		}
		in.VATRate = &rate
	}

	updated, err := s.repo.Update(ctx, id, in)
	if err != nil {
		s.cache.Delete(ctx, s.key(id))
		if errors.Is(err, shared.ErrConcurrentUpdate) {
			s.metrics.VersionConflict(entity)
		}
		return Product{}, err
	}
	s.cache.Store(ctx, s.key(id), updated)
	return updated, nil
}

func (s *Service) key(id int64) string {
	return s.cache.Key(strconv.FormatInt(id, 10))
}

func parsePrice(v string) (int64, error) {
	cents, err := money.ToCentsDefault(v)
	if err != nil {
		return 0, err
	}
	if cents < 0 {
		return 0, fmt.Errorf("%w: negative price %q", money.ErrInvalidMoneyFormat, v)
	}
	return cents, nil
}

func normalizeRate(rate string) (string, error) {
	if strings.TrimSpace(rate) == "" {
		return "0", nil
	}
	return money.NormalizeRate(rate)
}
