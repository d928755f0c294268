package app

import (
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-books/internal/documents"
	"github.com/odyssey-erp/odyssey-books/internal/inventory"
	"github.com/odyssey-erp/odyssey-books/internal/masterdata/customers"
	"github.com/odyssey-erp/odyssey-books/internal/masterdata/products"
	"github.com/odyssey-erp/odyssey-books/internal/observability"
	"github.com/odyssey-erp/odyssey-books/internal/orders"
	"github.com/odyssey-erp/odyssey-books/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-books/internal/sequence"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

const defaultCacheTTL = 5 * time.Minute

// Services is the bookkeeping core handed to the routing layer.
type Services struct {
	Sequences *sequence.Service
	Inventory *inventory.Service
	Documents *documents.Service
	Orders    *orders.Service
	Customers *customers.Service
	Products  *products.Service
}

// ServiceDeps groups what NewServices wires together. Redis may be nil.
type ServiceDeps struct {
	Config  *Config
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Metrics *observability.Metrics
	Logger  *slog.Logger
}

// NewServices builds every core service over one pool.
func NewServices(deps ServiceDeps) *Services {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	defaults := sequence.Defaults{PadLength: 6, ResetAnnually: true}
	ttl := defaultCacheTTL
	if deps.Config != nil {
		defaults = sequence.Defaults{
			PadLength:     deps.Config.SequencePadLength,
			ResetAnnually: deps.Config.SequenceResetAnnually,
		}
		if deps.Config.CacheTTL > 0 {
			ttl = deps.Config.CacheTTL
		}
	}

	audit := shared.NewAuditLogger(deps.Pool)
	numbers := sequence.NewService(sequence.NewRepository(deps.Pool), defaults, deps.Metrics, logger)

	return &Services{
		Sequences: numbers,
		Inventory: inventory.NewService(inventory.NewRepository(deps.Pool), audit, deps.Metrics, logger),
		Documents: documents.NewService(documents.NewRepository(deps.Pool), numbers, audit, deps.Metrics, logger),
		Orders:    orders.NewService(orders.NewRepository(deps.Pool), numbers, audit, deps.Metrics, logger),
		Customers: customers.NewService(
			customers.NewRepository(deps.Pool),
			cache.NewJSON(deps.Redis, "customer", ttl, deps.Metrics, logger),
			deps.Metrics, logger),
		Products: products.NewService(
			products.NewRepository(deps.Pool),
			cache.NewJSON(deps.Redis, "product", ttl, deps.Metrics, logger),
			deps.Metrics, logger),
	}
}
