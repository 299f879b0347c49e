package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bekzodov/meddist-ai-assistant/internal/crm"
	"github.com/bekzodov/meddist-ai-assistant/internal/observability/metrics"
	"github.com/bekzodov/meddist-ai-assistant/pkg/logging"
)

// DefaultTTL is the freshness window for catalog snapshots.
const DefaultTTL = 15 * time.Minute

// Kind identifies which catalog a caller wants.
type Kind string

const (
	KindPriceList    Kind = "pricelist"
	KindCompanyDrugs Kind = "company_drugs"
)

// Source fetches catalog snapshots from the CRM.
type Source interface {
	GetPriceList(ctx context.Context) ([]crm.PriceListItem, error)
	GetCompanyDrugs(ctx context.Context) ([]crm.CompanyDrug, error)
}

type snapshot[T any] struct {
	items     []T
	fetchedAt time.Time
}

func (s snapshot[T]) fresh(ttl time.Duration) bool {
	return !s.fetchedAt.IsZero() && time.Since(s.fetchedAt) < ttl
}

// Cache serves the price list and company drug list with bounded staleness.
// A read during a refresh observes either the old or the new snapshot, never
// a partially replaced one; concurrent refreshes are tolerated because the
// source calls are idempotent reads.
type Cache struct {
	source  Source
	ttl     time.Duration
	logger  *logging.Logger
	metrics *metrics.AssistantMetrics

	mu        sync.RWMutex
	priceList snapshot[crm.PriceListItem]
	drugs     snapshot[crm.CompanyDrug]
}

// NewCache creates a catalog cache around the CRM source.
func NewCache(source Source, ttl time.Duration, logger *logging.Logger, m *metrics.AssistantMetrics) *Cache {
	if source == nil {
		panic("catalog: source cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Cache{
		source:  source,
		ttl:     ttl,
		logger:  logger,
		metrics: m,
	}
}

// PriceList returns the current price list snapshot, refreshing it when stale.
func (c *Cache) PriceList(ctx context.Context) ([]crm.PriceListItem, error) {
	c.mu.RLock()
	snap := c.priceList
	c.mu.RUnlock()
	if snap.fresh(c.ttl) {
		return snap.items, nil
	}

	items, err := c.source.GetPriceList(ctx)
	if err != nil {
		c.metrics.ObserveCatalogRefresh(string(KindPriceList), "error")
		return nil, fmt.Errorf("catalog: price list refresh failed: %w", err)
	}
	c.metrics.ObserveCatalogRefresh(string(KindPriceList), "ok")
	c.logger.Debug("price list refreshed", "items", len(items))

	c.mu.Lock()
	c.priceList = snapshot[crm.PriceListItem]{items: items, fetchedAt: time.Now()}
	c.mu.Unlock()
	return items, nil
}

// CompanyDrugs returns the current company drug snapshot, refreshing it when stale.
func (c *Cache) CompanyDrugs(ctx context.Context) ([]crm.CompanyDrug, error) {
	c.mu.RLock()
	snap := c.drugs
	c.mu.RUnlock()
	if snap.fresh(c.ttl) {
		return snap.items, nil
	}

	items, err := c.source.GetCompanyDrugs(ctx)
	if err != nil {
		c.metrics.ObserveCatalogRefresh(string(KindCompanyDrugs), "error")
		return nil, fmt.Errorf("catalog: company drugs refresh failed: %w", err)
	}
	c.metrics.ObserveCatalogRefresh(string(KindCompanyDrugs), "ok")
	c.logger.Debug("company drugs refreshed", "items", len(items))

	c.mu.Lock()
	c.drugs = snapshot[crm.CompanyDrug]{items: items, fetchedAt: time.Now()}
	c.mu.Unlock()
	return items, nil
}
