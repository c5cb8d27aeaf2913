package official

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultCatalogTTL is how long a persisted snapshot counts as fresh.
const DefaultCatalogTTL = 6 * time.Hour

// CatalogService owns the tiered sourcing policy for the rate catalog.
// GetCatalog never fails outward: the catalog only populates a UI select,
// so every upstream problem is absorbed and reported through the
// snapshot's Source and Note fields instead.
type CatalogService struct {
	client *Client
	store  *SnapshotStore
	ttl    time.Duration
	group  singleflight.Group
	log    *zap.Logger
}

// NewCatalogService creates a catalog service. A zero ttl selects
// DefaultCatalogTTL.
func NewCatalogService(client *Client, store *SnapshotStore, ttl time.Duration, log *zap.Logger) *CatalogService {
	if ttl <= 0 {
		ttl = DefaultCatalogTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CatalogService{
		client: client,
		store:  store,
		ttl:    ttl,
		log:    log.Named("catalog"),
	}
}

// catalogStrategy tries one sourcing tier. Returning (nil, err) moves the
// chain on to the next tier; the final tier always succeeds.
type catalogStrategy func(ctx context.Context, prior *CatalogSnapshot, priorErr error) (*CatalogSnapshot, error)

// GetCatalog resolves the catalog through the strategy chain:
// fresh cache, official fetch, stale cache, static fallback.
func (s *CatalogService) GetCatalog(ctx context.Context) *CatalogSnapshot {
	cached, err := s.store.Load()
	if err != nil {
		s.log.Warn("snapshot load failed", zap.Error(err))
		cached = nil
	}

	strategies := []catalogStrategy{
		s.fromFreshCache,
		s.fromOfficial,
		s.fromStaleCache,
		s.fromStatic,
	}

	var lastErr error
	for _, strategy := range strategies {
		snap, err := strategy(ctx, cached, lastErr)
		if snap != nil {
			return snap
		}
		if err != nil {
			lastErr = err
		}
	}

	// Unreachable: fromStatic always returns a snapshot.
	return s.staticSnapshot(lastErr)
}

func (s *CatalogService) fromFreshCache(_ context.Context, cached *CatalogSnapshot, _ error) (*CatalogSnapshot, error) {
	if cached == nil {
		return nil, nil
	}
	age := time.Since(cached.UpdatedAt)
	if age < 0 || age >= s.ttl {
		return nil, nil
	}
	return &CatalogSnapshot{
		Items:     cached.Items,
		UpdatedAt: cached.UpdatedAt,
		Source:    SourceCache,
		Note:      "Tasas desde caché local.",
	}, nil
}

// fromOfficial fetches and parses the live form page. Concurrent requests
// that all find the cache stale collapse into one upstream round trip.
func (s *CatalogService) fromOfficial(ctx context.Context, _ *CatalogSnapshot, _ error) (*CatalogSnapshot, error) {
	v, err, _ := s.group.Do("catalog", func() (any, error) {
		page, err := s.client.FetchFormPage(ctx)
		if err != nil {
			return nil, err
		}
		items, err := ParseRateCatalog(page.Body)
		if err != nil {
			return nil, err
		}

		snap := &CatalogSnapshot{
			Items:     items,
			UpdatedAt: time.Now().UTC(),
			Source:    SourceOfficial,
		}
		if err := s.store.Save(snap); err != nil {
			// Non-fatal: the caller still gets live data.
			s.log.Warn("snapshot save failed", zap.Error(err))
		}
		return snap, nil
	})
	if err != nil {
		s.log.Warn("official catalog fetch failed", zap.String("kind", ErrorKind(err)), zap.Error(err))
		return nil, err
	}
	return v.(*CatalogSnapshot), nil
}

func (s *CatalogService) fromStaleCache(_ context.Context, cached *CatalogSnapshot, fetchErr error) (*CatalogSnapshot, error) {
	if cached == nil {
		return nil, nil
	}
	return &CatalogSnapshot{
		Items:     cached.Items,
		UpdatedAt: cached.UpdatedAt,
		Source:    SourceCacheFallback,
		Note:      fmt.Sprintf("No se pudo refrescar tasas oficiales (%s). Se usa caché previa.", ErrorKind(fetchErr)),
	}, nil
}

func (s *CatalogService) fromStatic(_ context.Context, _ *CatalogSnapshot, fetchErr error) (*CatalogSnapshot, error) {
	return s.staticSnapshot(fetchErr), nil
}

func (s *CatalogService) staticSnapshot(fetchErr error) *CatalogSnapshot {
	return &CatalogSnapshot{
		Items:     FallbackCatalog(),
		UpdatedAt: time.Now().UTC(),
		Source:    SourceFallback,
		Note:      fmt.Sprintf("No se pudo conectar al sitio oficial (%s). Se usa lista base.", ErrorKind(fetchErr)),
	}
}
