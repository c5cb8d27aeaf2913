package official

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func tempStore(t *testing.T) *SnapshotStore {
	t.Helper()
	return NewSnapshotStore(filepath.Join(t.TempDir(), "chaco-rates-cache.json"))
}

func TestCatalogServiceOfficialFetchPersists(t *testing.T) {
	var gets atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gets.Add(1)
		writeLatin1(t, w, formPageFixture)
	}))
	defer srv.Close()

	store := tempStore(t)
	svc := NewCatalogService(NewClientForURL(srv.URL), store, time.Hour, nil)

	snap := svc.GetCatalog(context.Background())
	if snap.Source != SourceOfficial {
		t.Fatalf("source = %q, want %q", snap.Source, SourceOfficial)
	}
	if len(snap.Items) == 0 {
		t.Fatal("empty catalog from official fetch")
	}

	persisted, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if persisted == nil || len(persisted.Items) != len(snap.Items) {
		t.Fatalf("persisted snapshot mismatch: %+v", persisted)
	}
}

func TestCatalogServiceFreshCacheSkipsUpstream(t *testing.T) {
	var gets atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gets.Add(1)
		writeLatin1(t, w, formPageFixture)
	}))
	defer srv.Close()

	store := tempStore(t)
	if err := store.Save(&CatalogSnapshot{
		Items:     FallbackCatalog(),
		UpdatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	svc := NewCatalogService(NewClientForURL(srv.URL), store, time.Hour, nil)
	snap := svc.GetCatalog(context.Background())

	if snap.Source != SourceCache {
		t.Fatalf("source = %q, want %q", snap.Source, SourceCache)
	}
	if n := gets.Load(); n != 0 {
		t.Errorf("upstream GETs = %d, want 0 with a fresh snapshot", n)
	}
}

func TestCatalogServiceStaleCacheFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "mantenimiento", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	store := tempStore(t)
	stale := time.Now().Add(-48 * time.Hour).UTC()
	if err := store.Save(&CatalogSnapshot{Items: FallbackCatalog(), UpdatedAt: stale}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	svc := NewCatalogService(NewClientForURL(srv.URL), store, time.Hour, nil)
	snap := svc.GetCatalog(context.Background())

	if snap.Source != SourceCacheFallback {
		t.Fatalf("source = %q, want %q", snap.Source, SourceCacheFallback)
	}
	if !snap.UpdatedAt.Equal(stale) {
		t.Errorf("updatedAt = %v, want the stale snapshot's %v", snap.UpdatedAt, stale)
	}
	if snap.Note == "" {
		t.Error("stale fallback must carry a note with the failure reason")
	}
}

func TestCatalogServiceStaticFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "mantenimiento", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	svc := NewCatalogService(NewClientForURL(srv.URL), tempStore(t), time.Hour, nil)
	snap := svc.GetCatalog(context.Background())

	if snap.Source != SourceFallback {
		t.Fatalf("source = %q, want %q", snap.Source, SourceFallback)
	}
	if len(snap.Items) != len(FallbackCatalog()) {
		t.Errorf("got %d items, want static list of %d", len(snap.Items), len(FallbackCatalog()))
	}
}

func TestCatalogServiceWAFBlockedFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeLatin1(t, w, `<html><h1>Acción no Permitida</h1></html>`)
	}))
	defer srv.Close()

	svc := NewCatalogService(NewClientForURL(srv.URL), tempStore(t), time.Hour, nil)
	snap := svc.GetCatalog(context.Background())

	if snap.Source != SourceFallback {
		t.Fatalf("source = %q, want %q", snap.Source, SourceFallback)
	}
}

func TestSnapshotStoreRoundTrip(t *testing.T) {
	store := tempStore(t)

	loaded, err := store.Load()
	if err != nil || loaded != nil {
		t.Fatalf("Load() on missing file = (%+v, %v), want (nil, nil)", loaded, err)
	}

	when := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	if err := store.Save(&CatalogSnapshot{Items: FallbackCatalog(), UpdatedAt: when}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err = store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded == nil || !loaded.UpdatedAt.Equal(when) {
		t.Fatalf("loaded = %+v, want updatedAt %v", loaded, when)
	}
	if loaded.Source != SourceOfficial {
		t.Errorf("loaded source = %q, want %q", loaded.Source, SourceOfficial)
	}
}
