package config

import (
	"context"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/marmos91/fotoprobe/internal/testutil/exiftest"
	"github.com/marmos91/fotoprobe/pkg/metrics"
	"github.com/marmos91/fotoprobe/pkg/retrieval"
	"github.com/marmos91/fotoprobe/pkg/session/store"
)

func TestCreateContentStore_Filesystem(t *testing.T) {
	ctx := context.Background()
	cfg := &ContentConfig{
		Type: "filesystem",
		Filesystem: map[string]any{
			"path": t.TempDir(),
		},
	}

	cs, err := CreateContentStore(ctx, cfg, metrics.NewNoopContentMetrics())
	if err != nil {
		t.Fatalf("Failed to create filesystem content store: %v", err)
	}
	defer func() { _ = cs.Close() }()

	if cs == nil {
		t.Fatal("Expected non-nil store")
	}
}

func TestCreateContentStore_FilesystemMissingPath(t *testing.T) {
	ctx := context.Background()
	cfg := &ContentConfig{
		Type:       "filesystem",
		Filesystem: map[string]any{},
	}

	_, err := CreateContentStore(ctx, cfg, nil)
	if err == nil {
		t.Fatal("Expected error for missing path")
	}
	if !strings.Contains(err.Error(), "required") {
		t.Errorf("Expected 'required' error, got: %v", err)
	}
}

func TestCreateContentStore_Memory(t *testing.T) {
	ctx := context.Background()
	cfg := &ContentConfig{Type: "memory"}

	cs, err := CreateContentStore(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("Failed to create memory content store: %v", err)
	}
	_ = cs.Close()
}

func TestCreateContentStore_S3MissingBucket(t *testing.T) {
	ctx := context.Background()
	cfg := &ContentConfig{
		Type: "s3",
		S3:   map[string]any{"region": "eu-west-1"},
	}

	_, err := CreateContentStore(ctx, cfg, nil)
	if err == nil {
		t.Fatal("Expected error for S3 store without bucket")
	}
	if !strings.Contains(err.Error(), "Bucket") {
		t.Errorf("Expected bucket validation error, got: %v", err)
	}
}

func TestCreateContentStore_UnknownType(t *testing.T) {
	ctx := context.Background()
	cfg := &ContentConfig{Type: "tape"}

	_, err := CreateContentStore(ctx, cfg, nil)
	if err == nil {
		t.Fatal("Expected error for unknown content store type")
	}
	if !strings.Contains(err.Error(), "unknown content store type") {
		t.Errorf("Expected 'unknown content store type' error, got: %v", err)
	}
}

func TestCreateCatalog_Memory(t *testing.T) {
	cat, err := CreateCatalog(context.Background(), &CatalogConfig{Type: "memory"})
	if err != nil {
		t.Fatalf("Failed to create memory catalog: %v", err)
	}
	_ = cat.Close()
}

func TestCreateCatalog_Badger(t *testing.T) {
	cfg := &CatalogConfig{
		Type:   "badger",
		Badger: map[string]any{"path": t.TempDir()},
	}

	cat, err := CreateCatalog(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to create badger catalog: %v", err)
	}
	if err := cat.Close(); err != nil {
		t.Errorf("Failed to close badger catalog: %v", err)
	}
}

func TestCreateCatalog_UnknownType(t *testing.T) {
	_, err := CreateCatalog(context.Background(), &CatalogConfig{Type: "postgres"})
	if err == nil {
		t.Fatal("Expected error for unknown catalog type")
	}
}

func TestCreateCatalog_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := CreateCatalog(ctx, &CatalogConfig{Type: "memory"})
	if err == nil {
		t.Fatal("Expected error with canceled context")
	}
}

// libraryConfig returns a persistent library rooted in a temp dir, so a
// second OpenLibrary sees what the first one wrote.
func libraryConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()

	cfg := GetDefaultConfig()
	cfg.Content.Type = "filesystem"
	cfg.Content.Filesystem["path"] = dir + "/content"
	cfg.Catalog.Type = "badger"
	cfg.Catalog.Badger["path"] = dir + "/catalog"
	return cfg
}

func TestRunSession_Store(t *testing.T) {
	ctx := context.Background()
	cfg := libraryConfig(t)
	ref := retrieval.MessageRef{Peer: retrieval.PeerChat, PeerID: 7, AccessHash: 3, MessageID: 99}

	lib, err := OpenLibrary(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("OpenLibrary failed: %v", err)
	}
	photo := exiftest.JPEG(exiftest.TIFF(binary.BigEndian, exiftest.Sample()))
	if _, err := store.Ingest(ctx, lib.Catalog, lib.Content, ref, photo, store.IngestOptions{}); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if err := lib.Close(); err != nil {
		t.Fatalf("Library close failed: %v", err)
	}

	var outcome *retrieval.Outcome
	err = RunSession(ctx, cfg, nil, func(ctx context.Context, s retrieval.Session) error {
		o, err := NewOrchestrator(cfg, s, metrics.NewNoopRetrievalMetrics())
		if err != nil {
			return err
		}
		outcome = o.RetrieveMessage(ctx, ref)
		return nil
	})
	if err != nil {
		t.Fatalf("RunSession failed: %v", err)
	}
	if outcome.Status != retrieval.StatusSuccess {
		t.Fatalf("Expected success, got %s", outcome)
	}
}

func TestRunSession_StoreChunkLimitTooLarge(t *testing.T) {
	cfg := libraryConfig(t)
	cfg.Session.Store["chunk_limit"] = "2MiB"

	err := RunSession(context.Background(), cfg, nil, func(context.Context, retrieval.Session) error {
		t.Fatal("callback should not run")
		return nil
	})
	if err == nil {
		t.Fatal("Expected error for chunk limit above 1MiB")
	}
}

func TestRunSession_RemoteUnreachable(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Session.Type = "remote"
	// Port 1 on loopback refuses connections.
	cfg.Session.Remote["address"] = "127.0.0.1:1"
	cfg.Session.Remote["dial_timeout"] = "1s"

	err := RunSession(context.Background(), cfg, nil, func(context.Context, retrieval.Session) error {
		t.Fatal("callback should not run")
		return nil
	})
	if err == nil {
		t.Fatal("Expected dial error")
	}
}

func TestRunSession_TelegramMissingCredentials(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Session.Type = "telegram"

	err := RunSession(context.Background(), cfg, nil, func(context.Context, retrieval.Session) error {
		t.Fatal("callback should not run")
		return nil
	})
	if err == nil {
		t.Fatal("Expected validation error without app_id and app_hash")
	}
	if !strings.Contains(err.Error(), "session.telegram") {
		t.Errorf("Expected session.telegram error, got: %v", err)
	}
}

func TestRunSession_UnknownType(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Session.Type = "carrier-pigeon"

	if err := RunSession(context.Background(), cfg, nil, nil); err == nil {
		t.Fatal("Expected error for unknown session type")
	}
}

func TestCreateAdapters(t *testing.T) {
	cfg := GetDefaultConfig()
	backend := store.New(nil, nil)

	adapters, err := CreateAdapters(cfg, backend, nil)
	if err != nil {
		t.Fatalf("CreateAdapters failed: %v", err)
	}
	if len(adapters) != 1 || adapters[0].Protocol() != "FETCH" {
		t.Fatalf("Expected one FETCH adapter, got %d", len(adapters))
	}

	cfg.Adapters.Fetch.Enabled = false
	if _, err := CreateAdapters(cfg, backend, nil); err == nil {
		t.Fatal("Expected error with no adapters enabled")
	}
}

func TestInitializeMetrics_Disabled(t *testing.T) {
	cfg := GetDefaultConfig()

	m := InitializeMetrics(cfg)
	if m.Server != nil {
		t.Error("Expected no metrics server when disabled")
	}
	if m.Retrieval == nil || m.Fetch == nil || m.Content == nil {
		t.Error("Expected no-op collectors when disabled")
	}
}
