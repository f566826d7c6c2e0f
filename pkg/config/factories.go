package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/marmos91/fotoprobe/internal/logger"
	"github.com/marmos91/fotoprobe/pkg/catalog"
	"github.com/marmos91/fotoprobe/pkg/content"
	contentFs "github.com/marmos91/fotoprobe/pkg/content/fs"
	contentMemory "github.com/marmos91/fotoprobe/pkg/content/memory"
	contentS3 "github.com/marmos91/fotoprobe/pkg/content/s3"
	"github.com/marmos91/fotoprobe/pkg/exif"
	"github.com/marmos91/fotoprobe/pkg/metrics"
	"github.com/marmos91/fotoprobe/pkg/retrieval"
	"github.com/marmos91/fotoprobe/pkg/session/remote"
	"github.com/marmos91/fotoprobe/pkg/session/store"
	"github.com/marmos91/fotoprobe/pkg/session/telegram"
)

// ============================================================================
// Retrieval
// ============================================================================

// ToRetrievalConfig converts the configured limits.
func (c RetrievalConfig) ToRetrievalConfig() retrieval.Config {
	return retrieval.Config{
		InitialWindowBytes:  uint64(c.InitialWindow),
		MaxTotalBytes:       uint64(c.MaxTotal),
		MaxChunkBytes:       uint64(c.MaxChunk),
		MaxAttemptsPerChunk: c.MaxAttemptsPerChunk,
		RetrievalTimeout:    c.Timeout,
		GrowthFactor:        c.GrowthFactor,
		MaxCycles:           c.MaxCycles,
		BackoffInitial:      c.BackoffInitial,
		BackoffMax:          c.BackoffMax,
	}
}

// NewOrchestrator builds an orchestrator over session with the EXIF
// decoder and the configured limits.
func NewOrchestrator(cfg *Config, session retrieval.Session, m metrics.RetrievalMetrics) (*retrieval.Orchestrator, error) {
	return retrieval.New(session, exif.NewDecoder(), cfg.Retrieval.ToRetrievalConfig(), retrieval.WithMetrics(m))
}

// ============================================================================
// Content Stores
// ============================================================================

// CreateContentStore creates a content store based on configuration.
//
// Supported types:
//   - "filesystem": pkg/content/fs (one file per content ID)
//   - "memory": pkg/content/memory (ephemeral)
//   - "s3": pkg/content/s3 (Amazon S3 or compatible storage)
func CreateContentStore(ctx context.Context, cfg *ContentConfig, m metrics.ContentMetrics) (content.WritableStore, error) {
	switch cfg.Type {
	case "filesystem":
		return createFilesystemContentStore(ctx, cfg.Filesystem)
	case "memory":
		return contentMemory.NewMemoryContentStore(ctx)
	case "s3":
		return createS3ContentStore(ctx, cfg.S3, m)
	default:
		return nil, fmt.Errorf("unknown content store type: %q", cfg.Type)
	}
}

// createFilesystemContentStore creates a filesystem-based content store.
func createFilesystemContentStore(ctx context.Context, options map[string]any) (content.WritableStore, error) {
	type FilesystemContentStoreConfig struct {
		Path string `mapstructure:"path" validate:"required"`
	}

	var storeCfg FilesystemContentStoreConfig
	if err := decodeOptions(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode filesystem content store config: %w", err)
	}
	if err := validateBackend("content.filesystem", &storeCfg); err != nil {
		return nil, err
	}

	store, err := contentFs.NewFSContentStore(ctx, storeCfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem content store: %w", err)
	}
	return store, nil
}

// S3ContentStoreOptions is the content.s3 section.
type S3ContentStoreOptions struct {
	Region          string `mapstructure:"region" validate:"required"`
	Bucket          string `mapstructure:"bucket" validate:"required"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
	MaxRetries      int    `mapstructure:"max_retries" validate:"min=0"`
}

// createS3ContentStore creates an S3-based content store.
func createS3ContentStore(ctx context.Context, options map[string]any, m metrics.ContentMetrics) (content.WritableStore, error) {
	var storeCfg S3ContentStoreOptions
	if err := decodeOptions(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 content store config: %w", err)
	}
	if err := validateBackend("content.s3", &storeCfg); err != nil {
		return nil, err
	}

	client, err := newS3Client(ctx, storeCfg)
	if err != nil {
		return nil, err
	}

	store, err := contentS3.NewS3ContentStore(ctx, contentS3.S3ContentStoreConfig{
		Client:    client,
		Bucket:    storeCfg.Bucket,
		KeyPrefix: storeCfg.KeyPrefix,
		Metrics:   m,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 content store: %w", err)
	}

	logger.Info("S3 content store initialized: bucket=%s, region=%s, prefix=%s",
		storeCfg.Bucket, storeCfg.Region, storeCfg.KeyPrefix)

	return store, nil
}

// newS3Client builds the SDK client. Credentials fall back to the default
// chain when no static keys are configured.
func newS3Client(ctx context.Context, storeCfg S3ContentStoreOptions) (*s3.Client, error) {
	configOptions := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(storeCfg.Region),
	}

	if storeCfg.AccessKeyID != "" && storeCfg.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(storeCfg.AccessKeyID, storeCfg.SecretAccessKey, "")
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	// Ranged GETs are small; retry throttling and 5xx harder than the SDK
	// default of 3 attempts.
	maxRetries := storeCfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	cfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		// MinIO and Localstack need path-style addressing.
		if storeCfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(storeCfg.Endpoint)
			o.UsePathStyle = true
		}
		if storeCfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	}), nil
}

// ============================================================================
// Catalogs
// ============================================================================

// CreateCatalog creates a catalog based on configuration.
//
// Supported types:
//   - "memory": ephemeral, lost on restart
//   - "badger": BadgerDB, persistent
func CreateCatalog(ctx context.Context, cfg *CatalogConfig) (catalog.Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case "memory":
		return catalog.NewMemoryCatalog(), nil
	case "badger":
		var badgerCfg catalog.BadgerConfig
		if err := decodeOptions(cfg.Badger, &badgerCfg); err != nil {
			return nil, fmt.Errorf("failed to decode badger catalog config: %w", err)
		}
		cat, err := catalog.NewBadgerCatalog(ctx, badgerCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create badger catalog: %w", err)
		}
		return cat, nil
	default:
		return nil, fmt.Errorf("unknown catalog type: %q (supported: memory, badger)", cfg.Type)
	}
}

// Library is the local media library: content plus catalog.
type Library struct {
	Content content.WritableStore
	Catalog catalog.Catalog
}

// Close closes both halves.
func (l *Library) Close() error {
	return errors.Join(l.Catalog.Close(), l.Content.Close())
}

// OpenLibrary creates the configured content store and catalog.
func OpenLibrary(ctx context.Context, cfg *Config, m metrics.ContentMetrics) (*Library, error) {
	cs, err := CreateContentStore(ctx, &cfg.Content, m)
	if err != nil {
		return nil, err
	}
	cat, err := CreateCatalog(ctx, &cfg.Catalog)
	if err != nil {
		_ = cs.Close()
		return nil, err
	}
	return &Library{Content: cs, Catalog: cat}, nil
}

// ============================================================================
// Sessions
// ============================================================================

// StoreSessionOptions is the session.store section.
type StoreSessionOptions struct {
	// ChunkLimit caps single reads, 0 for none.
	ChunkLimit ByteSize `mapstructure:"chunk_limit" validate:"max=1048576"`
}

// RunSession opens the configured session, calls fn and closes the session
// when fn returns. Telegram sessions only exist inside the MTProto client
// loop, which is why this is callback-shaped.
func RunSession(ctx context.Context, cfg *Config, m metrics.ContentMetrics, fn func(ctx context.Context, s retrieval.Session) error) error {
	switch cfg.Session.Type {
	case "store":
		var opts StoreSessionOptions
		if err := decodeOptions(cfg.Session.Store, &opts); err != nil {
			return fmt.Errorf("failed to decode store session config: %w", err)
		}
		if err := validateBackend("session.store", &opts); err != nil {
			return err
		}

		lib, err := OpenLibrary(ctx, cfg, m)
		if err != nil {
			return err
		}
		s := store.New(lib.Catalog, lib.Content, store.WithChunkLimit(uint32(opts.ChunkLimit)))
		defer func() { _ = s.Close() }()
		return fn(ctx, s)

	case "remote":
		var remoteCfg remote.Config
		if err := decodeOptions(cfg.Session.Remote, &remoteCfg); err != nil {
			return fmt.Errorf("failed to decode remote session config: %w", err)
		}
		if err := validateBackend("session.remote", &remoteCfg); err != nil {
			return err
		}

		s, err := remote.Dial(ctx, remoteCfg)
		if err != nil {
			return fmt.Errorf("failed to connect to %s: %w", remoteCfg.Address, err)
		}
		defer func() { _ = s.Close() }()
		return fn(ctx, s)

	case "telegram":
		var tgCfg telegram.Config
		if err := decodeOptions(cfg.Session.Telegram, &tgCfg); err != nil {
			return fmt.Errorf("failed to decode telegram session config: %w", err)
		}
		if err := validateBackend("session.telegram", &tgCfg); err != nil {
			return err
		}
		return telegram.Run(ctx, tgCfg, func(ctx context.Context, s *telegram.Session) error {
			return fn(ctx, s)
		})

	default:
		return fmt.Errorf("unknown session type: %q", cfg.Session.Type)
	}
}
