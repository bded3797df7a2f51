package iconcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/mgomes/launchr/internal/fsutil"
)

const (
	Extension = ".png"
	keyLength = 16
)

var errEmptyOutput = errors.New("generator produced no output")

// Generator returns the encoded icon bytes.
type Generator func(ctx context.Context) ([]byte, error)

// FileGenerator writes the icon to dst, a temp path in the cache directory.
// It suits external tools that insist on writing files themselves.
type FileGenerator func(ctx context.Context, dst string) error

// Job is one unit of work for EnsureAll.
type Job struct {
	SourceKey string
	Generate  FileGenerator
}

// Key derives the cache key from the source identifier, not its content.
func Key(sourceKey string) string {
	sum := sha256.Sum256([]byte(sourceKey))
	return hex.EncodeToString(sum[:])[:keyLength]
}

// ResolveIconPath is a pure function of its arguments.
func ResolveIconPath(root, namespace, sourceKey string) string {
	return filepath.Join(root, namespace, Key(sourceKey)+Extension)
}

// Cache maps source identifiers to generated icon files under one plugin's
// private folder. A non-empty file at the derived path is a hit; files only
// appear there by atomic rename.
type Cache struct {
	root        string
	namespace   string
	iconSize    int
	parallelism int
	logger      *zap.Logger
	group       singleflight.Group
}

type Option func(*Cache)

// WithIconSize downscales generated raster icons so their longest edge is at
// most px. Zero disables it.
func WithIconSize(px int) Option {
	return func(c *Cache) { c.iconSize = px }
}

func WithParallelism(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.parallelism = n
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func New(root, namespace string, opts ...Option) *Cache {
	c := &Cache{
		root:        root,
		namespace:   namespace,
		parallelism: min(runtime.NumCPU()*2, 16),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("cache", namespace))
	return c
}

func (c *Cache) Dir() string {
	return filepath.Join(c.root, c.namespace)
}

func (c *Cache) EnsureDir() error {
	if err := os.MkdirAll(c.Dir(), 0755); err != nil {
		return fmt.Errorf("failed to create icon cache folder: %w", err)
	}
	return nil
}

func (c *Cache) Path(sourceKey string) string {
	return ResolveIconPath(c.root, c.namespace, sourceKey)
}

func (c *Cache) Has(sourceKey string) bool {
	return fsutil.NonEmptyFile(c.Path(sourceKey))
}

// EnsureGenerated makes sure an icon exists for sourceKey, calling gen only
// on a miss.
func (c *Cache) EnsureGenerated(ctx context.Context, sourceKey string, gen Generator) error {
	return c.EnsureGeneratedFile(ctx, sourceKey, func(ctx context.Context, dst string) error {
		data, err := gen(ctx)
		if err != nil {
			return err
		}
		return os.WriteFile(dst, data, 0644)
	})
}

// EnsureGeneratedFile is EnsureGenerated for generators that write a file.
// Concurrent calls for the same key run gen at most once.
func (c *Cache) EnsureGeneratedFile(ctx context.Context, sourceKey string, gen FileGenerator) error {
	path := c.Path(sourceKey)
	if fsutil.NonEmptyFile(path) {
		return nil
	}

	_, err, _ := c.group.Do(path, func() (any, error) {
		if fsutil.NonEmptyFile(path) {
			return nil, nil
		}
		return nil, c.generate(ctx, sourceKey, path, gen)
	})
	return err
}

func (c *Cache) generate(ctx context.Context, sourceKey, path string, gen FileGenerator) error {
	if err := c.EnsureDir(); err != nil {
		return &GenerationError{SourceKey: sourceKey, Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(c.Dir(), "."+Key(sourceKey)+".tmp-*"+Extension)
	if err != nil {
		return &GenerationError{SourceKey: sourceKey, Path: path, Err: err}
	}
	tmpPath := tmp.Name()
	tmp.Close()              //nolint:errcheck
	defer os.Remove(tmpPath) //nolint:errcheck

	if err := gen(ctx, tmpPath); err != nil {
		return &GenerationError{SourceKey: sourceKey, Path: path, Err: err}
	}
	if !fsutil.NonEmptyFile(tmpPath) {
		return &GenerationError{SourceKey: sourceKey, Path: path, Err: errEmptyOutput}
	}

	if c.iconSize > 0 {
		if err := normalize(tmpPath, c.iconSize); err != nil {
			c.logger.Debug("keeping icon unscaled", zap.String("source", sourceKey), zap.Error(err))
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return &GenerationError{SourceKey: sourceKey, Path: path, Err: err}
	}
	return nil
}

// EnsureAll runs every job concurrently, bounded by the cache parallelism.
// The result has one entry per job; a failure never cancels its siblings.
func (c *Cache) EnsureAll(ctx context.Context, jobs []Job) []error {
	errs := make([]error, len(jobs))

	var g errgroup.Group
	g.SetLimit(c.parallelism)
	for i, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			errs[i] = c.EnsureGeneratedFile(ctx, job.SourceKey, job.Generate)
			if errs[i] != nil {
				c.logger.Warn("icon generation failed", zap.String("source", job.SourceKey), zap.Error(errs[i]))
			}
			return nil
		})
	}
	_ = g.Wait()

	return errs
}
