// Package schemacache caches per-organization schema snapshots in front of a
// search.SchemaLoader: an in-process expirable LRU, then an optional shared
// remote cache, then the loader itself.
package schemacache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/platinummonkey/folio/pkg/async"
	"github.com/platinummonkey/folio/pkg/observability"
	"github.com/platinummonkey/folio/pkg/search"
)

const (
	layerMemory = "memory"
	layerRemote = "redis"

	defaultSize         = 1000
	defaultTTL          = time.Minute
	defaultWriteTimeout = 2 * time.Second
)

// Remote is a cache shared between service instances
type Remote interface {
	GetSchema(ctx context.Context, organizationID string) (*search.Schema, error)
	SetSchema(ctx context.Context, organizationID string, schema *search.Schema) error
	InvalidateSchema(ctx context.Context, organizationID string) error
}

// Config sizes the in-process layer
type Config struct {
	Size int
	TTL  time.Duration
}

// Cache is a search.SchemaLoader. Loads of the same organization that miss
// both layers at once share one call to the underlying loader.
type Cache struct {
	loader       search.SchemaLoader
	memory       *lru.LRU[string, *search.Schema]
	remote       Remote
	metrics      *observability.SearchMetrics
	logger       *observability.Logger
	writeTimeout time.Duration
	group        singleflight.Group
}

// Option configures a Cache
type Option func(*Cache)

// WithRemote adds a shared cache layer between memory and the loader
func WithRemote(r Remote) Option {
	return func(c *Cache) { c.remote = r }
}

// WithMetrics counts hits per layer and loader misses
func WithMetrics(m *observability.SearchMetrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithLogger sets the logger used when the remote layer fails
func WithLogger(l *observability.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithWriteTimeout bounds the background write to the remote layer
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Cache) { c.writeTimeout = d }
}

// New wraps loader with the cache layers
func New(loader search.SchemaLoader, cfg Config, opts ...Option) *Cache {
	if cfg.Size <= 0 {
		cfg.Size = defaultSize
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	c := &Cache{
		loader:       loader,
		memory:       lru.NewLRU[string, *search.Schema](cfg.Size, nil, cfg.TTL),
		writeTimeout: defaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LoadSchema returns the organization's snapshot from the first layer that
// has it. Remote failures fall through to the loader.
func (c *Cache) LoadSchema(ctx context.Context, organizationID string) (*search.Schema, error) {
	if schema, ok := c.memory.Get(organizationID); ok {
		c.hit(layerMemory)
		return schema, nil
	}

	v, err, _ := c.group.Do(organizationID, func() (interface{}, error) {
		return c.load(ctx, organizationID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*search.Schema), nil
}

func (c *Cache) load(ctx context.Context, organizationID string) (*search.Schema, error) {
	if c.remote != nil {
		schema, err := c.remote.GetSchema(ctx, organizationID)
		switch {
		case err != nil:
			c.log(ctx).WithError(err).WithField("organization_id", organizationID).Warn("remote schema cache read failed")
		case schema != nil:
			c.memory.Add(organizationID, schema)
			c.hit(layerRemote)
			return schema, nil
		}
	}

	schema, err := c.loader.LoadSchema(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.SchemaCacheMiss()
	}
	c.memory.Add(organizationID, schema)

	if c.remote != nil {
		async.SafeGo(context.WithoutCancel(ctx), c.writeTimeout, "schema cache write-back", func(ctx context.Context) error {
			return c.remote.SetSchema(ctx, organizationID, schema)
		})
	}
	return schema, nil
}

// Invalidate drops the organization's snapshot from every layer
func (c *Cache) Invalidate(ctx context.Context, organizationID string) error {
	c.memory.Remove(organizationID)
	if c.remote == nil {
		return nil
	}
	return c.remote.InvalidateSchema(ctx, organizationID)
}

// Len reports the number of snapshots held in memory
func (c *Cache) Len() int {
	return c.memory.Len()
}

func (c *Cache) hit(layer string) {
	if c.metrics != nil {
		c.metrics.SchemaCacheHit(layer)
	}
}

func (c *Cache) log(ctx context.Context) *observability.Logger {
	if c.logger != nil {
		return c.logger
	}
	return observability.FromContext(ctx)
}
