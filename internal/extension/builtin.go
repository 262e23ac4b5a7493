package extension

import (
	"context"
	"fmt"
	"sync"

	"svcctl/internal/services"
	"svcctl/pkg/logging"
)

// Built-in service type names.
const (
	TypeConnectionPool = "connection-pool"
	TypeSchemaRegistry = "schema-registry"
	TypeCache          = "cache"
)

// DefaultPoolSize is the number of connection slots a pool opens.
const DefaultPoolSize = 8

var builtinTypes = map[string]Constructor{
	TypeConnectionPool: func() services.Instance { return NewConnectionPool(DefaultPoolSize) },
	TypeSchemaRegistry: func() services.Instance { return NewSchemaRegistry() },
	TypeCache:          func() services.Instance { return NewCache() },
}

// ConnectionPool hands out a fixed number of connection slots while enabled.
type ConnectionPool struct {
	size int

	mu    sync.Mutex
	slots chan struct{}
}

// NewConnectionPool creates a disabled pool with size slots.
func NewConnectionPool(size int) *ConnectionPool {
	return &ConnectionPool{size: size}
}

func (p *ConnectionPool) Enable(ctx context.Context) error {
	if p.size <= 0 {
		return fmt.Errorf("connection pool size must be positive, got %d", p.size)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.slots = make(chan struct{}, p.size)
	logging.Debug("Extension", "Connection pool opened with %d slots", p.size)
	return nil
}

func (p *ConnectionPool) Disable(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.slots); n > 0 {
		logging.Warn("Extension", "Closing connection pool with %d connections in use", n)
	}
	p.slots = nil
	return nil
}

// Acquire takes a slot, blocking until one is free or ctx is done.
func (p *ConnectionPool) Acquire(ctx context.Context) error {
	p.mu.Lock()
	slots := p.slots
	p.mu.Unlock()

	if slots == nil {
		return fmt.Errorf("connection pool is not enabled")
	}
	select {
	case slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot taken with Acquire.
func (p *ConnectionPool) Release() {
	p.mu.Lock()
	slots := p.slots
	p.mu.Unlock()

	if slots == nil {
		return
	}
	select {
	case <-slots:
	default:
	}
}

// InUse returns the number of acquired slots.
func (p *ConnectionPool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}

// SchemaRegistry stores named schemas while enabled.
type SchemaRegistry struct {
	mu      sync.RWMutex
	enabled bool
	schemas map[string]string
}

func NewSchemaRegistry() *SchemaRegistry {
	return &SchemaRegistry{}
}

func (r *SchemaRegistry) Enable(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas = make(map[string]string)
	r.enabled = true
	return nil
}

func (r *SchemaRegistry) Disable(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas = nil
	r.enabled = false
	return nil
}

func (r *SchemaRegistry) Put(name, schema string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled {
		return fmt.Errorf("schema registry is not enabled")
	}
	r.schemas[name] = schema
	return nil
}

func (r *SchemaRegistry) Get(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schema, ok := r.schemas[name]
	return schema, ok
}

// Cache is an in-memory key/value store that is cleared on disable.
type Cache struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

func NewCache() *Cache {
	return &Cache{}
}

func (c *Cache) Enable(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]byte)
	return nil
}

func (c *Cache) Disable(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
	return nil
}

func (c *Cache) Set(key string, value []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		return false
	}
	c.entries[key] = value
	return true
}

func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
