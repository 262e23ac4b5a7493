package extension

import (
	"fmt"
	"sort"
	"sync"

	"svcctl/internal/api"
	"svcctl/internal/services"
	"svcctl/pkg/logging"
)

// Constructor builds a fresh, unconfigured service instance.
type Constructor func() services.Instance

// Catalog maps service type names to constructors. It implements
// services.Factory.
type Catalog struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		constructors: make(map[string]Constructor),
	}
}

// Builtin returns a catalog holding the service types shipped with svcctl.
func Builtin() *Catalog {
	c := NewCatalog()
	for typeName, ctor := range builtinTypes {
		// names in builtinTypes are unique
		_ = c.Register(typeName, ctor)
	}
	return c
}

// Register adds a constructor for typeName. A type name can only be
// registered once.
func (c *Catalog) Register(typeName string, ctor Constructor) error {
	if typeName == "" {
		return fmt.Errorf("service type name cannot be empty")
	}
	if ctor == nil {
		return fmt.Errorf("constructor for service type %s cannot be nil", typeName)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.constructors[typeName]; exists {
		return fmt.Errorf("service type %s is already registered", typeName)
	}
	c.constructors[typeName] = ctor
	logging.Debug("Extension", "Registered controller service type %s", typeName)
	return nil
}

// Construct implements services.Factory.
func (c *Catalog) Construct(typeName string) (services.Instance, error) {
	c.mu.RLock()
	ctor, ok := c.constructors[typeName]
	c.mu.RUnlock()

	if !ok {
		return nil, &api.UnknownTypeError{TypeName: typeName}
	}
	return ctor(), nil
}

// Types returns the registered type names, sorted.
func (c *Catalog) Types() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	types := make([]string, 0, len(c.constructors))
	for typeName := range c.constructors {
		types = append(types, typeName)
	}
	sort.Strings(types)
	return types
}

// Has reports whether typeName is registered.
func (c *Catalog) Has(typeName string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.constructors[typeName]
	return ok
}
