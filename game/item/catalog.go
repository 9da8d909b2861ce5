package item

import "sync"

// Catalog resolves item definitions by data id.
type Catalog interface {
	Exists(dataID int) bool
	MaxStack(dataID int) int
	Weight(dataID int) float64
}

// Definition describes one item kind.
type Definition struct {
	DataID   int     `mapstructure:"data_id" json:"data_id"`
	MaxStack int     `mapstructure:"max_stack" json:"max_stack"`
	Weight   float64 `mapstructure:"weight" json:"weight"`
}

// StaticCatalog is an in-memory Catalog. It is safe for concurrent use.
type StaticCatalog struct {
	mu   sync.RWMutex
	defs map[int]Definition
}

// NewStaticCatalog builds a catalog from definitions. A MaxStack below 1 is
// treated as 1 (unstackable).
func NewStaticCatalog(defs ...Definition) *StaticCatalog {
	c := &StaticCatalog{defs: make(map[int]Definition, len(defs))}
	for _, d := range defs {
		c.Put(d)
	}
	return c
}

// Put adds or replaces a definition.
func (c *StaticCatalog) Put(d Definition) {
	if d.MaxStack < 1 {
		d.MaxStack = 1
	}
	c.mu.Lock()
	c.defs[d.DataID] = d
	c.mu.Unlock()
}

func (c *StaticCatalog) Exists(dataID int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.defs[dataID]
	return ok
}

func (c *StaticCatalog) MaxStack(dataID int) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if d, ok := c.defs[dataID]; ok {
		return d.MaxStack
	}
	return 1
}

func (c *StaticCatalog) Weight(dataID int) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defs[dataID].Weight
}
