// Package catalog holds the set of scan records visible to one session.
package catalog

import (
	"strings"
	"sync"

	"github.com/ashureev/sonar-hub/internal/domain"
)

// Catalog maps scan IDs to records. Lookups are case-insensitive and IDs are
// listed in insertion order. A Catalog is safe for concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	records map[string]*domain.ScanRecord
	order   []string
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{records: make(map[string]*domain.ScanRecord)}
}

// NewWithRecords returns a catalog preloaded with recs, in order.
func NewWithRecords(recs []*domain.ScanRecord) *Catalog {
	c := New()
	for _, r := range recs {
		c.Put(r)
	}
	return c
}

func key(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// Get returns the record for id, matching case-insensitively.
func (c *Catalog) Get(id string) (*domain.ScanRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.records[key(id)]
	return r, ok
}

// Has reports whether id is present.
func (c *Catalog) Has(id string) bool {
	_, ok := c.Get(id)
	return ok
}

// Put inserts rec, replacing any record with the same ID in place.
func (c *Catalog) Put(rec *domain.ScanRecord) {
	if rec == nil {
		return
	}
	k := key(rec.ScanID)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.records[k]; !exists {
		c.order = append(c.order, k)
	}
	c.records[k] = rec
}

// Remove deletes id. Removing an absent ID is a no-op.
func (c *Catalog) Remove(id string) {
	k := key(id)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.records[k]; !exists {
		return
	}
	delete(c.records, k)
	for i, o := range c.order {
		if o == k {
			c.order = append(c.order[:i:i], c.order[i+1:]...)
			break
		}
	}
}

// IDs returns the record IDs in display order.
func (c *Catalog) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.records[k].ScanID)
	}
	return out
}

// Len returns the number of records.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// CountByDomain tallies records per inferred domain.
func (c *Catalog) CountByDomain() map[domain.Domain]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	counts := map[domain.Domain]int{
		domain.DomainSea:  0,
		domain.DomainLand: 0,
		domain.DomainAir:  0,
	}
	for _, r := range c.records {
		counts[r.Domain()]++
	}
	return counts
}
