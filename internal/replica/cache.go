package replica

import (
	"sync"

	"github.com/taller-labs/fieldservice/internal/events"
)

// Cache is the client-facing view of ticket rows fed by the push-based
// change-notification stream. Remote updates are merged field-by-field,
// never wholesale: a field with a locally pending edit keeps its local
// value until the local write is acknowledged, so an echoed remote update
// cannot clobber an in-flight edit.
type Cache struct {
	mu      sync.RWMutex
	rows    map[string]map[string]any
	pending map[string]map[string]struct{}
}

// NewCache builds an empty replica cache.
func NewCache() *Cache {
	return &Cache{
		rows:    make(map[string]map[string]any),
		pending: make(map[string]map[string]struct{}),
	}
}

// Snapshot returns a copy of the cached row.
func (c *Cache) Snapshot(ticketID string) (map[string]any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	row, ok := c.rows[ticketID]
	if !ok {
		return nil, false
	}
	copied := make(map[string]any, len(row))
	for field, value := range row {
		copied[field] = value
	}
	return copied, true
}

// StageLocal applies an operator edit locally and marks its fields pending.
// Pending fields take precedence over remote updates until Acknowledge.
func (c *Cache) StageLocal(ticketID string, fields map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	row := c.row(ticketID)
	marks, ok := c.pending[ticketID]
	if !ok {
		marks = make(map[string]struct{})
		c.pending[ticketID] = marks
	}
	for field, value := range fields {
		row[field] = value
		marks[field] = struct{}{}
	}
}

// Acknowledge clears pending marks once the local write is confirmed.
// With no field arguments it releases every pending field of the ticket.
func (c *Cache) Acknowledge(ticketID string, fields ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	marks, ok := c.pending[ticketID]
	if !ok {
		return
	}
	if len(fields) == 0 {
		delete(c.pending, ticketID)
		return
	}
	for _, field := range fields {
		delete(marks, field)
	}
	if len(marks) == 0 {
		delete(c.pending, ticketID)
	}
}

// ApplyRemote merges a pushed change into the cached row, skipping fields
// with pending local edits.
func (c *Cache) ApplyRemote(change events.TicketChange) {
	c.mu.Lock()
	defer c.mu.Unlock()
	row := c.row(change.TicketID)
	marks := c.pending[change.TicketID]
	for field, value := range change.Fields {
		if _, localWins := marks[field]; localWins {
			continue
		}
		row[field] = value
	}
}

// PendingFields lists the ticket's fields awaiting acknowledgement.
func (c *Cache) PendingFields(ticketID string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	marks := c.pending[ticketID]
	fields := make([]string, 0, len(marks))
	for field := range marks {
		fields = append(fields, field)
	}
	return fields
}

func (c *Cache) row(ticketID string) map[string]any {
	row, ok := c.rows[ticketID]
	if !ok {
		row = make(map[string]any)
		c.rows[ticketID] = row
	}
	return row
}
