// Package announce tracks and renders rdaward.ru activation announcements.
package announce

import (
	"sync"

	"rda_bot/internal/model"
)

// Differ remembers which announcements were already emitted so periodic
// checks can report only the ones that appeared since. The emitted set lives
// for the whole process and is never trimmed.
type Differ struct {
	mu      sync.Mutex
	emitted map[string]struct{}
}

// NewDiffer creates an empty Differ.
func NewDiffer() *Differ {
	return &Differ{emitted: make(map[string]struct{})}
}

// Diff returns every record and the subset whose IDs were not emitted before,
// both in input order. All IDs are marked emitted afterwards.
func (d *Differ) Diff(records []model.Announcement) (all, fresh []model.Announcement) {
	if len(records) == 0 {
		return nil, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, r := range records {
		id := r.ID()
		if _, ok := d.emitted[id]; ok {
			continue
		}
		d.emitted[id] = struct{}{}
		fresh = append(fresh, r)
	}
	return records, fresh
}

// Len returns the number of emitted IDs.
func (d *Differ) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.emitted)
}
