package kafka

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

const generationKey = "gen"

// versionDedupe remembers the highest version applied per key so that
// redelivered or reordered events are applied at most once.
type versionDedupe struct {
	mu   sync.Mutex
	last *lru.Cache[string, uint64]
}

func newVersionDedupe(size int) *versionDedupe {
	if size <= 0 {
		size = 4096
	}
	c, _ := lru.New[string, uint64](size)
	return &versionDedupe{last: c}
}

// generation reports whether gen is newer than any generation seen so far.
// Generation 0 is valid, so versions are stored shifted by one.
func (d *versionDedupe) generation(gen int64) bool {
	if gen < 0 {
		return false
	}
	return d.shouldApply(generationKey, uint64(gen)+1)
}

// cell reports whether version v of a cell event has not been applied yet.
func (d *versionDedupe) cell(id string, v uint64) bool {
	return d.shouldApply("cell:"+id, v)
}

func (d *versionDedupe) shouldApply(key string, v uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.last.Get(key); ok && v <= last {
		return false
	}
	d.last.Add(key, v)
	return true
}
