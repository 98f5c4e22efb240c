package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/RegistryAccord/registryaccord-qm-go/internal/metrics"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/model"
)

// recordCache is a per-instance LRU of stored records with a TTL. Values are
// copies; the store remains the source of truth.
type recordCache struct {
	lru     *expirable.LRU[string, model.ParsedRecordDto]
	metrics *metrics.Metrics
}

// newRecordCache returns nil when size is zero, which disables caching.
func newRecordCache(size int, ttl time.Duration, m *metrics.Metrics) *recordCache {
	if size <= 0 {
		return nil
	}
	return &recordCache{
		lru:     expirable.NewLRU[string, model.ParsedRecordDto](size, nil, ttl),
		metrics: m,
	}
}

func (c *recordCache) get(id string) (model.ParsedRecordDto, bool) {
	if c == nil {
		return model.ParsedRecordDto{}, false
	}
	dto, ok := c.lru.Get(id)
	if ok {
		c.metrics.CacheHits.Inc()
	} else {
		c.metrics.CacheMisses.Inc()
	}
	return dto, ok
}

func (c *recordCache) set(dto model.ParsedRecordDto) {
	if c == nil {
		return
	}
	c.lru.Add(dto.ID, dto)
}

func (c *recordCache) remove(id string) {
	if c == nil {
		return
	}
	c.lru.Remove(id)
}
