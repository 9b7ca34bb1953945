package account

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang/groupcache/lru"

	"github.com/speedrun-hq/speedrun-executor/pkg/compact"
)

// DomainCacheSize is the default number of account domains kept
const DomainCacheSize = 1024

// DomainReader reads the ERC-5267 domain of an account on one chain
type DomainReader interface {
	ReadDomain(ctx context.Context, account common.Address) (compact.Domain, error)
}

type domainKey struct {
	chainID uint64
	account common.Address
}

// DomainCache memoizes account domains. A domain only changes with an account upgrade.
type DomainCache struct {
	mu    sync.Mutex
	cache *lru.Cache
}

// NewDomainCache creates a cache holding up to size domains
func NewDomainCache(size int) *DomainCache {
	if size <= 0 {
		size = DomainCacheSize
	}
	return &DomainCache{cache: lru.New(size)}
}

// Get returns the cached domain or reads it through reader
func (c *DomainCache) Get(ctx context.Context, reader DomainReader, chainID uint64, account common.Address) (compact.Domain, error) {
	key := domainKey{chainID: chainID, account: account}

	c.mu.Lock()
	if v, ok := c.cache.Get(key); ok {
		c.mu.Unlock()
		return v.(compact.Domain), nil
	}
	c.mu.Unlock()

	d, err := reader.ReadDomain(ctx, account)
	if err != nil {
		return compact.Domain{}, err
	}

	c.mu.Lock()
	c.cache.Add(key, d)
	c.mu.Unlock()
	return d, nil
}

// Len returns the number of cached domains
func (c *DomainCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}
