package cache

import (
	"maps"
	"sync"
	"time"

	"github.com/darshan-rambhia/ledgerwatch/internal/model"
)

// Cache is a thread-safe in-memory view of the scheduler's live state. The
// database holds the durable record; the cache holds what only the running
// process knows, such as whether the last poll of a node succeeded.
type Cache struct {
	mu sync.RWMutex

	Polls      map[string]*model.PollStatus
	Protocol   *model.ProtocolInfo
	Rewards    []model.RewardDetail
	LastReward time.Time
	LastPoll   map[string]time.Time
}

// CacheSnapshot is a read-only deep copy of the cache state.
type CacheSnapshot struct {
	Polls      map[string]*model.PollStatus
	Protocol   *model.ProtocolInfo
	Rewards    []model.RewardDetail
	LastReward time.Time
	LastPoll   map[string]time.Time
}

// New returns an initialized Cache.
func New() *Cache {
	return &Cache{
		Polls:    make(map[string]*model.PollStatus),
		LastPoll: make(map[string]time.Time),
	}
}

// Snapshot returns a deep copy of the cache contents.
func (c *Cache) Snapshot() CacheSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := CacheSnapshot{
		Polls:      make(map[string]*model.PollStatus, len(c.Polls)),
		LastReward: c.LastReward,
		LastPoll:   make(map[string]time.Time, len(c.LastPoll)),
	}

	for name, p := range c.Polls {
		cp := *p
		snap.Polls[name] = &cp
	}

	if c.Protocol != nil {
		cp := *c.Protocol
		snap.Protocol = &cp
	}

	if c.Rewards != nil {
		snap.Rewards = make([]model.RewardDetail, len(c.Rewards))
		copy(snap.Rewards, c.Rewards)
	}

	maps.Copy(snap.LastPoll, c.LastPoll)

	return snap
}

// UpdatePoll replaces the poll status of a single node.
func (c *Cache) UpdatePoll(status model.PollStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Polls[status.Node] = &status
}

// SetProtocol records the network description reported at startup.
func (c *Cache) SetProtocol(info model.ProtocolInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Protocol = &info
}

// SetRewards replaces the result of the most recent reward cycle.
func (c *Cache) SetRewards(t time.Time, details []model.RewardDetail) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Rewards = details
	c.LastReward = t
}

// SetLastPoll records when a scheduler phase last ran.
func (c *Cache) SetLastPoll(phase string, t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LastPoll[phase] = t
}
