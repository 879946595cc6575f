package memory

import (
	"sync"

	"github.com/uspq/neko-ai/internal/types"
)

// conversationLocks serializes writes per conversation id. Two concurrent
// turns in the same conversation would otherwise race to build relationship
// edges against an incomplete view of each other's memory. Reads never take
// these locks.
type conversationLocks struct {
	mu    sync.Mutex
	locks map[types.ID]*sync.Mutex
}

func newConversationLocks() *conversationLocks {
	return &conversationLocks{locks: make(map[types.ID]*sync.Mutex)}
}

// Lock acquires the write lock for a conversation, creating it on first use.
// The returned function releases the lock.
func (c *conversationLocks) Lock(conversationID types.ID) func() {
	c.mu.Lock()
	lock, ok := c.locks[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[conversationID] = lock
	}
	c.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Forget drops the lock entry for a deleted conversation.
func (c *conversationLocks) Forget(conversationID types.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.locks, conversationID)
}
