package service

import (
	"sync"

	"github.com/google/uuid"
)

const lockShards = 64

// leadLocks serializes state machine transitions per lead. Replies and
// expiring timers for the same lead take the same shard, so exactly one
// side performs the terminal transition and the other observes it.
type leadLocks struct {
	shards [lockShards]sync.Mutex
}

func (l *leadLocks) lock(leadID uuid.UUID) func() {
	shard := &l.shards[int(leadID[0])%lockShards]
	shard.Lock()
	return shard.Unlock
}
