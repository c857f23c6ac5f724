package locking

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// ExpiredFunc receives the locks dropped by a sweep, so the caller can
// fan the expiries out to watchers.
type ExpiredFunc func(expired []Lock)

// Sweeper force-releases abandoned locks (a tab closed without saving)
// on a periodic cadence. Its writes go through the manager's own
// critical section, so it can never race a concurrent acquire/release.
type Sweeper struct {
	cron     *cron.Cron
	manager  *MemoryManager
	onExpire ExpiredFunc
}

func NewSweeper(manager *MemoryManager, interval string, onExpire ExpiredFunc) (*Sweeper, error) {
	s := &Sweeper{
		cron:     cron.New(),
		manager:  manager,
		onExpire: onExpire,
	}

	if _, err := s.cron.AddFunc(interval, s.sweep); err != nil {
		return nil, fmt.Errorf("invalid sweep interval %q: %w", interval, err)
	}
	return s, nil
}

func (s *Sweeper) sweep() {
	expired := s.manager.ExpireStale()
	if len(expired) > 0 && s.onExpire != nil {
		s.onExpire(expired)
	}
}

func (s *Sweeper) Start() {
	s.cron.Start()
}

func (s *Sweeper) Stop() {
	s.cron.Stop()
}
