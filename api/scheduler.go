/*
scheduler.go - Automated cleanup scheduler

PURPOSE:
  Periodically removes fully-paid debts that have aged past the retention
  window, keeping the debts table from growing without bound. Replaces the
  daily cleanup cron of the original deployment.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each tick delegates to Engine.PurgePaidDebts
  - Safe to run alongside normal traffic; the purge is one transaction

CONFIGURATION:
  - CheckInterval: How often to check (default: 24 hours)
  - Retention:     Minimum age of a paid debt before removal (default: 1 year)
  - Enabled:       Whether scheduler is active (default: true)

USAGE:
  scheduler := NewPurgeScheduler(engine)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: PurgePaidDebts endpoint (manual purge)
  - ledger/engine.go: PurgePaidDebts
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/debt-ledger/ledger"
)

// PurgeScheduler handles automated removal of old paid debts.
type PurgeScheduler struct {
	Engine        *ledger.Engine
	CheckInterval time.Duration
	Retention     time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPurgeScheduler creates a new scheduler.
func NewPurgeScheduler(engine *ledger.Engine) *PurgeScheduler {
	return &PurgeScheduler{
		Engine:        engine,
		CheckInterval: 24 * time.Hour,
		Retention:     365 * 24 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (ps *PurgeScheduler) Start() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if !ps.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	ps.ticker = time.NewTicker(ps.CheckInterval)
	ps.wg.Add(1)

	go ps.run()

	log.Printf("[Scheduler] Started with check interval: %v", ps.CheckInterval)
}

// Stop stops the scheduler.
func (ps *PurgeScheduler) Stop() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.ticker != nil {
		ps.ticker.Stop()
		close(ps.stop)
		ps.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (ps *PurgeScheduler) run() {
	defer ps.wg.Done()

	// Run immediately on start
	ps.purge()

	for {
		select {
		case <-ps.ticker.C:
			ps.purge()
		case <-ps.stop:
			return
		}
	}
}

func (ps *PurgeScheduler) purge() {
	ctx := context.Background()

	purged, err := ps.Engine.PurgePaidDebts(ctx, ps.Retention)
	if err != nil {
		log.Printf("[Scheduler] Purge failed: %v", err)
		return
	}
	if purged > 0 {
		log.Printf("[Scheduler] Removed %d paid debts older than %v", purged, ps.Retention)
	}
}

// RunNow triggers an immediate purge (for testing/admin).
func (ps *PurgeScheduler) RunNow() {
	ps.purge()
}
