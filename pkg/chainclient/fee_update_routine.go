package chainclient

import (
	"context"
	"sync"
	"time"

	"github.com/speedrun-hq/speedrun-executor/pkg/logger"
)

// FeeUpdateRoutine keeps the cached fees of a chain client fresh
type FeeUpdateRoutine struct {
	ctx      context.Context
	client   *Client
	interval time.Duration
	stopChan chan struct{}
	done     chan struct{}
	mu       sync.RWMutex
	running  bool
	logger   logger.Logger
}

// NewFeeUpdateRoutine creates a new fee update routine
func NewFeeUpdateRoutine(client *Client, interval time.Duration) *FeeUpdateRoutine {
	return &FeeUpdateRoutine{
		ctx:      client.Ctx,
		client:   client,
		interval: interval,
		logger:   client.logger,
	}
}

// Start begins the periodic fee updates
func (r *FeeUpdateRoutine) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return // Already running
	}

	r.stopChan = make(chan struct{})
	r.done = make(chan struct{})
	r.running = true

	go r.run(r.stopChan, r.done)
}

// Stop halts the periodic fee updates and waits for the loop to exit
func (r *FeeUpdateRoutine) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	close(r.stopChan)
	done := r.done
	r.stopChan = nil
	r.running = false
	r.mu.Unlock()

	<-done
}

// IsRunning returns whether the routine is currently running
func (r *FeeUpdateRoutine) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

func (r *FeeUpdateRoutine) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Perform initial update
	r.updateFees()

	for {
		select {
		case <-ticker.C:
			r.updateFees()
		case <-stop:
			return
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *FeeUpdateRoutine) updateFees() {
	if _, err := r.client.UpdateFees(r.ctx); err != nil {
		r.logger.ErrorWithChain(r.client.ChainID, "Failed to update fees: %v", err)
	}
}
