package resolutionService

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"streakEngine/metrics"
	"streakEngine/models"
)

// Resolver settles a single parlay. *Engine is the production implementation.
type Resolver interface {
	Resolve(ctx context.Context, parlayID uint) error
}

// Item is a ready parlay handed to the orderer.
type Item struct {
	ParlayID       uint
	UserID         uint
	LastLegEndTime *time.Time
}

func (i Item) before(o Item) bool {
	return models.Parlay{ID: i.ParlayID, LastLegEndTime: i.LastLegEndTime}.
		OrderedBefore(models.Parlay{ID: o.ParlayID, LastLegEndTime: o.LastLegEndTime})
}

// lane is the single owner of one user's pending resolutions.
type lane struct {
	userID  uint
	queue   []Item
	pending map[uint]bool // queued or in flight
}

// Orderer runs one lane per user. Within a lane parlays resolve one at a time in
// (LastLegEndTime, ID) order; lanes of different users run in parallel.
type Orderer struct {
	resolver Resolver
	log      *zap.Logger
	metrics  *metrics.Metrics
	sem      *semaphore.Weighted

	mu    sync.Mutex
	lanes map[uint]*lane
	wg    sync.WaitGroup
}

// NewOrderer bounds the number of concurrently draining lanes to maxLanes; zero
// or less means no bound.
func NewOrderer(resolver Resolver, log *zap.Logger, m *metrics.Metrics, maxLanes int) *Orderer {
	if log == nil {
		log = zap.NewNop()
	}
	o := &Orderer{
		resolver: resolver,
		log:      log.Named("orderer"),
		metrics:  m,
		lanes:    make(map[uint]*lane),
	}
	if maxLanes > 0 {
		o.sem = semaphore.NewWeighted(int64(maxLanes))
	}
	return o
}

// Submit queues ready parlays on their users' lanes and returns how many were
// accepted. Parlays already queued or in flight are ignored, so overlapping
// scans are harmless.
func (o *Orderer) Submit(ctx context.Context, items []Item) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	accepted := 0
	var started []*lane
	for _, it := range items {
		l, ok := o.lanes[it.UserID]
		if !ok {
			l = &lane{userID: it.UserID, pending: make(map[uint]bool)}
			o.lanes[it.UserID] = l
			started = append(started, l)
		}
		if l.pending[it.ParlayID] {
			continue
		}
		l.pending[it.ParlayID] = true
		idx := sort.Search(len(l.queue), func(i int) bool { return it.before(l.queue[i]) })
		l.queue = append(l.queue, Item{})
		copy(l.queue[idx+1:], l.queue[idx:])
		l.queue[idx] = it
		accepted++
	}

	for _, l := range started {
		o.wg.Add(1)
		o.metrics.LaneStarted()
		go o.drain(ctx, l)
	}
	return accepted
}

// Wait blocks until every lane has drained.
func (o *Orderer) Wait() {
	o.wg.Wait()
}

// Lanes reports the number of users with queued or in-flight work.
func (o *Orderer) Lanes() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.lanes)
}

func (o *Orderer) drain(ctx context.Context, l *lane) {
	defer o.wg.Done()
	defer o.metrics.LaneDone()

	if o.sem != nil {
		if err := o.sem.Acquire(ctx, 1); err != nil {
			o.halt(l, 0, err)
			return
		}
		defer o.sem.Release(1)
	}

	for {
		o.mu.Lock()
		if len(l.queue) == 0 {
			delete(o.lanes, l.userID)
			o.mu.Unlock()
			return
		}
		it := l.queue[0]
		l.queue = l.queue[1:]
		o.mu.Unlock()

		err := o.resolver.Resolve(ctx, it.ParlayID)

		o.mu.Lock()
		delete(l.pending, it.ParlayID)
		o.mu.Unlock()

		if err != nil && !errors.Is(err, ErrInvalidState) {
			o.halt(l, it.ParlayID, err)
			return
		}
	}
}

// halt drops the rest of a lane. Anything behind an unresolved parlay must wait
// for it; the next scan offers the dropped parlays again.
func (o *Orderer) halt(l *lane, at uint, cause error) {
	o.mu.Lock()
	dropped := len(l.queue)
	l.queue = nil
	for id := range l.pending {
		delete(l.pending, id)
	}
	delete(o.lanes, l.userID)
	o.mu.Unlock()

	o.metrics.Blocked(dropped)
	o.log.Info("user lane halted",
		zap.Uint("user_id", l.userID),
		zap.Uint("parlay_id", at),
		zap.Int("withheld", dropped),
		zap.Error(cause),
	)
}
