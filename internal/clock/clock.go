// Package clock tracks the closing deadline of every open auction and triggers closure
// once the deadline has passed.
package clock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	db "github.com/katatrina/auction-engine/internal/db/sqlc"
	"github.com/katatrina/auction-engine/internal/metrics"
	"github.com/rs/zerolog/log"
)

const (
	DefaultInterval        = time.Minute
	DefaultResolution      = time.Second
	DefaultClosedRetention = time.Hour
)

// Closer runs the closure procedure of one auction. A nil error means the auction is closed,
// either by this call or earlier by someone else. A *DeadlineMovedError puts the auction
// back on the clock with the returned end time.
type Closer interface {
	CloseAuction(ctx context.Context, auctionID int64) error
}

// DeadlineMovedError is returned by a Closer when the stored end time is later than the
// deadline the clock fired on, e.g. after an extension made on another instance.
type DeadlineMovedError struct {
	AuctionID int64
	EndTime   time.Time
}

func (e *DeadlineMovedError) Error() string {
	return fmt.Sprintf("auction %d now ends at %s", e.AuctionID, e.EndTime.Format(time.RFC3339))
}

// OpenAuctionSource lists the auctions that are not completed yet.
type OpenAuctionSource interface {
	ListOpenAuctions(ctx context.Context) ([]db.ListOpenAuctionsRow, error)
}

type Config struct {
	// Interval is the longest the loop sleeps between two ticks.
	Interval time.Duration
	// Resolution is the shortest sleep, used when a deadline is due sooner.
	Resolution time.Duration
	// ClosedRetention is how long a closed auction id is remembered to reject late Track calls.
	ClosedRetention time.Duration
	Now             func() time.Time
}

// Clock owns the in-memory deadline table. It is safe for concurrent use.
type Clock struct {
	source     OpenAuctionSource
	closer     Closer
	interval   time.Duration
	resolution time.Duration
	retention  time.Duration
	now        func() time.Time

	mu        sync.Mutex
	deadlines map[int64]time.Time
	closing   map[int64]struct{}
	retryAt   map[int64]time.Time
	closed    map[int64]time.Time
	loaded    bool

	wake chan struct{}
}

func New(source OpenAuctionSource, closer Closer, config Config) *Clock {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.Resolution <= 0 {
		config.Resolution = DefaultResolution
	}
	if config.Resolution > config.Interval {
		config.Resolution = config.Interval
	}
	if config.ClosedRetention <= 0 {
		config.ClosedRetention = DefaultClosedRetention
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &Clock{
		source:     source,
		closer:     closer,
		interval:   config.Interval,
		resolution: config.Resolution,
		retention:  config.ClosedRetention,
		now:        config.Now,
		deadlines:  make(map[int64]time.Time),
		closing:    make(map[int64]struct{}),
		retryAt:    make(map[int64]time.Time),
		closed:     make(map[int64]time.Time),
		wake:       make(chan struct{}, 1),
	}
}

// LoadOpenAuctions merges every open auction from durable storage into the deadline table
// and forgets closed ids older than the retention. On error the table is left as it was
// and the loop tries again later.
func (c *Clock) LoadOpenAuctions(ctx context.Context) error {
	rows, err := c.source.ListOpenAuctions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list open auctions: %w", err)
	}

	c.mu.Lock()
	cutoff := c.now().Add(-c.retention)
	for auctionID, closedAt := range c.closed {
		if closedAt.Before(cutoff) {
			delete(c.closed, auctionID)
		}
	}
	for _, row := range rows {
		if _, ok := c.closed[row.ID]; ok {
			continue
		}
		c.deadlines[row.ID] = row.EndTime
	}
	c.loaded = true
	tracked := len(c.deadlines)
	c.mu.Unlock()

	metrics.TrackedAuctions.Set(float64(tracked))
	c.signal()

	log.Info().Int("open_auctions", len(rows)).Int("tracked", tracked).Msg("open auctions loaded into clock")
	return nil
}

// Track sets the deadline of an auction, replacing any previous one.
// It returns false and does nothing when the auction has already been closed.
func (c *Clock) Track(auctionID int64, endTime time.Time) bool {
	c.mu.Lock()
	if _, ok := c.closed[auctionID]; ok {
		c.mu.Unlock()
		return false
	}
	c.deadlines[auctionID] = endTime
	delete(c.retryAt, auctionID)
	tracked := len(c.deadlines)
	c.mu.Unlock()

	metrics.TrackedAuctions.Set(float64(tracked))
	c.signal()
	return true
}

// Untrack removes an auction after its closure completed. Later Track calls for it are ignored.
// Calling it more than once is harmless.
func (c *Clock) Untrack(auctionID int64) {
	c.mu.Lock()
	delete(c.deadlines, auctionID)
	delete(c.closing, auctionID)
	delete(c.retryAt, auctionID)
	if _, ok := c.closed[auctionID]; !ok {
		c.closed[auctionID] = c.now()
	}
	tracked := len(c.deadlines)
	c.mu.Unlock()

	metrics.TrackedAuctions.Set(float64(tracked))
}

// BeginClosing moves an auction into the transient closing state.
// It returns false when a closure of that auction is already running or finished.
func (c *Clock) BeginClosing(auctionID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.closed[auctionID]; ok {
		return false
	}
	if _, ok := c.closing[auctionID]; ok {
		return false
	}
	c.closing[auctionID] = struct{}{}
	return true
}

// AbortClosing returns an auction to the open state after a failed closure.
func (c *Clock) AbortClosing(auctionID int64) {
	c.mu.Lock()
	delete(c.closing, auctionID)
	c.mu.Unlock()
}

// postpone returns a failed auction to the open state and holds it back for one interval.
func (c *Clock) postpone(auctionID int64, now time.Time) {
	c.mu.Lock()
	delete(c.closing, auctionID)
	if _, ok := c.deadlines[auctionID]; ok {
		c.retryAt[auctionID] = now.Add(c.interval)
	}
	c.mu.Unlock()
}

// reschedule returns an auction to the open state with the end time found in storage.
func (c *Clock) reschedule(auctionID int64, endTime time.Time) {
	c.mu.Lock()
	delete(c.closing, auctionID)
	delete(c.retryAt, auctionID)
	if _, ok := c.closed[auctionID]; !ok {
		c.deadlines[auctionID] = endTime
	}
	c.mu.Unlock()
}

// IsClosed reports whether the auction was closed by this clock and is still remembered.
func (c *Clock) IsClosed(auctionID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.closed[auctionID]
	return ok
}

// Deadline returns the tracked end time of an auction.
func (c *Clock) Deadline(auctionID int64) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	endTime, ok := c.deadlines[auctionID]
	return endTime, ok
}

// Len returns the number of tracked auctions.
func (c *Clock) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.deadlines)
}

// collectDue marks every due auction as closing and returns them ordered by deadline.
func (c *Clock) collectDue(now time.Time) []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	due := make([]int64, 0)
	for auctionID, endTime := range c.deadlines {
		if endTime.After(now) {
			continue
		}
		if _, ok := c.closing[auctionID]; ok {
			continue
		}
		if retryAt, ok := c.retryAt[auctionID]; ok && retryAt.After(now) {
			continue
		}
		due = append(due, auctionID)
	}

	sort.Slice(due, func(i, j int) bool {
		a, b := c.deadlines[due[i]], c.deadlines[due[j]]
		if a.Equal(b) {
			return due[i] < due[j]
		}
		return a.Before(b)
	})
	for _, auctionID := range due {
		c.closing[auctionID] = struct{}{}
	}
	return due
}

// Tick closes every tracked auction whose deadline is at or before now and returns how many
// were closed. A failing closure does not stop the others; the failed auction stays tracked.
func (c *Clock) Tick(ctx context.Context, now time.Time) int {
	metrics.Ticks.Inc()

	due := c.collectDue(now)
	closed := 0
	for _, auctionID := range due {
		if ctx.Err() != nil {
			c.AbortClosing(auctionID)
			continue
		}

		err := c.closer.CloseAuction(ctx, auctionID)
		var moved *DeadlineMovedError
		if errors.As(err, &moved) {
			log.Info().Int64("auction_id", auctionID).Time("end_time", moved.EndTime).
				Msg("deadline moved in storage, rescheduling")
			c.reschedule(auctionID, moved.EndTime)
			continue
		}
		if err != nil {
			metrics.ClosureFailures.Inc()
			log.Error().Err(err).Int64("auction_id", auctionID).
				Msg("failed to close auction, will retry on next tick")
			c.postpone(auctionID, now)
			continue
		}

		c.Untrack(auctionID)
		closed++
	}

	if len(due) > 0 {
		log.Info().Int("due", len(due)).Int("closed", closed).Msg("tick finished")
	}
	return closed
}

// nextWait returns how long the loop sleeps before the next tick.
func (c *Clock) nextWait(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	wait := c.interval
	for auctionID, endTime := range c.deadlines {
		if _, ok := c.closing[auctionID]; ok {
			continue
		}
		if retryAt, ok := c.retryAt[auctionID]; ok && retryAt.After(endTime) {
			endTime = retryAt
		}
		if until := endTime.Sub(now); until < wait {
			wait = until
		}
	}

	if wait < c.resolution {
		wait = c.resolution
	}
	return wait
}

func (c *Clock) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Clock) isLoaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.loaded
}

// Run loads the open auctions and ticks until ctx is cancelled. The sleep between ticks is cut
// short when a nearer deadline gets tracked or when ctx is cancelled.
func (c *Clock) Run(ctx context.Context) error {
	if err := c.LoadOpenAuctions(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to load open auctions, will retry")
	}

	log.Info().Dur("interval", c.interval).Dur("resolution", c.resolution).Msg("auction clock started")
	for {
		timer := time.NewTimer(c.nextWait(c.now()))

		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info().Msg("auction clock stopped")
			return nil

		case <-c.wake:
			timer.Stop()

		case <-timer.C:
			if !c.isLoaded() {
				if err := c.LoadOpenAuctions(ctx); err != nil {
					log.Warn().Err(err).Msg("failed to load open auctions, will retry")
				}
			}
			c.Tick(ctx, c.now())
		}
	}
}
