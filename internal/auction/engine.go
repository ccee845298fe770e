// Package auction drives the auction lifecycle: deadline tracking, closure and the hooks
// the page actions call after they change an auction.
package auction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/katatrina/auction-engine/internal/clock"
	db "github.com/katatrina/auction-engine/internal/db/sqlc"
	"github.com/katatrina/auction-engine/internal/event"
	"github.com/katatrina/auction-engine/internal/notification"
	"github.com/katatrina/auction-engine/internal/registry"
	"github.com/katatrina/auction-engine/internal/util"
	"github.com/rs/zerolog/log"
)

var (
	ErrAuctionNotFound   = errors.New("auction not found")
	ErrAuctionClosed     = errors.New("auction is already closed")
	ErrClosureInProgress = errors.New("auction is being closed")
)

type Config struct {
	TickInterval       time.Duration
	TickResolution     time.Duration
	ResyncInterval     time.Duration
	CloseRetryAttempts int
	CloseRetryBackoff  time.Duration
	Now                func() time.Time
}

// ConfigFromEnv maps the application config onto the engine settings.
func ConfigFromEnv(config util.Config) Config {
	return Config{
		TickInterval:       config.TickInterval,
		TickResolution:     config.TickResolution,
		ResyncInterval:     config.ResyncInterval,
		CloseRetryAttempts: config.CloseRetryAttempts,
		CloseRetryBackoff:  config.CloseRetryBackoff,
	}
}

// Engine owns the auction clock and runs the closure procedure.
type Engine struct {
	store         db.Store
	registry      *registry.Registry
	notifications *notification.Center
	sender        event.EventSender
	clock         *clock.Clock
	scheduler     gocron.Scheduler
	retry         util.RetryPolicy
	resync        time.Duration
	now           func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	running sync.WaitGroup
}

func NewEngine(
	store db.Store,
	registry *registry.Registry,
	notifications *notification.Center,
	sender event.EventSender,
	config Config,
) (*Engine, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	if config.Now == nil {
		config.Now = time.Now
	}
	if config.ResyncInterval <= 0 {
		config.ResyncInterval = 10 * time.Minute
	}
	if config.CloseRetryBackoff <= 0 {
		config.CloseRetryBackoff = 200 * time.Millisecond
	}

	engine := &Engine{
		store:         store,
		registry:      registry,
		notifications: notifications,
		sender:        sender,
		scheduler:     scheduler,
		resync:        config.ResyncInterval,
		now:           config.Now,
		retry: util.RetryPolicy{
			Attempts: config.CloseRetryAttempts,
			Min:      config.CloseRetryBackoff,
			Max:      8 * config.CloseRetryBackoff,
			Permanent: func(err error) bool {
				return errors.Is(err, db.ErrRecordNotFound)
			},
		},
	}
	engine.clock = clock.New(store, engine, clock.Config{
		Interval:   config.TickInterval,
		Resolution: config.TickResolution,
		Now:        config.Now,
	})

	return engine, nil
}

// Start rebuilds the bidder groups, starts the clock loop and schedules the periodic resync.
// It returns once everything is running.
func (engine *Engine) Start(ctx context.Context) error {
	engine.mu.Lock()
	defer engine.mu.Unlock()

	if engine.cancel != nil {
		return errors.New("engine already started")
	}

	if _, err := engine.registry.Rebuild(ctx); err != nil {
		// Job resync sẽ thử lại
		log.Warn().Err(err).Msg("failed to rebuild bidder registry on startup")
	}

	runCtx, cancel := context.WithCancel(ctx)

	_, err := engine.scheduler.NewJob(
		gocron.DurationJob(engine.resync),
		gocron.NewTask(
			func() {
				engine.Resync(runCtx)
			},
		),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to schedule resync job: %w", err)
	}

	engine.cancel = cancel
	engine.running.Add(1)
	go func() {
		defer engine.running.Done()
		if err := engine.clock.Run(runCtx); err != nil {
			log.Error().Err(err).Msg("auction clock exited")
		}
	}()

	engine.scheduler.Start()
	log.Info().Dur("resync_interval", engine.resync).Msg("auction engine started")
	return nil
}

// Shutdown stops the resync job and waits for the clock loop to exit.
func (engine *Engine) Shutdown() error {
	engine.mu.Lock()
	cancel := engine.cancel
	engine.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	engine.running.Wait()

	if err := engine.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to shut down scheduler: %w", err)
	}
	log.Info().Msg("auction engine stopped")
	return nil
}

// Resync drops bidder groups of closed auctions, reloads open auctions into the clock and
// merges the bidder groups of open auctions.
func (engine *Engine) Resync(ctx context.Context) {
	log.Info().
		Str("job", "resync").
		Time("start_time", engine.now()).
		Msg("starting resync job")

	// Nhóm bị tạo lại bởi bid đến muộn sau khi đã archive
	if pruned := engine.registry.ArchiveWhere(engine.clock.IsClosed); pruned > 0 {
		log.Info().Int("groups", pruned).Msg("archived bidder groups of closed auctions")
	}
	if err := engine.clock.LoadOpenAuctions(ctx); err != nil {
		log.Error().Err(err).Msg("failed to reload open auctions")
	}
	if _, err := engine.registry.Rebuild(ctx); err != nil {
		log.Error().Err(err).Msg("failed to rebuild bidder registry")
	}
}

// Tick runs one expiry check immediately.
func (engine *Engine) Tick(ctx context.Context) int {
	return engine.clock.Tick(ctx, engine.now())
}

// CloseAuction runs the closure procedure for an auction whose deadline has passed.
func (engine *Engine) CloseAuction(ctx context.Context, auctionID int64) error {
	_, err := engine.closeAuction(ctx, auctionID, false)
	return err
}

// RequestEarlyClose closes an auction before its deadline ("sell now").
// It reports false when another actor completed the auction first.
func (engine *Engine) RequestEarlyClose(ctx context.Context, auctionID int64) (bool, error) {
	auction, err := engine.store.GetAuctionByID(ctx, auctionID)
	if err != nil {
		if errors.Is(err, db.ErrRecordNotFound) {
			return false, ErrAuctionNotFound
		}
		return false, fmt.Errorf("failed to get auction %d: %w", auctionID, err)
	}
	if auction.Completed {
		return false, ErrAuctionClosed
	}

	if !engine.clock.BeginClosing(auctionID) {
		return false, ErrClosureInProgress
	}

	closed, err := engine.closeAuction(ctx, auctionID, true)
	if err != nil {
		engine.clock.AbortClosing(auctionID)
		return false, err
	}

	engine.clock.Untrack(auctionID)
	return closed, nil
}

// OnAuctionCreated starts tracking the new auction and tells listing pages to refresh.
func (engine *Engine) OnAuctionCreated(auction db.Auction) {
	engine.clock.Track(auction.ID, auction.EndTime)
	engine.sender.Send(event.NewAuctionCreated())
}

// OnAuctionExtended moves the tracked deadline of an auction.
func (engine *Engine) OnAuctionExtended(auctionID int64, endTime time.Time) {
	if !engine.clock.Track(auctionID, endTime) {
		log.Warn().Int64("auction_id", auctionID).Msg("ignoring extension of a closed auction")
	}
}

// OnBidPlaced records the bidder and publishes the new highest bid to the auction group.
// The bidder is not registered once the auction is closed; the closure already read its bids.
func (engine *Engine) OnBidPlaced(bid db.AuctionBid) {
	if !engine.clock.IsClosed(bid.AuctionID) {
		engine.registry.Register(bid.AuctionID, bid.BidderID)
	}
	engine.sender.Send(event.NewBidPlaced(bid.AuctionID, bid.Amount, bid.BidderID, bid.CreatedAt))
}

// TrackedAuctions returns how many open auctions the clock is holding.
func (engine *Engine) TrackedAuctions() int {
	return engine.clock.Len()
}

func (engine *Engine) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	return util.Retry(ctx, engine.retry, fn)
}
