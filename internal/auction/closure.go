package auction

import (
	"context"
	"errors"
	"fmt"

	"github.com/katatrina/auction-engine/internal/clock"
	db "github.com/katatrina/auction-engine/internal/db/sqlc"
	"github.com/katatrina/auction-engine/internal/event"
	"github.com/katatrina/auction-engine/internal/metrics"
	"github.com/katatrina/auction-engine/internal/util"
	"github.com/rs/zerolog/log"
)

type recipientNotice struct {
	userID  int64
	message string
}

// closeAuction finalizes one auction. It reports false without an error when the auction
// was already completed, by an earlier run or by another instance. A deadline closure of an
// auction whose stored end time is still ahead returns a *clock.DeadlineMovedError.
func (engine *Engine) closeAuction(ctx context.Context, auctionID int64, earlyClose bool) (bool, error) {
	trigger := metrics.TriggerDeadline
	if earlyClose {
		trigger = metrics.TriggerEarlyClose
	}
	logger := log.With().Int64("auction_id", auctionID).Str("trigger", trigger).Logger()

	// Snapshot nhóm bidder trước khi thay đổi bất kỳ trạng thái nào
	groupSnapshot := engine.registry.Get(auctionID)

	// 1-3. Khóa auction, chọn người thắng và cập nhật có điều kiện trong cùng một transaction
	var result db.CompleteAuctionTxResult
	err := engine.withRetry(ctx, func(ctx context.Context) (err error) {
		result, err = engine.store.CompleteAuctionTx(ctx, db.CompleteAuctionTxParams{
			AuctionID:    auctionID,
			EarlyClose:   earlyClose,
			Now:          engine.now(),
			SelectWinner: DetermineWinner,
		})
		return
	})
	if err != nil {
		if errors.Is(err, db.ErrRecordNotFound) {
			logger.Warn().Msg("auction not found, nothing to close")
			return false, nil
		}
		return false, fmt.Errorf("failed to complete auction %d: %w", auctionID, err)
	}
	if result.NotDue {
		return false, &clock.DeadlineMovedError{AuctionID: auctionID, EndTime: result.Auction.EndTime}
	}
	if !result.Completed {
		metrics.ClosureRaceLosses.Inc()
		logger.Info().Msg("auction already completed, skipping")
		return false, nil
	}
	// Late Track and bid hooks are ignored from here on
	engine.clock.Untrack(auctionID)
	metrics.AuctionsClosed.WithLabelValues(trigger).Inc()

	// 4. Tạo thông báo
	auction, bids := result.Auction, result.Bids
	var winner db.AuctionBid
	hasWinner := result.Winner != nil
	if hasWinner {
		winner = *result.Winner
	}
	notices := buildNotices(auction, winner, hasWinner, groupSnapshot, bids)
	recipients := make([]int64, 0, len(notices))
	for _, notice := range notices {
		if notice.userID <= 0 {
			logger.Warn().Int64("user_id", notice.userID).Msg("skipping notification for invalid recipient")
			continue
		}

		err = engine.withRetry(ctx, func(ctx context.Context) error {
			_, err := engine.notifications.Create(ctx, notice.userID, auctionID, notice.message)
			return err
		})
		if err != nil {
			logger.Error().Err(err).Int64("user_id", notice.userID).Msg("failed to create closure notification")
			continue
		}
		recipients = append(recipients, notice.userID)
	}

	// 5. Sự kiện đóng phiên, sau đó cập nhật số chưa đọc của từng người nhận
	engine.sender.Send(event.NewAuctionClosed(auctionID, auction.WinnerID, auction.FinalAmount))
	for _, userID := range recipients {
		if err = engine.notifications.PublishUnreadCount(ctx, userID); err != nil {
			logger.Warn().Err(err).Int64("user_id", userID).Msg("failed to publish unread count")
		}
	}

	engine.registry.Archive(auctionID)

	entry := logger.Info().Int("bids", len(bids)).Int("notified", len(recipients))
	if hasWinner {
		entry = entry.Int64("winner_id", winner.BidderID).Int64("final_amount", winner.Amount)
	}
	entry.Msg("auction closed")

	return true, nil
}

// buildNotices lists the closure notifications in publish order: winner, seller, then every
// other participant. Participants come from the registry snapshot and the stored bids.
func buildNotices(auction db.Auction, winner db.AuctionBid, hasWinner bool, group []int64, bids []db.AuctionBid) []recipientNotice {
	if !hasWinner {
		return []recipientNotice{{
			userID:  auction.SellerID,
			message: fmt.Sprintf("Your auction #%d ended without bids.", auction.ID),
		}}
	}

	notices := []recipientNotice{
		{
			userID: winner.BidderID,
			message: fmt.Sprintf("You won auction #%d with a bid of %s.",
				auction.ID, util.FormatMoney(winner.Amount)),
		},
		{
			userID: auction.SellerID,
			message: fmt.Sprintf("Your auction #%d was sold to user %d for %s.",
				auction.ID, winner.BidderID, util.FormatMoney(winner.Amount)),
		},
	}

	seen := map[int64]struct{}{
		winner.BidderID:  {},
		auction.SellerID: {},
	}
	addLoser := func(userID int64) {
		if _, ok := seen[userID]; ok {
			return
		}
		seen[userID] = struct{}{}
		notices = append(notices, recipientNotice{
			userID:  userID,
			message: fmt.Sprintf("Auction #%d has ended. You did not win.", auction.ID),
		})
	}

	for _, userID := range group {
		addLoser(userID)
	}
	for _, bid := range bids {
		addLoser(bid.BidderID)
	}

	return notices
}
