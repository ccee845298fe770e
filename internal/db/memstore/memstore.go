// Package memstore is an in-memory implementation of db.Store.
// It backs the "memory" store driver and the engine tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	db "github.com/katatrina/auction-engine/internal/db/sqlc"
)

var _ db.Store = (*Store)(nil)

type Store struct {
	mu            sync.Mutex
	now           func() time.Time
	auctions      map[int64]db.Auction
	bids          map[int64][]db.AuctionBid
	notifications map[int64]db.Notification
	nextAuctionID int64
	nextBidID     int64
}

func New() *Store {
	return &Store{
		now:           time.Now,
		auctions:      make(map[int64]db.Auction),
		bids:          make(map[int64][]db.AuctionBid),
		notifications: make(map[int64]db.Notification),
	}
}

// SetClock replaces the time source used for created_at columns.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// PutAuction inserts or replaces an auction row as-is.
func (s *Store) PutAuction(auction db.Auction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.auctions[auction.ID] = auction
	if auction.ID > s.nextAuctionID {
		s.nextAuctionID = auction.ID
	}
}

// PutBid inserts a bid row without any validation.
func (s *Store) PutBid(bid db.AuctionBid) db.AuctionBid {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextBidID++
	if bid.ID == 0 {
		bid.ID = s.nextBidID
	}
	s.bids[bid.AuctionID] = append(s.bids[bid.AuctionID], bid)
	return bid
}

func (s *Store) CreateAuction(ctx context.Context, arg db.CreateAuctionParams) (db.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextAuctionID++
	auction := db.Auction{
		ID:         s.nextAuctionID,
		SellerID:   arg.SellerID,
		ProductID:  arg.ProductID,
		StartTime:  arg.StartTime,
		EndTime:    arg.EndTime,
		MinimumBid: arg.MinimumBid,
		CreatedAt:  s.now(),
	}
	s.auctions[auction.ID] = auction
	return auction, nil
}

func (s *Store) GetAuctionByID(ctx context.Context, id int64) (db.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	auction, ok := s.auctions[id]
	if !ok {
		return db.Auction{}, db.ErrRecordNotFound
	}
	return auction, nil
}

func (s *Store) GetAuctionByIDForUpdate(ctx context.Context, id int64) (db.Auction, error) {
	return s.GetAuctionByID(ctx, id)
}

func (s *Store) ListOpenAuctions(ctx context.Context) ([]db.ListOpenAuctionsRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := []db.ListOpenAuctionsRow{}
	for _, auction := range s.auctions {
		if !auction.Completed {
			rows = append(rows, db.ListOpenAuctionsRow{ID: auction.ID, EndTime: auction.EndTime})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].EndTime.Equal(rows[j].EndTime) {
			return rows[i].ID < rows[j].ID
		}
		return rows[i].EndTime.Before(rows[j].EndTime)
	})
	return rows, nil
}

func (s *Store) UpdateAuctionEndTime(ctx context.Context, arg db.UpdateAuctionEndTimeParams) (db.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	auction, ok := s.auctions[arg.ID]
	if !ok || auction.Completed || arg.EndTime.Before(auction.StartTime) {
		return db.Auction{}, db.ErrRecordNotFound
	}
	auction.EndTime = arg.EndTime
	s.auctions[arg.ID] = auction
	return auction, nil
}

func (s *Store) CompleteAuction(ctx context.Context, arg db.CompleteAuctionParams) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	auction, ok := s.auctions[arg.ID]
	if !ok || auction.Completed {
		return 0, nil
	}
	closedAt := s.now()
	auction.Completed = true
	auction.EarlyClosed = arg.EarlyClosed
	auction.WinnerID = arg.WinnerID
	auction.FinalAmount = arg.FinalAmount
	auction.ClosedAt = &closedAt
	s.auctions[arg.ID] = auction
	return 1, nil
}

// CompleteAuctionTx runs the whole completion under the store lock, so no bid can be stored
// between reading the bids and recording the winner.
func (s *Store) CompleteAuctionTx(ctx context.Context, arg db.CompleteAuctionTxParams) (db.CompleteAuctionTxResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result db.CompleteAuctionTxResult
	auction, ok := s.auctions[arg.AuctionID]
	if !ok {
		return result, db.ErrRecordNotFound
	}
	result.Auction = auction

	proceed, notDue, freezeAt := db.PrepareCompletion(auction, arg)
	result.NotDue = notDue
	if !proceed {
		return result, nil
	}
	if freezeAt != nil {
		auction.EndTime = *freezeAt
	}

	bids := append([]db.AuctionBid{}, s.bids[arg.AuctionID]...)
	if bid, found := arg.SelectWinner(bids); found {
		result.Winner = &bid
		auction.WinnerID = &bid.BidderID
		auction.FinalAmount = &bid.Amount
	}

	closedAt := s.now()
	auction.Completed = true
	auction.EarlyClosed = arg.EarlyClose
	auction.ClosedAt = &closedAt
	s.auctions[arg.AuctionID] = auction

	result.Auction = auction
	result.Bids = bids
	result.Completed = true
	return result, nil
}

func (s *Store) CreateAuctionBid(ctx context.Context, arg db.CreateAuctionBidParams) (db.AuctionBid, error) {
	return s.PutBid(db.AuctionBid{
		AuctionID: arg.AuctionID,
		BidderID:  arg.BidderID,
		Amount:    arg.Amount,
		CreatedAt: arg.CreatedAt,
	}), nil
}

func (s *Store) ListAuctionBids(ctx context.Context, auctionID int64) ([]db.AuctionBid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bids := append([]db.AuctionBid{}, s.bids[auctionID]...)
	sort.SliceStable(bids, func(i, j int) bool {
		if bids[i].CreatedAt.Equal(bids[j].CreatedAt) {
			return bids[i].ID < bids[j].ID
		}
		return bids[i].CreatedAt.Before(bids[j].CreatedAt)
	})
	return bids, nil
}

func (s *Store) GetHighestAuctionBid(ctx context.Context, auctionID int64) (db.AuctionBid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.highestLocked(auctionID)
}

func (s *Store) highestLocked(auctionID int64) (db.AuctionBid, error) {
	var (
		highest db.AuctionBid
		found   bool
	)
	for _, bid := range s.bids[auctionID] {
		if !found || outbids(bid, highest) {
			highest = bid
			found = true
		}
	}
	if !found {
		return db.AuctionBid{}, db.ErrRecordNotFound
	}
	return highest, nil
}

func outbids(a, b db.AuctionBid) bool {
	if a.Amount != b.Amount {
		return a.Amount > b.Amount
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func (s *Store) ListOpenAuctionBidders(ctx context.Context) ([]db.ListOpenAuctionBiddersRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[db.ListOpenAuctionBiddersRow]struct{})
	rows := []db.ListOpenAuctionBiddersRow{}
	for auctionID, bids := range s.bids {
		if auction, ok := s.auctions[auctionID]; !ok || auction.Completed {
			continue
		}
		for _, bid := range bids {
			row := db.ListOpenAuctionBiddersRow{AuctionID: auctionID, BidderID: bid.BidderID}
			if _, dup := seen[row]; dup {
				continue
			}
			seen[row] = struct{}{}
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].AuctionID == rows[j].AuctionID {
			return rows[i].BidderID < rows[j].BidderID
		}
		return rows[i].AuctionID < rows[j].AuctionID
	})
	return rows, nil
}

func (s *Store) PlaceBidTx(ctx context.Context, arg db.PlaceBidTxParams) (db.PlaceBidTxResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result db.PlaceBidTxResult
	auction, ok := s.auctions[arg.AuctionID]
	if !ok {
		return result, db.ErrRecordNotFound
	}
	result.Auction = auction

	if highest, err := s.highestLocked(arg.AuctionID); err == nil {
		result.PreviousHighest = &highest
	}
	if err := db.CheckBid(auction, result.PreviousHighest, arg); err != nil {
		return result, err
	}

	s.nextBidID++
	bid := db.AuctionBid{
		ID:        s.nextBidID,
		AuctionID: arg.AuctionID,
		BidderID:  arg.BidderID,
		Amount:    arg.Amount,
		CreatedAt: arg.PlacedAt,
	}
	s.bids[arg.AuctionID] = append(s.bids[arg.AuctionID], bid)
	result.AuctionBid = bid
	return result, nil
}

func (s *Store) CreateNotification(ctx context.Context, arg db.CreateNotificationParams) (db.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var maxID int64
	for id := range s.notifications {
		if id > maxID {
			maxID = id
		}
	}
	notification := db.Notification{
		ID:          maxID + 1,
		RecipientID: arg.RecipientID,
		AuctionID:   arg.AuctionID,
		Message:     arg.Message,
		CreatedAt:   s.now(),
	}
	s.notifications[notification.ID] = notification
	return notification, nil
}

func (s *Store) InsertNotificationTx(ctx context.Context, arg db.CreateNotificationParams) (db.Notification, error) {
	return s.CreateNotification(ctx, arg)
}

func (s *Store) MarkNotificationRead(ctx context.Context, arg db.MarkNotificationReadParams) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	notification, ok := s.notifications[arg.ID]
	if !ok || notification.RecipientID != arg.RecipientID || notification.IsRead {
		return 0, nil
	}
	notification.IsRead = true
	s.notifications[arg.ID] = notification
	return 1, nil
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, recipientID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var affected int64
	for id, notification := range s.notifications {
		if notification.RecipientID == recipientID && !notification.IsRead {
			notification.IsRead = true
			s.notifications[id] = notification
			affected++
		}
	}
	return affected, nil
}

func (s *Store) CountUnreadNotifications(ctx context.Context, recipientID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, notification := range s.notifications {
		if notification.RecipientID == recipientID && !notification.IsRead {
			count++
		}
	}
	return count, nil
}

func (s *Store) ListNotifications(ctx context.Context, arg db.ListNotificationsParams) ([]db.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := []db.Notification{}
	for _, notification := range s.notifications {
		if notification.RecipientID != arg.RecipientID {
			continue
		}
		if notification.IsRead && !arg.IncludeRead {
			continue
		}
		items = append(items, notification)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}
