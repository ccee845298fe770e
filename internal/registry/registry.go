// Package registry keeps, per open auction, the set of distinct users who have bid on it.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	db "github.com/katatrina/auction-engine/internal/db/sqlc"
	"github.com/rs/zerolog/log"
)

const shardCount = 32

// BidderSource lists the distinct (auction, bidder) pairs of auctions that are still open.
type BidderSource interface {
	ListOpenAuctionBidders(ctx context.Context) ([]db.ListOpenAuctionBiddersRow, error)
}

type group struct {
	mu      sync.Mutex
	bidders map[int64]struct{}
}

type shard struct {
	mu     sync.RWMutex
	groups map[int64]*group
}

// Registry is safe for concurrent use. Each auction group has its own lock; the shard
// lock is only held while looking a group up or creating it.
type Registry struct {
	source BidderSource
	shards [shardCount]*shard
}

func New(source BidderSource) *Registry {
	r := &Registry{source: source}
	for i := range r.shards {
		r.shards[i] = &shard{groups: make(map[int64]*group)}
	}
	return r
}

func (r *Registry) shardFor(auctionID int64) *shard {
	return r.shards[uint64(auctionID)%shardCount]
}

func (r *Registry) lookup(auctionID int64, create bool) *group {
	s := r.shardFor(auctionID)

	s.mu.RLock()
	g, ok := s.groups[auctionID]
	s.mu.RUnlock()
	if ok || !create {
		return g
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok = s.groups[auctionID]; !ok {
		g = &group{bidders: make(map[int64]struct{})}
		s.groups[auctionID] = g
	}
	return g
}

// Rebuild merges the bidders of every open auction from durable storage into the registry
// and returns how many new entries were added. Existing entries are kept.
func (r *Registry) Rebuild(ctx context.Context) (int, error) {
	rows, err := r.source.ListOpenAuctionBidders(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list auction bidders: %w", err)
	}

	added := 0
	for _, row := range rows {
		if r.Register(row.AuctionID, row.BidderID) {
			added++
		}
	}

	log.Info().Int("rows", len(rows)).Int("added", added).Msg("bidder registry rebuilt")
	return added, nil
}

// Register adds bidderID to the auction's group and reports whether it was absent.
func (r *Registry) Register(auctionID, bidderID int64) bool {
	g := r.lookup(auctionID, true)

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.bidders[bidderID]; ok {
		return false
	}
	g.bidders[bidderID] = struct{}{}
	return true
}

// Get returns a sorted snapshot of the auction's bidders, or an empty slice.
func (r *Registry) Get(auctionID int64) []int64 {
	g := r.lookup(auctionID, false)
	if g == nil {
		return []int64{}
	}

	g.mu.Lock()
	bidders := make([]int64, 0, len(g.bidders))
	for bidderID := range g.bidders {
		bidders = append(bidders, bidderID)
	}
	g.mu.Unlock()

	sort.Slice(bidders, func(i, j int) bool { return bidders[i] < bidders[j] })
	return bidders
}

// Archive forgets the auction's group once the auction is closed.
func (r *Registry) Archive(auctionID int64) {
	s := r.shardFor(auctionID)
	s.mu.Lock()
	delete(s.groups, auctionID)
	s.mu.Unlock()
}

// ArchiveWhere forgets every group whose auction matches closed and returns how many were
// dropped.
func (r *Registry) ArchiveWhere(closed func(auctionID int64) bool) int {
	dropped := 0
	for _, s := range r.shards {
		s.mu.Lock()
		for auctionID := range s.groups {
			if closed(auctionID) {
				delete(s.groups, auctionID)
				dropped++
			}
		}
		s.mu.Unlock()
	}
	return dropped
}

// Len returns the number of auctions with at least one registered bidder.
func (r *Registry) Len() int {
	total := 0
	for _, s := range r.shards {
		s.mu.RLock()
		total += len(s.groups)
		s.mu.RUnlock()
	}
	return total
}
