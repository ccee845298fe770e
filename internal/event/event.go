package event

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Event is a named event with a positional payload delivered to a group of connections.
// An empty Topic means the event goes to every live connection.
type Event struct {
	Topic string `json:"topic,omitempty"` // e.g. "auction:123", "user:42"
	Type  string `json:"event"`
	Args  []any  `json:"args"`
}

const (
	EventTypeBidPlaced          = "BidPlaced"
	EventTypeAuctionClosed      = "AuctionClosed"
	EventTypeUnreadCountChanged = "UnreadCountChanged"
	EventTypeAuctionCreated     = "AuctionCreated"
)

const (
	TopicKindAuction = "auction"
	TopicKindUser    = "user"
)

var ErrInvalidTopic = errors.New("invalid topic")

// EventSender delivers events to live connections.
type EventSender interface {
	Send(ev Event)
}

func AuctionTopic(auctionID int64) string {
	return fmt.Sprintf("%s:%d", TopicKindAuction, auctionID)
}

func UserTopic(userID int64) string {
	return fmt.Sprintf("%s:%d", TopicKindUser, userID)
}

// ParseTopic splits a group key such as "auction:7" into its kind and id.
func ParseTopic(topic string) (kind string, id int64, err error) {
	kind, rawID, ok := strings.Cut(topic, ":")
	if !ok || (kind != TopicKindAuction && kind != TopicKindUser) {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}

	id, err = strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}

	return kind, id, nil
}

func NewBidPlaced(auctionID, amount, bidderID int64, placedAt time.Time) Event {
	return Event{
		Topic: AuctionTopic(auctionID),
		Type:  EventTypeBidPlaced,
		Args:  []any{auctionID, amount, bidderID, placedAt},
	}
}

// NewAuctionClosed builds the closure event; winnerID and finalAmount are nil when nobody bid.
func NewAuctionClosed(auctionID int64, winnerID, finalAmount *int64) Event {
	return Event{
		Topic: AuctionTopic(auctionID),
		Type:  EventTypeAuctionClosed,
		Args:  []any{auctionID, winnerID, finalAmount},
	}
}

func NewUnreadCountChanged(userID, count int64) Event {
	return Event{
		Topic: UserTopic(userID),
		Type:  EventTypeUnreadCountChanged,
		Args:  []any{userID, count},
	}
}

func NewAuctionCreated() Event {
	return Event{
		Type: EventTypeAuctionCreated,
		Args: []any{},
	}
}
