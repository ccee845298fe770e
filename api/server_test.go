package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/katatrina/auction-engine/internal/auction"
	"github.com/katatrina/auction-engine/internal/db/memstore"
	db "github.com/katatrina/auction-engine/internal/db/sqlc"
	"github.com/katatrina/auction-engine/internal/event"
	"github.com/katatrina/auction-engine/internal/notification"
	"github.com/katatrina/auction-engine/internal/registry"
	"github.com/katatrina/auction-engine/internal/util"
)

const (
	sellerID = int64(100)
	bidderID = int64(200)
	otherID  = int64(300)
)

type testServer struct {
	server *Server
	store  *memstore.Store
	hub    *event.Hub
	center *notification.Center
	engine *auction.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	config := &util.Config{
		AllowedOrigins: []string{"http://localhost:3000"},
		TokenSecretKey: "0123456789abcdef0123456789abcdef",
	}

	store := memstore.New()
	hub := event.NewHub(16)
	center := notification.NewCenter(store, hub, nil)
	engine, err := auction.NewEngine(store, registry.New(store), center, hub, auction.Config{
		CloseRetryAttempts: 1,
	})
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	server, err := NewServer(config, store, engine, center, hub)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	return &testServer{server: server, store: store, hub: hub, center: center, engine: engine}
}

func (ts *testServer) accessToken(t *testing.T, userID int64) string {
	t.Helper()

	token, _, err := ts.server.tokenMaker.CreateToken(userID, time.Minute)
	if err != nil {
		t.Fatalf("failed to create token: %v", err)
	}
	return token
}

func (ts *testServer) do(t *testing.T, method, path string, userID int64, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID > 0 {
		req.Header.Set(authorizationHeaderKey, authorizationTypeBearer+" "+ts.accessToken(t, userID))
	}

	recorder := httptest.NewRecorder()
	ts.server.router.ServeHTTP(recorder, req)
	return recorder
}

func (ts *testServer) openAuction(id int64, endTime time.Time) {
	ts.store.PutAuction(db.Auction{
		ID:         id,
		SellerID:   sellerID,
		ProductID:  1,
		StartTime:  time.Now().Add(-time.Hour),
		EndTime:    endTime,
		MinimumBid: 10,
		CreatedAt:  time.Now().Add(-time.Hour),
	})
	ts.engine.OnAuctionExtended(id, endTime)
}

func receiveEvent(t *testing.T, conn *event.Conn) event.Event {
	t.Helper()

	select {
	case ev := <-conn.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return event.Event{}
}

func TestCreateAuction(t *testing.T) {
	ts := newTestServer(t)
	listener := ts.hub.Connect()

	body := gin.H{
		"product_id":  5,
		"start_time":  time.Now().Add(-time.Minute),
		"end_time":    time.Now().Add(time.Hour),
		"minimum_bid": 1000,
	}

	recorder := ts.do(t, http.MethodPost, "/v1/auctions", sellerID, body)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body)
	}

	var created db.Auction
	if err := json.Unmarshal(recorder.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.SellerID != sellerID || created.ID == 0 {
		t.Errorf("unexpected auction %+v", created)
	}
	if ts.engine.TrackedAuctions() != 1 {
		t.Errorf("new auction should be tracked")
	}
	if ev := receiveEvent(t, listener); ev.Type != event.EventTypeAuctionCreated {
		t.Errorf("expected AuctionCreated broadcast, got %+v", ev)
	}
}

func TestCreateAuctionValidation(t *testing.T) {
	ts := newTestServer(t)

	testCases := []struct {
		name   string
		userID int64
		body   gin.H
		want   int
	}{
		{
			name:   "unauthenticated",
			userID: 0,
			body:   gin.H{"product_id": 1, "start_time": time.Now(), "end_time": time.Now().Add(time.Hour)},
			want:   http.StatusUnauthorized,
		},
		{
			name:   "end before start",
			userID: sellerID,
			body:   gin.H{"product_id": 1, "start_time": time.Now().Add(2 * time.Hour), "end_time": time.Now().Add(time.Hour)},
			want:   http.StatusBadRequest,
		},
		{
			name:   "end in the past",
			userID: sellerID,
			body:   gin.H{"product_id": 1, "start_time": time.Now().Add(-2 * time.Hour), "end_time": time.Now().Add(-time.Hour)},
			want:   http.StatusBadRequest,
		},
		{
			name:   "missing product",
			userID: sellerID,
			body:   gin.H{"start_time": time.Now(), "end_time": time.Now().Add(time.Hour)},
			want:   http.StatusBadRequest,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			recorder := ts.do(t, http.MethodPost, "/v1/auctions", tc.userID, tc.body)
			if recorder.Code != tc.want {
				t.Errorf("expected %d, got %d: %s", tc.want, recorder.Code, recorder.Body)
			}
		})
	}
}

func TestPlaceBid(t *testing.T) {
	ts := newTestServer(t)
	ts.openAuction(1, time.Now().Add(time.Hour))
	ts.openAuction(2, time.Now().Add(-time.Second))

	watcher := ts.hub.Connect()
	if err := ts.hub.Join(watcher.ID, event.AuctionTopic(1)); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	testCases := []struct {
		name      string
		auctionID int64
		userID    int64
		amount    int64
		want      int
	}{
		{name: "valid bid", auctionID: 1, userID: bidderID, amount: 50, want: http.StatusOK},
		{name: "not higher than current", auctionID: 1, userID: otherID, amount: 50, want: http.StatusUnprocessableEntity},
		{name: "seller cannot bid", auctionID: 1, userID: sellerID, amount: 500, want: http.StatusUnprocessableEntity},
		{name: "after end time but not closed yet", auctionID: 2, userID: bidderID, amount: 500, want: http.StatusUnprocessableEntity},
		{name: "unknown auction", auctionID: 99, userID: bidderID, amount: 500, want: http.StatusNotFound},
		{name: "zero amount", auctionID: 1, userID: bidderID, amount: 0, want: http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := fmt.Sprintf("/v1/auctions/%d/bids", tc.auctionID)
			recorder := ts.do(t, http.MethodPost, path, tc.userID, gin.H{"amount": tc.amount})
			if recorder.Code != tc.want {
				t.Errorf("expected %d, got %d: %s", tc.want, recorder.Code, recorder.Body)
			}
		})
	}

	ev := receiveEvent(t, watcher)
	if ev.Type != event.EventTypeBidPlaced || ev.Topic != "auction:1" {
		t.Fatalf("expected BidPlaced on auction:1, got %+v", ev)
	}
	if ev.Args[1] != int64(50) || ev.Args[2] != bidderID {
		t.Errorf("unexpected payload %v", ev.Args)
	}
}

func TestCloseAuction(t *testing.T) {
	ts := newTestServer(t)
	ts.openAuction(1, time.Now().Add(time.Hour))

	recorder := ts.do(t, http.MethodPost, "/v1/auctions/1/bids", bidderID, gin.H{"amount": 25})
	if recorder.Code != http.StatusOK {
		t.Fatalf("bid failed: %d %s", recorder.Code, recorder.Body)
	}

	if recorder = ts.do(t, http.MethodPost, "/v1/auctions/1/close", otherID, nil); recorder.Code != http.StatusForbidden {
		t.Errorf("non-seller: expected 403, got %d", recorder.Code)
	}

	recorder = ts.do(t, http.MethodPost, "/v1/auctions/1/close", sellerID, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("seller: expected 200, got %d: %s", recorder.Code, recorder.Body)
	}

	var closed db.Auction
	if err := json.Unmarshal(recorder.Body.Bytes(), &closed); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !closed.Completed || !closed.EarlyClosed || closed.WinnerID == nil || *closed.WinnerID != bidderID {
		t.Errorf("unexpected closed auction %+v", closed)
	}

	if recorder = ts.do(t, http.MethodPost, "/v1/auctions/1/close", sellerID, nil); recorder.Code != http.StatusConflict {
		t.Errorf("second close: expected 409, got %d", recorder.Code)
	}
	if recorder = ts.do(t, http.MethodPost, "/v1/auctions/1/bids", otherID, gin.H{"amount": 100}); recorder.Code != http.StatusUnprocessableEntity {
		t.Errorf("bid after close: expected 422, got %d", recorder.Code)
	}

	count, err := ts.center.UnreadCount(context.Background(), bidderID)
	if err != nil || count != 1 {
		t.Errorf("winner should have 1 unread notification, got %d (%v)", count, err)
	}
}

func TestExtendAuction(t *testing.T) {
	ts := newTestServer(t)
	end := time.Now().Add(time.Hour).Truncate(time.Second)
	ts.openAuction(1, end)

	testCases := []struct {
		name    string
		userID  int64
		endTime time.Time
		want    int
	}{
		{name: "not the seller", userID: otherID, endTime: end.Add(time.Hour), want: http.StatusForbidden},
		{name: "earlier end time", userID: sellerID, endTime: end.Add(-time.Minute), want: http.StatusBadRequest},
		{name: "extended", userID: sellerID, endTime: end.Add(time.Hour), want: http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			recorder := ts.do(t, http.MethodPatch, "/v1/auctions/1/end-time", tc.userID, gin.H{"end_time": tc.endTime})
			if recorder.Code != tc.want {
				t.Errorf("expected %d, got %d: %s", tc.want, recorder.Code, recorder.Body)
			}
		})
	}
}

func TestNotificationEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	first, err := ts.center.Create(ctx, bidderID, 1, "first")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err = ts.center.Create(ctx, bidderID, 1, "second"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	foreign, err := ts.center.Create(ctx, otherID, 1, "not yours")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	recorder := ts.do(t, http.MethodGet, "/v1/notifications", bidderID, nil)
	var list []db.Notification
	if err = json.Unmarshal(recorder.Body.Bytes(), &list); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if len(list) != 2 || list[0].Message != "second" {
		t.Fatalf("expected 2 notifications newest first, got %+v", list)
	}

	// Another user's id behaves like a missing one.
	path := fmt.Sprintf("/v1/notifications/%d/read", foreign.ID)
	recorder = ts.do(t, http.MethodPatch, path, bidderID, nil)
	if recorder.Code != http.StatusOK || !strings.Contains(recorder.Body.String(), `"unread_count":2`) {
		t.Errorf("foreign mark read: got %d %s", recorder.Code, recorder.Body)
	}
	if count, _ := ts.center.UnreadCount(ctx, otherID); count != 1 {
		t.Errorf("other user's notification must stay unread, got %d", count)
	}

	path = fmt.Sprintf("/v1/notifications/%d/read", first.ID)
	recorder = ts.do(t, http.MethodPatch, path, bidderID, nil)
	if !strings.Contains(recorder.Body.String(), `"unread_count":1`) {
		t.Errorf("mark read: got %s", recorder.Body)
	}

	recorder = ts.do(t, http.MethodPatch, "/v1/notifications/read-all", bidderID, nil)
	if !strings.Contains(recorder.Body.String(), `"unread_count":0`) {
		t.Errorf("mark all read: got %s", recorder.Body)
	}

	recorder = ts.do(t, http.MethodGet, "/v1/notifications?include_read=true", bidderID, nil)
	if err = json.Unmarshal(recorder.Body.Bytes(), &list); err != nil || len(list) != 2 {
		t.Errorf("expected 2 notifications with include_read, got %+v (%v)", list, err)
	}
}

func TestStreamAuthorization(t *testing.T) {
	ts := newTestServer(t)

	testCases := []struct {
		name   string
		query  string
		userID int64
		want   int
	}{
		{name: "no groups", query: "", userID: bidderID, want: http.StatusBadRequest},
		{name: "invalid group", query: "groups=room:1", userID: bidderID, want: http.StatusBadRequest},
		{name: "anonymous user group", query: "groups=user:200", userID: 0, want: http.StatusForbidden},
		{name: "another user's group", query: "groups=auction:1,user:300", userID: bidderID, want: http.StatusForbidden},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			recorder := ts.do(t, http.MethodGet, "/v1/stream?"+tc.query, tc.userID, nil)
			if recorder.Code != tc.want {
				t.Errorf("expected %d, got %d: %s", tc.want, recorder.Code, recorder.Body)
			}
		})
	}
}

func TestWebsocketJoinAndReceive(t *testing.T) {
	ts := newTestServer(t)
	httpServer := httptest.NewServer(ts.server.router)
	defer httpServer.Close()

	url := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/v1/ws?access_token=" + ts.accessToken(t, bidderID)
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer ws.Close()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))

	commands := []struct {
		cmd      wsCommand
		wantType string
	}{
		{cmd: wsCommand{Action: wsActionJoin, Group: "auction:7"}, wantType: "ack"},
		{cmd: wsCommand{Action: wsActionJoin, Group: "user:200"}, wantType: "ack"},
		{cmd: wsCommand{Action: wsActionJoin, Group: "user:300"}, wantType: "error"},
		{cmd: wsCommand{Action: "shout", Group: "auction:7"}, wantType: "error"},
	}
	for _, c := range commands {
		if err = ws.WriteJSON(c.cmd); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		var reply wsReply
		if err = ws.ReadJSON(&reply); err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if reply.Type != c.wantType {
			t.Errorf("%+v: expected %s, got %+v", c.cmd, c.wantType, reply)
		}
	}

	ts.hub.Send(event.NewUnreadCountChanged(bidderID, 3))

	var ev event.Event
	if err = ws.ReadJSON(&ev); err != nil {
		t.Fatalf("read event failed: %v", err)
	}
	if ev.Type != event.EventTypeUnreadCountChanged || ev.Topic != "user:200" {
		t.Errorf("unexpected event %+v", ev)
	}
}
