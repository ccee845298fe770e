package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/katatrina/auction-engine/internal/db/memstore"
	"github.com/katatrina/auction-engine/internal/event"
	"github.com/katatrina/auction-engine/internal/worker"
)

type fakeDistributor struct {
	mu       sync.Mutex
	payloads []*worker.PayloadPushNotification
	reads    []*worker.PayloadMarkNotificationRead
	err      error
}

func (d *fakeDistributor) DistributeTaskPushNotification(ctx context.Context, payload *worker.PayloadPushNotification, opts ...asynq.Option) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.payloads = append(d.payloads, payload)
	return d.err
}

func (d *fakeDistributor) DistributeTaskMarkNotificationRead(ctx context.Context, payload *worker.PayloadMarkNotificationRead, opts ...asynq.Option) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reads = append(d.reads, payload)
	return d.err
}

func (d *fakeDistributor) Close() error { return nil }

func setupCenter(t *testing.T) (*Center, *event.Hub, *memstore.Store) {
	t.Helper()

	store := memstore.New()
	hub := event.NewHub(16)
	return NewCenter(store, hub, nil), hub, store
}

func TestCreateAssignsSequentialIDs(t *testing.T) {
	center, _, _ := setupCenter(t)
	ctx := context.Background()

	first, err := center.Create(ctx, 1, 10, "first")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	second, err := center.Create(ctx, 2, 10, "second")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if first.ID != 1 || second.ID != 2 {
		t.Errorf("ids: expected 1 and 2, got %d and %d", first.ID, second.ID)
	}
	if first.IsRead {
		t.Error("new notification must be unread")
	}
	if first.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestCreateThenListThenMarkRead(t *testing.T) {
	center, _, _ := setupCenter(t)
	ctx := context.Background()

	created, err := center.Create(ctx, 1, 10, "you won")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	unread, err := center.List(ctx, 1, false)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(unread) != 1 || unread[0].ID != created.ID {
		t.Fatalf("expected new notification in unread list, got %+v", unread)
	}

	changed, err := center.MarkRead(ctx, 1, created.ID)
	if err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	if !changed {
		t.Error("expected MarkRead to report a change")
	}

	unread, _ = center.List(ctx, 1, false)
	if len(unread) != 0 {
		t.Errorf("expected read notification to be excluded, got %+v", unread)
	}
	all, _ := center.List(ctx, 1, true)
	if len(all) != 1 || !all[0].IsRead {
		t.Errorf("expected read notification with includeRead, got %+v", all)
	}
}

func TestMarkReadOtherUsersNotification(t *testing.T) {
	center, _, _ := setupCenter(t)
	ctx := context.Background()

	created, _ := center.Create(ctx, 1, 10, "you won")

	changed, err := center.MarkRead(ctx, 2, created.ID)
	if err != nil {
		t.Fatalf("expected no error for foreign notification, got %v", err)
	}
	if changed {
		t.Error("foreign notification must not be marked")
	}

	if _, err = center.MarkRead(ctx, 2, 999); err != nil {
		t.Errorf("expected no error for missing notification, got %v", err)
	}

	count, _ := center.UnreadCount(ctx, 1)
	if count != 1 {
		t.Errorf("owner unread count: expected 1, got %d", count)
	}
}

func TestMarkAllRead(t *testing.T) {
	center, _, _ := setupCenter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := center.Create(ctx, 1, 10, "message"); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	center.Create(ctx, 2, 10, "other user")

	affected, err := center.MarkAllRead(ctx, 1)
	if err != nil {
		t.Fatalf("MarkAllRead failed: %v", err)
	}
	if affected != 3 {
		t.Errorf("affected: expected 3, got %d", affected)
	}

	if count, _ := center.UnreadCount(ctx, 1); count != 0 {
		t.Errorf("unread count: expected 0, got %d", count)
	}
	if count, _ := center.UnreadCount(ctx, 2); count != 1 {
		t.Errorf("other user unread count: expected 1, got %d", count)
	}
}

func TestListNewestFirst(t *testing.T) {
	center, _, store := setupCenter(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		store.SetClock(func() time.Time { return at })
		if _, err := center.Create(ctx, 1, 10, "message"); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	list, err := center.List(ctx, 1, true)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 3 || list[0].ID != 3 || list[2].ID != 1 {
		t.Errorf("expected ids [3 2 1], got %+v", list)
	}
}

func TestMarkReadPublishesUnreadCount(t *testing.T) {
	center, hub, _ := setupCenter(t)
	ctx := context.Background()

	conn := hub.Connect()
	if err := hub.Join(conn.ID, event.UserTopic(1)); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	first, _ := center.Create(ctx, 1, 10, "a")
	center.Create(ctx, 1, 10, "b")

	if _, err := center.MarkRead(ctx, 1, first.ID); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}

	select {
	case ev := <-conn.Events():
		if ev.Type != event.EventTypeUnreadCountChanged || ev.Args[1] != int64(1) {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("expected UnreadCountChanged event")
	}
}

func TestCreateEnqueuesPushMirror(t *testing.T) {
	store := memstore.New()
	distributor := &fakeDistributor{err: errors.New("redis down")}
	center := NewCenter(store, event.NewHub(4), distributor)

	created, err := center.Create(context.Background(), 5, 10, "sold")
	if err != nil {
		t.Fatalf("push mirror failure must not fail Create: %v", err)
	}

	if len(distributor.payloads) != 1 || distributor.payloads[0].NotificationID != created.ID {
		t.Errorf("expected one push payload for notification %d, got %+v", created.ID, distributor.payloads)
	}
}

func TestMarkReadEnqueuesMirrorUpdate(t *testing.T) {
	store := memstore.New()
	distributor := &fakeDistributor{}
	center := NewCenter(store, event.NewHub(4), distributor)
	ctx := context.Background()

	first, _ := center.Create(ctx, 5, 10, "first")
	if _, err := center.Create(ctx, 5, 11, "second"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := center.MarkRead(ctx, 5, first.ID); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	// Nothing changes the second time, so nothing is mirrored.
	if _, err := center.MarkRead(ctx, 5, first.ID); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	if _, err := center.MarkAllRead(ctx, 5); err != nil {
		t.Fatalf("MarkAllRead failed: %v", err)
	}

	want := []worker.PayloadMarkNotificationRead{
		{RecipientID: 5, NotificationID: first.ID},
		{RecipientID: 5, NotificationID: 0},
	}
	if len(distributor.reads) != len(want) {
		t.Fatalf("expected %d mirror updates, got %d", len(want), len(distributor.reads))
	}
	for i, w := range want {
		if *distributor.reads[i] != w {
			t.Errorf("update %d: expected %+v, got %+v", i, w, *distributor.reads[i])
		}
	}
}
