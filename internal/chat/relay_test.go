package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestRelayPersistsAndDelivers(t *testing.T) {
	ctx := context.Background()
	svc, _, transport := newTestService(t)

	if err := svc.Relay(ctx, 100, 1, 100, "hello"); err != nil {
		t.Fatalf("relay: %v", err)
	}

	sent := transport.sent(1)
	if len(sent) != 1 || sent[0] != "hello" {
		t.Fatalf("delivered %v, want [hello]", sent)
	}

	history, err := svc.History(ctx, 100, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Text != "hello" {
		t.Fatalf("history %v, want one entry with text hello", history)
	}
	if history[0].SenderID != 100 {
		t.Errorf("sender=%d, want 100", history[0].SenderID)
	}
}

func TestRelayDeliveryFailureKeepsMessage(t *testing.T) {
	ctx := context.Background()
	svc, _, transport := newTestService(t)
	transport.fail[1] = true

	err := svc.Relay(ctx, 100, 1, 100, "hello")
	if !errors.Is(err, ErrDelivery) {
		t.Fatalf("got %v, want ErrDelivery", err)
	}

	// The stored copy survives the failed delivery.
	history, herr := svc.History(ctx, 100, 10)
	if herr != nil {
		t.Fatalf("history: %v", herr)
	}
	if len(history) != 1 {
		t.Fatalf("history has %d messages, want 1", len(history))
	}
}

func TestRecordDoesNotDeliver(t *testing.T) {
	ctx := context.Background()
	svc, _, transport := newTestService(t)

	if err := svc.Record(ctx, 100, 100, "queued question"); err != nil {
		t.Fatalf("record: %v", err)
	}

	if sent := transport.sent(100); len(sent) != 0 {
		t.Fatalf("record delivered %v, want nothing", sent)
	}
	history, err := svc.History(ctx, 100, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history has %d messages, want 1", len(history))
	}
}

func TestHistoryReturnsLastMessagesInOrder(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	for i := 0; i < 25; i++ {
		if err := svc.Record(ctx, 100, 100, fmt.Sprintf("msg %d", i)); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	history, err := svc.History(ctx, 100, 20)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 20 {
		t.Fatalf("history has %d messages, want 20", len(history))
	}
	if history[0].Text != "msg 5" {
		t.Errorf("first entry %q, want the oldest of the last 20 (msg 5)", history[0].Text)
	}
	if history[19].Text != "msg 24" {
		t.Errorf("last entry %q, want msg 24", history[19].Text)
	}
}

func TestUnreadCountAndMarkRead(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	// Two client messages and one manager message in the same chat.
	if err := svc.Record(ctx, 100, 100, "first"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := svc.Record(ctx, 100, 100, "second"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := svc.Record(ctx, 1, 100, "manager reply"); err != nil {
		t.Fatalf("record: %v", err)
	}

	unread, err := svc.UnreadCount(ctx, 100, 1)
	if err != nil {
		t.Fatalf("unread: %v", err)
	}
	if unread != 2 {
		t.Fatalf("manager sees %d unread, want 2", unread)
	}

	if err := svc.MarkRead(ctx, 100, 1); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	unread, err = svc.UnreadCount(ctx, 100, 1)
	if err != nil {
		t.Fatalf("unread: %v", err)
	}
	if unread != 0 {
		t.Fatalf("after mark read %d unread, want 0", unread)
	}

	// The manager's own message is still unread from the client's side.
	unread, err = svc.UnreadCount(ctx, 100, 100)
	if err != nil {
		t.Fatalf("unread: %v", err)
	}
	if unread != 1 {
		t.Fatalf("client sees %d unread, want 1", unread)
	}
}
