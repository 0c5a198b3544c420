package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/xaenox/support-bot/internal/storage"
	"go.uber.org/zap"
)

// recordingTransport captures delivered texts per recipient and can be
// told to fail for specific ids.
type recordingTransport struct {
	mu        sync.Mutex
	delivered map[int64][]string
	fail      map[int64]bool
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{
		delivered: make(map[int64][]string),
		fail:      make(map[int64]bool),
	}
}

func (t *recordingTransport) Deliver(recipientID int64, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.fail[recipientID] {
		return errors.New("recipient unreachable")
	}
	t.delivered[recipientID] = append(t.delivered[recipientID], text)
	return nil
}

func (t *recordingTransport) sent(recipientID int64) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.delivered[recipientID]...)
}

func newTestService(t *testing.T) (*Service, *storage.MemoryStorage, *recordingTransport) {
	t.Helper()
	store := storage.NewMemoryStorage()
	transport := newRecordingTransport()
	return NewService(store, transport, zap.NewNop()), store, transport
}

func TestOpenOrReuseLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	created, err := svc.OpenOrReuse(ctx, 100, "alice")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !created {
		t.Fatal("first request should create a chat")
	}

	// A repeat request on a pending chat must not restart notifications.
	created, err = svc.OpenOrReuse(ctx, 100, "alice")
	if err != nil {
		t.Fatalf("repeat open: %v", err)
	}
	if created {
		t.Fatal("repeat request on pending chat should be a no-op")
	}

	if err := svc.RegisterManager(ctx, 1, "Kate", false); err != nil {
		t.Fatalf("register manager: %v", err)
	}
	if _, err := svc.Claim(ctx, 100, 1); err != nil {
		t.Fatalf("claim: %v", err)
	}

	created, err = svc.OpenOrReuse(ctx, 100, "alice")
	if err != nil {
		t.Fatalf("open on active: %v", err)
	}
	if created {
		t.Fatal("request on active chat should be a no-op")
	}

	if _, err := svc.Close(ctx, 100); err != nil {
		t.Fatalf("close: %v", err)
	}

	created, err = svc.OpenOrReuse(ctx, 100, "alice_new")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if !created {
		t.Fatal("request on closed chat should reopen it")
	}

	row, err := svc.ChatByClient(ctx, 100)
	if err != nil {
		t.Fatalf("get chat: %v", err)
	}
	if row.ManagerID != 0 {
		t.Errorf("reopened chat should have no manager, got %d", row.ManagerID)
	}
	if row.Username != "alice_new" {
		t.Errorf("reopen should refresh username, got %q", row.Username)
	}
}

func TestClaimRace(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	for _, m := range []int64{1, 2} {
		if err := svc.RegisterManager(ctx, m, "Manager", false); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	if _, err := svc.OpenOrReuse(ctx, 100, "alice"); err != nil {
		t.Fatalf("open: %v", err)
	}

	row, err := svc.Claim(ctx, 100, 1)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if row.ManagerID != 1 {
		t.Fatalf("claimed chat bound to %d, want 1", row.ManagerID)
	}

	if _, err := svc.Claim(ctx, 100, 2); !errors.Is(err, ErrAlreadyTaken) {
		t.Fatalf("losing claim: got %v, want ErrAlreadyTaken", err)
	}

	// The winner retrying is idempotent.
	row, err = svc.Claim(ctx, 100, 1)
	if err != nil {
		t.Fatalf("repeat claim by winner: %v", err)
	}
	if row.ManagerID != 1 {
		t.Errorf("repeat claim rebound chat to %d", row.ManagerID)
	}
}

func TestClaimMissingChat(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	if _, err := svc.Claim(ctx, 404, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestCloseReleasesManagerSlot(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	if err := svc.RegisterManager(ctx, 1, "Kate", false); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.OpenOrReuse(ctx, 100, "alice"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := svc.Claim(ctx, 100, 1); err != nil {
		t.Fatalf("claim: %v", err)
	}

	m, err := svc.Manager(ctx, 1)
	if err != nil {
		t.Fatalf("get manager: %v", err)
	}
	if m.ActiveChats != 1 || m.TotalChats != 1 {
		t.Fatalf("after claim: active=%d total=%d, want 1/1", m.ActiveChats, m.TotalChats)
	}

	closed, err := svc.Close(ctx, 100)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.ManagerID != 1 {
		t.Errorf("closed chat should keep the manager binding, got %d", closed.ManagerID)
	}

	m, err = svc.Manager(ctx, 1)
	if err != nil {
		t.Fatalf("get manager: %v", err)
	}
	if m.ActiveChats != 0 {
		t.Errorf("after close: active=%d, want 0", m.ActiveChats)
	}
	if m.TotalChats != 1 {
		t.Errorf("after close: total=%d, want 1", m.TotalChats)
	}

	if _, err := svc.Close(ctx, 100); !errors.Is(err, ErrNoActiveChat) {
		t.Fatalf("double close: got %v, want ErrNoActiveChat", err)
	}
}

func TestTransferRebindsAndAdjustsLoads(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	for _, m := range []int64{1, 2} {
		if err := svc.RegisterManager(ctx, m, "Manager", false); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	if _, err := svc.OpenOrReuse(ctx, 100, "alice"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := svc.Claim(ctx, 100, 1); err != nil {
		t.Fatalf("claim: %v", err)
	}

	prev, err := svc.Transfer(ctx, 100, 2)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if prev.ManagerID != 1 {
		t.Errorf("transfer should report the previous binding, got %d", prev.ManagerID)
	}

	row, err := svc.ChatByClient(ctx, 100)
	if err != nil {
		t.Fatalf("get chat: %v", err)
	}
	if row.ManagerID != 2 {
		t.Fatalf("chat bound to %d after transfer, want 2", row.ManagerID)
	}

	m1, _ := svc.Manager(ctx, 1)
	m2, _ := svc.Manager(ctx, 2)
	if m1.ActiveChats != 0 {
		t.Errorf("previous manager active=%d, want 0", m1.ActiveChats)
	}
	if m2.ActiveChats != 1 || m2.TotalChats != 1 {
		t.Errorf("new manager active=%d total=%d, want 1/1", m2.ActiveChats, m2.TotalChats)
	}

	if _, err := svc.Close(ctx, 100); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := svc.Transfer(ctx, 100, 1); !errors.Is(err, ErrNoActiveChat) {
		t.Fatalf("transfer on closed chat: got %v, want ErrNoActiveChat", err)
	}
}

func TestPickManagerPolicy(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	if _, err := svc.PickManager(ctx); !errors.Is(err, ErrNoManagers) {
		t.Fatalf("empty roster: got %v, want ErrNoManagers", err)
	}

	for _, m := range []int64{1, 2} {
		if err := svc.RegisterManager(ctx, m, "Manager", false); err != nil {
			t.Fatalf("register: %v", err)
		}
	}

	// Load the first manager with a chat so the second becomes the pick.
	if _, err := svc.OpenOrReuse(ctx, 100, "alice"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := svc.Claim(ctx, 100, 1); err != nil {
		t.Fatalf("claim: %v", err)
	}

	picked, err := svc.PickManager(ctx)
	if err != nil {
		t.Fatalf("pick: %v", err)
	}
	if picked.ID != 2 {
		t.Errorf("picked manager %d, want the least loaded (2)", picked.ID)
	}

	for _, m := range []int64{1, 2} {
		if err := svc.SetAvailability(ctx, m, false); err != nil {
			t.Fatalf("set availability: %v", err)
		}
	}
	if _, err := svc.PickManager(ctx); !errors.Is(err, ErrNoManagers) {
		t.Fatalf("all unavailable: got %v, want ErrNoManagers", err)
	}

	count, err := svc.CountAvailable(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("count=%d, want 0", count)
	}
}

func TestContactSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	if err := svc.RegisterManager(ctx, 1, "Kate", false); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.OpenOrReuse(ctx, 100, "alice"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := svc.SaveContact(ctx, 100, "Alice Smith", "+1234567", "alice"); err != nil {
		t.Fatalf("save contact: %v", err)
	}

	if _, err := svc.Claim(ctx, 100, 1); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := svc.Close(ctx, 100); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := svc.OpenOrReuse(ctx, 100, "alice"); err != nil {
		t.Fatalf("reopen: %v", err)
	}

	row, err := svc.ChatByClient(ctx, 100)
	if err != nil {
		t.Fatalf("get chat: %v", err)
	}
	if row.ClientName != "Alice Smith" || row.ClientPhone != "+1234567" {
		t.Errorf("contact fields lost on reopen: name=%q phone=%q", row.ClientName, row.ClientPhone)
	}
}

func TestSaveContactUnknownClient(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	if err := svc.SaveContact(ctx, 404, "Nobody", "", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
