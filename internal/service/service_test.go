package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mmynk/familyfunds/internal/models"
	"github.com/mmynk/familyfunds/internal/notify"
	"github.com/mmynk/familyfunds/internal/storage/sqlite"
)

type recordedEvent struct {
	GroupID string
	Event   string
	Data    any
}

type fakeBroadcaster struct {
	mu      sync.Mutex
	events  []recordedEvent
	evicted []string
	closed  []string
}

func (f *fakeBroadcaster) Broadcast(groupID, event string, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{GroupID: groupID, Event: event, Data: data})
}

func (f *fakeBroadcaster) Evict(groupID, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evicted = append(f.evicted, groupID+"/"+userID)
}

func (f *fakeBroadcaster) CloseRoom(groupID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, groupID)
}

func (f *fakeBroadcaster) last() recordedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return recordedEvent{}
	}
	return f.events[len(f.events)-1]
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []notify.InvitationMessage
	err  error
}

func (m *fakeMailer) SendInvitation(_ context.Context, msg notify.InvitationMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type fixture struct {
	store    *sqlite.SQLiteStore
	events   *fakeBroadcaster
	mailer   *fakeMailer
	families *FamilyService
	expenses *ExpenseService
	goals    *GoalService
	now      time.Time
}

func newFixture(t *testing.T, opts ...FamilyOption) *fixture {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	f := &fixture{
		store:  store,
		events: &fakeBroadcaster{},
		mailer: &fakeMailer{},
		now:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	opts = append([]FamilyOption{WithClock(func() time.Time { return f.now })}, opts...)
	f.families = NewFamilyService(store, f.mailer, f.events, opts...)
	f.expenses = NewExpenseService(store, f.events)
	f.goals = NewGoalService(store, f.events)
	return f
}

func (f *fixture) user(t *testing.T, email, name string) *models.User {
	t.Helper()
	u := models.NewUser(email, name, "hash")
	if err := f.store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return u
}

// family creates "Smiths" owned by a new user and joins each of the other
// names through an invitation.
func (f *fixture) family(t *testing.T, others ...string) (*models.FamilyGroup, []*models.User) {
	t.Helper()
	ctx := context.Background()

	owner := f.user(t, "alice@example.com", "Alice")
	group, err := f.families.CreateGroup(ctx, owner.ID, "Smiths", "")
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	users := []*models.User{owner}
	for _, name := range others {
		u := f.user(t, name+"@example.com", name)
		inv, err := f.families.InviteMember(ctx, owner.ID, group.ID, u.Email)
		if err != nil {
			t.Fatalf("InviteMember(%s) failed: %v", name, err)
		}
		if _, err := f.families.JoinGroup(ctx, u.ID, group.ID, inv.Token); err != nil {
			t.Fatalf("JoinGroup(%s) failed: %v", name, err)
		}
		users = append(users, u)
	}

	group, err = f.families.GetGroup(ctx, owner.ID, group.ID)
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	return group, users
}

func assertOwnerInvariant(t *testing.T, group *models.FamilyGroup) {
	t.Helper()
	owners := 0
	for _, m := range group.Members {
		if m.Role == models.RoleOwner {
			owners++
			if m.UserID != group.Owner {
				t.Errorf("owner role held by %s, owner field is %s", m.UserID, group.Owner)
			}
		}
	}
	if owners != 1 {
		t.Errorf("expected exactly one owner, got %d", owners)
	}
}

func assertErr(t *testing.T, err, want error) {
	t.Helper()
	if want == nil {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return
	}
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}
