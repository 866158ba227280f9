package room

import (
	"context"
	"errors"
	"sort"
	"testing"
)

// fakeAuthorizer admits the users listed in allowed, keyed by user id.
type fakeAuthorizer struct {
	allowed map[string]bool
	calls   int
}

func (f *fakeAuthorizer) CanJoin(_ context.Context, userID, _ string) bool {
	f.calls++
	return f.allowed[userID]
}

// erroringStore always fails, to exercise the fail-closed path.
type erroringStore struct{}

func (erroringStore) IsActiveParticipant(context.Context, string, string) (bool, error) {
	return true, errors.New("store unreachable")
}

func sorted(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}

func TestJoin_Unauthorized_NoMutation(t *testing.T) {
	auth := &fakeAuthorizer{allowed: map[string]bool{"user-a": true}}
	svc := NewService(auth, NewTracker())
	ctx := context.Background()

	accepted, members := svc.Join(ctx, "conv1", "user-c", "s9")
	if accepted {
		t.Fatal("expected join to be rejected")
	}
	if len(members) != 0 {
		t.Fatalf("expected empty member snapshot, got %v", members)
	}
	if got := svc.Tracker().Members("conv1"); len(got) != 0 {
		t.Fatalf("rejected join must not mutate membership, got %v", got)
	}
}

func TestJoin_AuthorizedEveryAttempt(t *testing.T) {
	auth := &fakeAuthorizer{allowed: map[string]bool{"user-a": true}}
	svc := NewService(auth, NewTracker())
	ctx := context.Background()

	svc.Join(ctx, "conv1", "user-a", "s1")
	svc.Join(ctx, "conv1", "user-a", "s2")

	// The durable participant list must be consulted on every join, not
	// just the first one for a user.
	if auth.calls != 2 {
		t.Fatalf("expected 2 authorization checks, got %d", auth.calls)
	}
}

func TestStoreAuthorizer_FailsClosed(t *testing.T) {
	auth := NewStoreAuthorizer(erroringStore{})

	if auth.CanJoin(context.Background(), "user-a", "conv1") {
		t.Fatal("store errors must deny the join")
	}
}

func TestJoin_TwoSessionsSameUser(t *testing.T) {
	auth := &fakeAuthorizer{allowed: map[string]bool{"user-a": true}}
	svc := NewService(auth, NewTracker())
	ctx := context.Background()

	ok1, _ := svc.Join(ctx, "conv1", "user-a", "s1")
	ok2, members := svc.Join(ctx, "conv1", "user-a", "s2")
	if !ok1 || !ok2 {
		t.Fatal("both sessions of the same user must be accepted")
	}

	// The user appears exactly once in the member set.
	if len(members) != 1 || members[0] != "user-a" {
		t.Fatalf("expected members [user-a], got %v", members)
	}

	// Both sessions receive room broadcasts.
	if got := sorted(svc.Tracker().Sessions("conv1")); len(got) != 2 || got[0] != "s1" || got[1] != "s2" {
		t.Fatalf("expected sessions [s1 s2], got %v", got)
	}

	// Leaving from one session keeps the user present.
	gone, _ := svc.Tracker().Leave("conv1", "user-a", "s1")
	if gone {
		t.Fatal("user must remain present while another session is joined")
	}
	if got := svc.Tracker().Members("conv1"); len(got) != 1 {
		t.Fatalf("expected user-a still present, got %v", got)
	}

	// Leaving the last session fully clears the user.
	gone, members = svc.Tracker().Leave("conv1", "user-a", "s2")
	if !gone {
		t.Fatal("last session leaving must report the user gone")
	}
	if len(members) != 0 {
		t.Fatalf("expected empty room, got %v", members)
	}
}

func TestLeave_Idempotent(t *testing.T) {
	tr := NewTracker()

	// Leaving a room never joined must not error or mutate anything.
	gone, members := tr.Leave("conv1", "user-a", "s1")
	if gone {
		t.Fatal("leave of a non-member must not report a departure")
	}
	if len(members) != 0 {
		t.Fatalf("expected empty snapshot, got %v", members)
	}
}

func TestDropSession_SessionScopedCleanup(t *testing.T) {
	auth := &fakeAuthorizer{allowed: map[string]bool{"user-a": true, "user-b": true}}
	svc := NewService(auth, NewTracker())
	ctx := context.Background()

	// user-a is in conv1 from two sessions and in conv2 from one.
	svc.Join(ctx, "conv1", "user-a", "s1")
	svc.Join(ctx, "conv1", "user-a", "s2")
	svc.Join(ctx, "conv2", "user-a", "s1")
	svc.Join(ctx, "conv1", "user-b", "s3")

	departures := svc.Tracker().DropSession("s1")
	if len(departures) != 2 {
		t.Fatalf("expected 2 departures, got %d: %v", len(departures), departures)
	}

	byRoom := make(map[string]Departure)
	for _, d := range departures {
		byRoom[d.Room] = d
	}

	// conv1: user-a still present via s2, so no userLeft.
	if d := byRoom["conv1"]; d.UserGone {
		t.Errorf("conv1: user-a should remain present via s2")
	}
	// conv2: s1 was the only session, user is gone.
	if d := byRoom["conv2"]; !d.UserGone {
		t.Errorf("conv2: expected user-a fully gone")
	}

	if got := svc.Tracker().Members("conv1"); len(got) != 2 {
		t.Errorf("conv1 should still have both users, got %v", got)
	}
	if got := svc.Tracker().Members("conv2"); len(got) != 0 {
		t.Errorf("conv2 should be empty, got %v", got)
	}

	// Dropping an unknown session returns nothing.
	if departures := svc.Tracker().DropSession("ghost"); departures != nil {
		t.Errorf("expected nil departures for unknown session, got %v", departures)
	}
}

func TestSnapshot(t *testing.T) {
	tr := NewTracker()
	tr.add("conv1", "user-a", "s1")
	tr.add("conv1", "user-a", "s2")
	tr.add("conv1", "user-b", "s3")

	members, sessions := tr.Snapshot("conv1")
	if len(members) != 2 {
		t.Errorf("expected 2 members, got %v", members)
	}
	if len(sessions) != 3 {
		t.Errorf("expected 3 sessions, got %v", sessions)
	}

	members, sessions = tr.Snapshot("ghost")
	if len(members) != 0 || len(sessions) != 0 {
		t.Errorf("unknown room: members=%v sessions=%v, want empty", members, sessions)
	}
}

func TestRoomCount(t *testing.T) {
	tr := NewTracker()
	tr.add("conv1", "user-a", "s1")
	tr.add("conv2", "user-b", "s2")

	if tr.RoomCount() != 2 {
		t.Fatalf("expected 2 rooms, got %d", tr.RoomCount())
	}

	tr.Leave("conv2", "user-b", "s2")
	if tr.RoomCount() != 1 {
		t.Fatalf("expected 1 room after leave, got %d", tr.RoomCount())
	}
}
