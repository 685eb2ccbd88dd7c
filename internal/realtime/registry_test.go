package realtime

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func sessionIDs(s []Session) []SessionID {
	return lo.Map(s, func(x Session, _ int) SessionID { return x.ID })
}

func TestRegister_IsIdempotentPerConn(t *testing.T) {
	r := NewRegistry(nil)
	conn := &fakeConn{}

	first := r.Register(conn, identity("alice"))
	require.True(t, first.Created)
	require.NotNil(t, first.Presence)
	require.True(t, first.Presence.Online)
	require.NotEmpty(t, first.Session.ConnID)

	again := r.Register(conn, identity("alice"))
	require.False(t, again.Created)
	require.Nil(t, again.Presence)
	require.Equal(t, first.Session.ID, again.Session.ID)
	require.Equal(t, 1, r.Len())
}

func TestRegister_PresenceOnlyOnFirstSession(t *testing.T) {
	r := NewRegistry(nil)
	bob := r.Register(&fakeConn{}, identity("bob"))
	require.NotNil(t, bob.Presence)
	require.Empty(t, bob.Observers)

	a1 := r.Register(&fakeConn{}, identity("alice"))
	require.NotNil(t, a1.Presence)
	require.Equal(t, []SessionID{bob.Session.ID}, sessionIDs(a1.Observers))

	a2 := r.Register(&fakeConn{}, identity("alice"))
	require.Nil(t, a2.Presence)
	require.Equal(t, 2, r.Count("alice"))

	rm, ok := r.Unregister(a1.Session.ID)
	require.True(t, ok)
	require.Nil(t, rm.Presence)
	require.True(t, r.Presence().IsOnline("alice"))

	rm, ok = r.Unregister(a2.Session.ID)
	require.True(t, ok)
	require.NotNil(t, rm.Presence)
	require.False(t, rm.Presence.Online)
	require.Equal(t, []SessionID{bob.Session.ID}, sessionIDs(rm.Observers))
	require.False(t, r.Presence().IsOnline("alice"))

	_, seen := r.Presence().LastSeen("alice")
	require.True(t, seen)
}

func TestUnregister_RemovesFromRoomOnce(t *testing.T) {
	r := NewRegistry(nil)
	a := r.Register(&fakeConn{}, identity("alice")).Session
	b := r.Register(&fakeConn{}, identity("bob")).Session
	_, err := r.UpdateRoom(a.ID, "global")
	require.NoError(t, err)
	_, err = r.UpdateRoom(b.ID, "global")
	require.NoError(t, err)

	rm, ok := r.Unregister(a.ID)
	require.True(t, ok)
	require.NotNil(t, rm.Left)
	require.Equal(t, "global", rm.Left.From)
	require.Equal(t, []SessionID{b.ID}, sessionIDs(rm.Left.FromMembers))
	require.Equal(t, []SessionID{b.ID}, sessionIDs(r.Members("global")))

	_, ok = r.Unregister(a.ID)
	require.False(t, ok)
	require.Empty(t, r.Lookup("alice"))
}

func TestUpdateRoom_MovesInOneStep(t *testing.T) {
	r := NewRegistry(nil)
	a := r.Register(&fakeConn{}, identity("alice")).Session
	b := r.Register(&fakeConn{}, identity("bob")).Session
	_, _ = r.UpdateRoom(b.ID, "lobby")

	change, err := r.UpdateRoom(a.ID, "lobby")
	require.NoError(t, err)
	require.Equal(t, "", change.From)
	require.Equal(t, []SessionID{a.ID, b.ID}, sessionIDs(change.ToMembers))

	change, err = r.UpdateRoom(a.ID, "games")
	require.NoError(t, err)
	require.Equal(t, "lobby", change.From)
	require.Equal(t, "games", change.To)
	require.Equal(t, []SessionID{b.ID}, sessionIDs(change.FromMembers))
	require.Equal(t, []SessionID{a.ID}, sessionIDs(change.ToMembers))
	require.Equal(t, []string{"games", "lobby"}, r.Rooms())

	same, err := r.UpdateRoom(a.ID, "games")
	require.NoError(t, err)
	require.False(t, same.Changed())

	_, err = r.UpdateRoom(SessionID(999), "games")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestUpdateRoom_TruncatesNames(t *testing.T) {
	r := NewRegistry(nil)
	a := r.Register(&fakeConn{}, identity("alice")).Session
	long := strings.Repeat("r", 40)

	change, err := r.UpdateRoom(a.ID, long)
	require.NoError(t, err)
	require.Equal(t, strings.Repeat("r", MaxNameLength), change.To)
	require.Len(t, r.Members(long), 1)
}

func TestTruncateName(t *testing.T) {
	require.Equal(t, "bob", TruncateName("  bob  "))
	require.Equal(t, strings.Repeat("é", MaxNameLength), TruncateName(strings.Repeat("é", 50)))
	require.Equal(t, "", TruncateName("   "))
}

func TestResolve_RoomAndPairwise(t *testing.T) {
	r := NewRegistry(nil)
	a1 := r.Register(&fakeConn{}, identity("alice")).Session
	a2 := r.Register(&fakeConn{}, identity("alice")).Session
	b1 := r.Register(&fakeConn{}, identity("bob")).Session
	b2 := r.Register(&fakeConn{}, identity("bob")).Session
	c := r.Register(&fakeConn{}, identity("carol")).Session
	for _, s := range []Session{a1, a2, b1, c} {
		_, err := r.UpdateRoom(s.ID, "global")
		require.NoError(t, err)
	}
	a1, _ = r.Get(a1.ID)

	room := Target{Room: "global"}
	require.Equal(t, []SessionID{a2.ID, b1.ID, c.ID}, sessionIDs(r.Resolve(room, a1, true)))
	require.Equal(t, []SessionID{b1.ID, c.ID}, sessionIDs(r.Resolve(room, a1, false)))

	direct := Target{To: "bob"}
	require.Equal(t, []SessionID{a2.ID, b1.ID, b2.ID}, sessionIDs(r.Resolve(direct, a1, true)))
	require.Equal(t, []SessionID{b1.ID, b2.ID}, sessionIDs(r.Resolve(direct, a1, false)))

	self := Target{To: "alice"}
	require.Equal(t, []SessionID{a2.ID}, sessionIDs(r.Resolve(self, a1, false)))

	require.Empty(t, r.Resolve(Target{To: "nobody"}, a1, false))
	require.Empty(t, r.Resolve(Target{}, a1, true))
}

func TestSweep_EvictsOnlyUnacknowledged(t *testing.T) {
	r := NewRegistry(nil)
	a := r.Register(&fakeConn{}, identity("alice")).Session
	b := r.Register(&fakeConn{}, identity("bob")).Session

	evict, probe := r.Sweep()
	require.Empty(t, evict)
	require.Equal(t, []SessionID{a.ID, b.ID}, sessionIDs(probe))

	r.Ack(a.ID)
	evict, probe = r.Sweep()
	require.Equal(t, []SessionID{b.ID}, sessionIDs(evict))
	require.Equal(t, []SessionID{a.ID}, sessionIDs(probe))
}

// TestRegistry_MembershipMatchesModel drives random joins, leaves and
// disconnects and checks rooms and presence against a plain model after
// every step.
func TestRegistry_MembershipMatchesModel(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	r := NewRegistry(nil)

	users := []string{"alice", "bob", "carol"}
	rooms := []string{"global", "games", "music"}
	live := map[SessionID]string{}   // session -> user
	inRoom := map[SessionID]string{} // session -> room

	for step := 0; step < 500; step++ {
		ids := lo.Keys(live)
		switch op := rng.Intn(4); {
		case op == 0 || len(ids) == 0:
			u := users[rng.Intn(len(users))]
			s := r.Register(&fakeConn{}, identity(u)).Session
			live[s.ID] = u
		case op == 1:
			id := ids[rng.Intn(len(ids))]
			room := rooms[rng.Intn(len(rooms))]
			_, err := r.UpdateRoom(id, room)
			require.NoError(t, err)
			inRoom[id] = room
		case op == 2:
			id := ids[rng.Intn(len(ids))]
			_, err := r.UpdateRoom(id, "")
			require.NoError(t, err)
			delete(inRoom, id)
		default:
			id := ids[rng.Intn(len(ids))]
			_, ok := r.Unregister(id)
			require.True(t, ok)
			delete(live, id)
			delete(inRoom, id)
		}

		for _, room := range rooms {
			var want []SessionID
			for id, rm := range inRoom {
				if rm == room {
					want = append(want, id)
				}
			}
			require.ElementsMatch(t, want, sessionIDs(r.Members(room)), fmt.Sprintf("step %d room %s", step, room))
		}
		for _, u := range users {
			count := len(lo.PickByValues(live, []string{u}))
			require.Equal(t, count, r.Count(u))
			require.Equal(t, count >= 1, r.Presence().IsOnline(u), "step %d user %s", step, u)
		}
	}
}
