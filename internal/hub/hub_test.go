package hub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/caseclosed/backend/internal/engine"
	"github.com/caseclosed/backend/pkg/types"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store := engine.NewStore()
	eng := engine.New(store, clockwork.NewFakeClock())
	return New(ctx, eng, store, zap.NewNop())
}

// recvFrame receives one encoded frame with a timeout so tests never hang.
func recvFrame(t *testing.T, ch <-chan []byte, within time.Duration) map[string]any {
	t.Helper()
	select {
	case frame, ok := <-ch:
		require.True(t, ok, "outbox closed unexpectedly")
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(frame, &decoded))
		return decoded
	case <-time.After(within):
		t.Fatalf("timed out waiting for frame")
		return nil // unreachable
	}
}

func recvClosed(t *testing.T, ch <-chan []byte, within time.Duration) {
	t.Helper()
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-time.After(within):
			t.Fatalf("expected outbox to close")
		}
	}
}

func inspect(t *testing.T, h *Hub) View {
	t.Helper()
	reply := make(chan View, 1)
	h.Inbox() <- Inspect{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

func TestHub_CreateRoom_RepliesToSender(t *testing.T) {
	h := newTestHub(t)

	out := make(chan []byte, 4)
	h.Inbox() <- Join{ConnID: "c1", Outbox: out}
	h.Inbox() <- FromClient{ConnID: "c1", Msg: types.ClientMessage{Action: "create_room", RoomCode: "ZED123"}}

	frame := recvFrame(t, out, time.Second)
	require.Equal(t, "room_created", frame["action"])
	require.Equal(t, "ZED123", frame["roomCode"])
	require.NotEmpty(t, frame["hostToken"])

	view := inspect(t, h)
	require.Equal(t, 1, view.Clients)
	require.Equal(t, 1, view.Rooms)
}

func TestHub_ErrorGoesToSenderOnly(t *testing.T) {
	h := newTestHub(t)

	hostOut := make(chan []byte, 4)
	h.Inbox() <- Join{ConnID: "host", Outbox: hostOut}
	h.Inbox() <- FromClient{ConnID: "host", Msg: types.ClientMessage{Action: "create_room", RoomCode: "AAAA"}}
	_ = recvFrame(t, hostOut, time.Second)

	playerOut := make(chan []byte, 4)
	h.Inbox() <- Join{ConnID: "p1", Outbox: playerOut}
	h.Inbox() <- FromClient{ConnID: "p1", Msg: types.ClientMessage{Action: "join_room", RoomCode: "NOPE", Name: "Alice"}}

	frame := recvFrame(t, playerOut, time.Second)
	require.Equal(t, "error", frame["action"])
	require.Equal(t, "Room not found.", frame["message"])

	// The host saw nothing beyond its own room_created.
	require.Empty(t, hostOut)
}

func TestHub_JoinNotifiesHost(t *testing.T) {
	h := newTestHub(t)

	hostOut := make(chan []byte, 4)
	h.Inbox() <- Join{ConnID: "host", Outbox: hostOut}
	h.Inbox() <- FromClient{ConnID: "host", Msg: types.ClientMessage{Action: "create_room", RoomCode: "AAAA"}}
	_ = recvFrame(t, hostOut, time.Second)

	playerOut := make(chan []byte, 4)
	h.Inbox() <- Join{ConnID: "p1", Outbox: playerOut}
	h.Inbox() <- FromClient{ConnID: "p1", Msg: types.ClientMessage{Action: "join_room", RoomCode: "AAAA", Name: "Alice"}}

	joined := recvFrame(t, playerOut, time.Second)
	require.Equal(t, "join_ok", joined["action"])
	require.Equal(t, "lobby", joined["phase"])

	count := recvFrame(t, hostOut, time.Second)
	require.Equal(t, "player_count", count["action"])
	require.EqualValues(t, 1, count["count"])

	list := recvFrame(t, hostOut, time.Second)
	require.Equal(t, "player_list", list["action"])
	require.Equal(t, []any{"Alice"}, list["players"])
}

func TestHub_DropSlowClient(t *testing.T) {
	h := newTestHub(t)

	// A one-deep outbox that nobody drains: the room_created frame fills it,
	// so the next send to the host cannot be queued.
	hostOut := make(chan []byte, 1)
	h.Inbox() <- Join{ConnID: "host", Outbox: hostOut}
	h.Inbox() <- FromClient{ConnID: "host", Msg: types.ClientMessage{Action: "create_room", RoomCode: "AAAA"}}

	playerOut := make(chan []byte, 4)
	h.Inbox() <- Join{ConnID: "p1", Outbox: playerOut}
	h.Inbox() <- FromClient{ConnID: "p1", Msg: types.ClientMessage{Action: "join_room", RoomCode: "AAAA", Name: "Alice"}}

	view := inspect(t, h)
	require.Equal(t, 1, view.Clients)
	require.Equal(t, 1, view.Rooms) // host may still reconnect with the token
}

func TestHub_EndGameClosesRoom(t *testing.T) {
	h := newTestHub(t)

	hostOut := make(chan []byte, 8)
	h.Inbox() <- Join{ConnID: "host", Outbox: hostOut}
	h.Inbox() <- FromClient{ConnID: "host", Msg: types.ClientMessage{Action: "create_room", RoomCode: "AAAA"}}
	_ = recvFrame(t, hostOut, time.Second)

	playerOut := make(chan []byte, 8)
	h.Inbox() <- Join{ConnID: "p1", Outbox: playerOut}
	h.Inbox() <- FromClient{ConnID: "p1", Msg: types.ClientMessage{Action: "join_room", RoomCode: "AAAA", Name: "Alice"}}
	_ = recvFrame(t, playerOut, time.Second)

	h.Inbox() <- FromClient{ConnID: "host", Msg: types.ClientMessage{Action: "end_game"}}

	// Both sides get game_over, then their outboxes close.
	recvClosed(t, playerOut, time.Second)
	recvClosed(t, hostOut, time.Second)

	view := inspect(t, h)
	require.Zero(t, view.Clients)
	require.Zero(t, view.Rooms)
}

func TestHub_LeaveRunsDisconnectPath(t *testing.T) {
	h := newTestHub(t)

	hostOut := make(chan []byte, 8)
	h.Inbox() <- Join{ConnID: "host", Outbox: hostOut}
	h.Inbox() <- FromClient{ConnID: "host", Msg: types.ClientMessage{Action: "create_room", RoomCode: "AAAA"}}

	playerOut := make(chan []byte, 8)
	h.Inbox() <- Join{ConnID: "p1", Outbox: playerOut}
	h.Inbox() <- FromClient{ConnID: "p1", Msg: types.ClientMessage{Action: "join_room", RoomCode: "AAAA", Name: "Alice"}}

	h.Inbox() <- Leave{ConnID: "host"}
	h.Inbox() <- Leave{ConnID: "p1"}

	view := inspect(t, h)
	require.Zero(t, view.Clients)
	require.Zero(t, view.Rooms)
}

func TestHub_UnknownActionIgnored(t *testing.T) {
	h := newTestHub(t)

	out := make(chan []byte, 4)
	h.Inbox() <- Join{ConnID: "c1", Outbox: out}
	h.Inbox() <- FromClient{ConnID: "c1", Msg: types.ClientMessage{Action: "dance"}}

	view := inspect(t, h)
	require.Equal(t, 1, view.Clients)
	require.Empty(t, out)
}
