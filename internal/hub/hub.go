package hub

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/caseclosed/backend/internal/engine"
	"github.com/caseclosed/backend/pkg/types"
)

type Msg interface{ isHubMsg() }

// Join registers a connection and its outbox.
type Join struct {
	ConnID string
	Outbox chan []byte
}

// Leave is sent by the transport when the connection closes.
type Leave struct{ ConnID string }

// FromClient carries one decoded inbound frame.
type FromClient struct {
	ConnID string
	Msg    types.ClientMessage
}

type Shutdown struct{}

// Inspect is a test hook: reflect internal state without data races.
type Inspect struct{ Reply chan View }

type View struct {
	Clients int
	Rooms   int
}

func (Join) isHubMsg()       {}
func (Leave) isHubMsg()      {}
func (FromClient) isHubMsg() {}
func (Shutdown) isHubMsg()   {}
func (Inspect) isHubMsg()    {}

// Hub is the protocol dispatcher. One goroutine drains the inbox and handles
// each message to completion, so no two actions on the same room ever
// interleave. That serialization is what makes exactly-once vote counting
// safe without locks.
type Hub struct {
	inbox  chan Msg
	reg    *registry
	eng    *engine.Engine
	store  *engine.Store
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, eng *engine.Engine, store *engine.Store, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan Msg, 64),
		reg:    newRegistry(),
		eng:    eng,
		store:  store,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- Msg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Join:
				h.reg.add(msg.ConnID, msg.Outbox)
				h.log.Info("client connected", zap.String("conn", msg.ConnID))

			case Leave:
				h.leave(msg.ConnID)

			case FromClient:
				c := h.reg.get(msg.ConnID)
				if c == nil {
					break
				}
				h.apply(msg.ConnID, h.dispatch(c.sess, msg.Msg))

			case Inspect:
				msg.Reply <- View{Clients: h.reg.len(), Rooms: h.store.Len()}

			case Shutdown:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for id := range h.reg.clients {
		h.reg.drop(id)
	}
	h.cancel()
}

func (h *Hub) leave(connID string) {
	c := h.reg.get(connID)
	if c == nil {
		return
	}
	h.log.Info("client disconnected", zap.String("conn", connID))
	out := h.eng.Disconnect(c.sess)
	h.reg.drop(connID)
	h.apply(connID, out)
}

// dispatch routes one inbound action to its engine handler. Unknown actions
// are ignored, per the wire contract.
func (h *Hub) dispatch(sess *engine.Session, m types.ClientMessage) engine.Outcome {
	switch m.Action {
	case "create_room":
		return h.eng.CreateRoom(sess, m.RoomCode)
	case "join_room":
		return h.eng.JoinRoom(sess, m.RoomCode, m.Name)
	case "host_reconnect":
		return h.eng.HostReconnect(sess, m.RoomCode, m.HostToken)
	case "get_players":
		return h.eng.GetPlayers(sess, m.RoomCode)
	case "start_submissions":
		return h.eng.StartSubmissions(sess, m.Category)
	case "end_submissions":
		return h.eng.EndSubmissions(sess)
	case "submit_item":
		return h.eng.SubmitItem(sess, m.Item)
	case "get_submissions":
		return h.eng.GetSubmissions(sess, m.RoomCode)
	case "start_voting":
		return h.eng.StartVoting(sess)
	case "submit_votes":
		return h.eng.SubmitVotes(sess, m.Votes)
	case "start_battle":
		if m.Battle == nil {
			return engine.Outcome{}
		}
		return h.eng.StartBattle(sess, m.Battle.Item1, m.Battle.Item2)
	case "submit_battle_vote":
		return h.eng.SubmitBattleVote(sess, m.Vote)
	case "end_game":
		return h.eng.EndGame(sess)
	default:
		h.log.Warn("unknown action", zap.String("action", m.Action))
		return engine.Outcome{}
	}
}

// apply delivers an outcome: an error goes back to the sender only; effects
// fan out to their recipient snapshots. Clients with full outboxes are
// dropped and then run through the disconnect path, the same as a close.
func (h *Hub) apply(senderID string, out engine.Outcome) {
	if out.Err != nil {
		h.send(senderID, types.ErrorMessage{Action: "error", Message: out.Err.Error()})
		return
	}

	var slow []string
	for _, ef := range out.Effects {
		frame, err := json.Marshal(ef.Payload)
		if err != nil {
			h.log.Error("encode payload", zap.Error(err))
			continue
		}
		for _, id := range ef.To {
			c := h.reg.get(id)
			if c == nil {
				continue
			}
			select {
			case c.outbox <- frame:
			default:
				slow = append(slow, id)
			}
		}
		if ef.Close {
			for _, id := range ef.To {
				h.reg.drop(id)
			}
		}
	}

	for _, id := range slow {
		h.log.Warn("dropping slow client", zap.String("conn", id))
		h.leave(id)
	}
}

func (h *Hub) send(connID string, payload any) {
	c := h.reg.get(connID)
	if c == nil {
		return
	}
	frame, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("encode payload", zap.Error(err))
		return
	}
	select {
	case c.outbox <- frame:
	default:
		h.log.Warn("dropping slow client", zap.String("conn", connID))
		h.leave(connID)
	}
}
