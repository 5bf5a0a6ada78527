// Package pub fans world snapshots out to websocket subscribers and queues
// their votes and inspection requests for the tick loop. It never mutates
// world state itself.
package pub

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dkettler/gridroyale/internal/agent"
	"github.com/dkettler/gridroyale/internal/thinking"
	"github.com/dkettler/gridroyale/internal/vote"
	"github.com/dkettler/gridroyale/internal/world"
	"github.com/dkettler/gridroyale/internal/worldmap"
)

const (
	writeWait = 10 * time.Second
	// sendBuffer bounds the per-subscriber outbound queue. A subscriber
	// that falls this far behind is disconnected and resyncs on reconnect.
	sendBuffer = 64
)

// Subscriber is one connected spectator. Its uuid doubles as the playerId on
// votes.
type Subscriber struct {
	ID   string
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func (s *Subscriber) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// enqueue hands a frame to the writer. Returns false when the buffer is
// full, which marks the subscriber for disconnection.
func (s *Subscriber) enqueue(frame []byte) bool {
	select {
	case <-s.done:
		return true
	case s.send <- frame:
		return true
	default:
		return false
	}
}

// Hub owns the subscriber set and the follower index.
type Hub struct {
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu        sync.Mutex
	subs      map[*Subscriber]struct{}
	followers map[*Subscriber]string // subscriber -> followed agent id

	intentsMu sync.Mutex
	intents   []Intent
}

// NewHub creates a hub restricting connections to the given origins. An
// entry of "*" allows any origin.
func NewHub(origins []string, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	allowAll := false
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowAll {
					return true
				}
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
		subs:      make(map[*Subscriber]struct{}),
		followers: make(map[*Subscriber]string),
	}
}

// SubscriberCount returns the number of connected spectators.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// ServeWS upgrades an HTTP request into a subscriber connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	sub := &Subscriber{
		ID:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	h.log.Info("subscriber connected", "id", sub.ID, "remote", conn.RemoteAddr())

	// Connect-time full sync is serviced by the world owner next tick.
	h.pushIntent(Intent{Sub: sub, Kind: "connect"})

	go h.writePump(sub)
	go h.readPump(sub)
}

func (h *Hub) remove(sub *Subscriber) {
	h.mu.Lock()
	_, present := h.subs[sub]
	delete(h.subs, sub)
	delete(h.followers, sub)
	h.mu.Unlock()
	sub.close()
	if present {
		h.log.Info("subscriber disconnected", "id", sub.ID)
	}
}

func (h *Hub) writePump(sub *Subscriber) {
	defer h.remove(sub)
	for {
		select {
		case <-sub.done:
			return
		case frame := <-sub.send:
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.log.Debug("write failed", "id", sub.ID, "error", err)
				return
			}
		}
	}
}

// readPump parses inbound envelopes into intents. Malformed frames are
// ignored; a read error ends the connection.
func (h *Hub) readPump(sub *Subscriber) {
	defer h.remove(sub)
	for {
		_, raw, err := sub.conn.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			h.log.Debug("malformed frame ignored", "id", sub.ID, "error", err)
			continue
		}
		switch env.Type {
		case MsgVoteSubmit:
			var msg voteSubmitMsg
			if err := json.Unmarshal(env.Data, &msg); err != nil {
				continue
			}
			h.pushIntent(Intent{
				Sub:  sub,
				Kind: MsgVoteSubmit,
				Vote: vote.Vote{AgentID: msg.AgentID, Action: msg.Action, PlayerID: sub.ID},
			})
		case MsgAgentInspect:
			var msg agentInspectMsg
			if err := json.Unmarshal(env.Data, &msg); err != nil {
				continue
			}
			h.pushIntent(Intent{Sub: sub, Kind: MsgAgentInspect, AgentID: msg.AgentID})
		case MsgAgentFollow:
			var msg agentFollowMsg
			if err := json.Unmarshal(env.Data, &msg); err != nil {
				continue
			}
			h.pushIntent(Intent{Sub: sub, Kind: MsgAgentFollow, Follow: msg.AgentID})
		case MsgThinkingRequest:
			var msg thinkingRequestMsg
			if err := json.Unmarshal(env.Data, &msg); err != nil {
				continue
			}
			h.pushIntent(Intent{Sub: sub, Kind: MsgThinkingRequest, AgentID: msg.AgentID, Limit: msg.Limit})
		default:
			h.log.Debug("unknown message kind ignored", "id", sub.ID, "kind", env.Type)
		}
	}
}

func (h *Hub) pushIntent(in Intent) {
	h.intentsMu.Lock()
	h.intents = append(h.intents, in)
	h.intentsMu.Unlock()
}

// DrainIntents hands the queued inbound requests to the world owner.
func (h *Hub) DrainIntents() []Intent {
	h.intentsMu.Lock()
	out := h.intents
	h.intents = nil
	h.intentsMu.Unlock()
	return out
}

// SetFollow updates the follower index for one subscriber.
func (h *Hub) SetFollow(sub *Subscriber, agentID *string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if agentID == nil {
		delete(h.followers, sub)
		return
	}
	h.followers[sub] = *agentID
}

// snapshotSubs copies the subscriber set so sends happen outside the lock.
func (h *Hub) snapshotSubs() []*Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Subscriber, 0, len(h.subs))
	for sub := range h.subs {
		out = append(out, sub)
	}
	return out
}

func (h *Hub) sendTo(sub *Subscriber, msgType string, tick int, payload any) {
	frame, err := encode(msgType, tick, payload)
	if err != nil {
		h.log.Error("encode failed", "type", msgType, "error", err)
		return
	}
	if !sub.enqueue(frame) {
		h.log.Warn("subscriber buffer full, dropping connection", "id", sub.ID)
		h.remove(sub)
	}
}

func (h *Hub) broadcast(msgType string, tick int, payload any) {
	frame, err := encode(msgType, tick, payload)
	if err != nil {
		h.log.Error("encode failed", "type", msgType, "error", err)
		return
	}
	for _, sub := range h.snapshotSubs() {
		if !sub.enqueue(frame) {
			h.log.Warn("subscriber buffer full, dropping connection", "id", sub.ID)
			h.remove(sub)
		}
	}
}

// SendFullSync sends the connect-time snapshot, tilemap included, to one
// subscriber.
func (h *Hub) SendFullSync(sub *Subscriber, w *world.World) {
	h.sendTo(sub, MsgSyncFull, w.Tick(), fullSyncMsg{
		FullSync: w.GetFullSync(),
		TileMap:  worldmap.Marshal(w.TileMap()),
	})
}

// SendAgentDetail sends one agent's full state to one subscriber.
func (h *Hub) SendAgentDetail(sub *Subscriber, tick int, a *agent.Agent) {
	h.sendTo(sub, MsgAgentDetail, tick, a)
}

// SendThinkingHistory replies to a thinking.request.
func (h *Hub) SendThinkingHistory(sub *Subscriber, tick int, agentID string, history []thinking.Process) {
	h.sendTo(sub, MsgThinkingHistory, tick, thinkingMsg{AgentID: agentID, History: history})
}

// BroadcastTick publishes the end-of-tick snapshot: world counters, agents
// (delta or full), events when present, vote state, paths always so clients
// can clear stale routes, and a detail push to each follower whose agent
// changed.
func (h *Hub) BroadcastTick(w *world.World, events []world.Event, deltaMode bool) {
	tick := w.Tick()

	h.broadcast(MsgSyncWorld, tick, w.GetWorldState())

	changed := w.ComputeAgentDelta()
	if deltaMode {
		h.broadcast(MsgSyncAgents, tick, agentsMsg{Delta: true, Agents: changed})
	} else {
		h.broadcast(MsgSyncAgents, tick, agentsMsg{Delta: false, Agents: w.Agents()})
	}

	if len(events) > 0 {
		h.broadcast(MsgSyncEvents, tick, events)
	}
	h.broadcast(MsgVoteState, tick, w.Votes().GetState())
	h.broadcast(MsgSyncPaths, tick, pathsMsg{Paths: w.AgentPaths()})

	changedIDs := make(map[string]*agent.Agent, len(changed))
	for _, a := range changed {
		changedIDs[a.ID] = a
	}
	h.mu.Lock()
	type push struct {
		sub *Subscriber
		a   *agent.Agent
	}
	var pushes []push
	for sub, followedID := range h.followers {
		if a, ok := changedIDs[followedID]; ok {
			pushes = append(pushes, push{sub: sub, a: a})
		}
	}
	h.mu.Unlock()
	for _, p := range pushes {
		h.SendAgentDetail(p.sub, tick, p.a)
	}
}

// Shutdown disconnects every subscriber.
func (h *Hub) Shutdown() {
	for _, sub := range h.snapshotSubs() {
		h.remove(sub)
	}
}
