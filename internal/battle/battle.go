// Package battle runs head-to-head matches over websockets. Each battle id
// gets its own isolated hub; both players race through the same challenge
// and the hub relays progress, resolves the winner when both finish, and
// persists the outcome.
package battle

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	constants "github.com/RomainGaget-hub/foot-challenge/internal/constants"
	store "github.com/RomainGaget-hub/foot-challenge/internal/store"
	util "github.com/RomainGaget-hub/foot-challenge/internal/util"
)

// hubIdleTTL is how long an unresolved hub may sit without clients before
// the reaper drops it. Resolved hubs go as soon as the last client leaves.
const hubIdleTTL = 5 * time.Minute

// Message is the wire format in both directions.
type Message struct {
	Type       string `json:"type"`
	UserID     string `json:"userId,omitempty"`
	QuestionID string `json:"questionId,omitempty"`
	Correct    bool   `json:"correct,omitempty"`
	Score      int    `json:"score,omitempty"`
	WinnerID   string `json:"winnerId,omitempty"`
	Tie        bool   `json:"tie,omitempty"`
}

const (
	MessageJoin     = "join"
	MessageJoined   = "joined"
	MessageProgress = "progress"
	MessageFinish   = "finish"
	MessageResult   = "result"
	MessageOpponent = "opponent_left"
)

type Client struct {
	conn   *websocket.Conn
	send   chan Message
	userID string
}

type event struct {
	client *Client
	msg    Message
}

// Hub owns one battle's connections and score state. All mutation happens on
// the run goroutine; channels are the only way in. The atomic counters shadow
// that state for the manager's reaper, which must inspect hubs from outside.
type Hub struct {
	battleID string
	store    *store.Store

	register   chan *Client
	unregister chan *Client
	events     chan event
	quit       chan struct{}

	clients  map[*Client]struct{}
	scores   map[string]int
	finished map[string]bool
	done     bool

	clientCount atomic.Int32
	resolved    atomic.Bool
	lastActive  atomic.Int64
}

func newHub(battleID string, st *store.Store) *Hub {
	h := &Hub{
		battleID:   battleID,
		store:      st,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan event, 8),
		quit:       make(chan struct{}),
		clients:    make(map[*Client]struct{}),
		scores:     make(map[string]int),
		finished:   make(map[string]bool),
	}
	h.touch()
	return h
}

func (h *Hub) touch() {
	h.lastActive.Store(time.Now().Unix())
}

// run exits when the manager closes quit, releasing the hub's goroutine and
// any clients still attached.
func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.clientCount.Store(int32(len(h.clients)))
			h.touch()
			h.broadcast(Message{Type: MessageJoined, UserID: client.userID})

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.clientCount.Store(int32(len(h.clients)))
				h.touch()
				if !h.done {
					// A dropped connection forfeits the battle.
					h.broadcast(Message{Type: MessageOpponent, UserID: client.userID})
				}
			}

		case ev := <-h.events:
			h.touch()
			h.handle(ev)

		case <-h.quit:
			for client := range h.clients {
				close(client.send)
			}
			return
		}
	}
}

func (h *Hub) handle(ev event) {
	if h.done {
		return
	}
	switch ev.msg.Type {
	case MessageProgress:
		h.scores[ev.client.userID] = ev.msg.Score
		h.broadcastExcept(ev.client, Message{
			Type:       MessageProgress,
			UserID:     ev.client.userID,
			QuestionID: ev.msg.QuestionID,
			Correct:    ev.msg.Correct,
			Score:      ev.msg.Score,
		})

	case MessageFinish:
		h.scores[ev.client.userID] = ev.msg.Score
		h.finished[ev.client.userID] = true
		if len(h.finished) >= 2 {
			h.resolve()
		}
	}
}

// resolve picks the winner (none on a tie), persists the result, and tells
// both players.
func (h *Hub) resolve() {
	battle, err := h.store.GetBattle(context.Background(), h.battleID)
	if err != nil {
		util.LogWarn("Battle %s: cannot resolve, lookup failed: %v", h.battleID, err)
		return
	}

	player1Score := h.scores[battle.Player1ID]
	player2Score := h.scores[battle.Player2ID]

	var winnerID *string
	result := Message{Type: MessageResult, Score: player1Score}
	switch {
	case player1Score > player2Score:
		winnerID = &battle.Player1ID
		result.WinnerID = battle.Player1ID
	case player2Score > player1Score:
		winnerID = &battle.Player2ID
		result.WinnerID = battle.Player2ID
	default:
		result.Tie = true
	}

	if err := h.store.CompleteBattle(context.Background(), h.battleID, player1Score, player2Score, winnerID); err != nil {
		util.LogWarn("Battle %s: failed to persist result: %v", h.battleID, err)
	}
	h.done = true
	h.resolved.Store(true)
	h.broadcast(result)
	util.LogInfo("Battle %s resolved: %d-%d", h.battleID, player1Score, player2Score)
}

func (h *Hub) broadcast(msg Message) {
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
		}
	}
}

func (h *Hub) broadcastExcept(skip *Client, msg Message) {
	for client := range h.clients {
		if client == skip {
			continue
		}
		select {
		case client.send <- msg:
		default:
		}
	}
}

// Manager holds one hub per battle id so each battle is its own isolated
// room. A reaper goroutine drops hubs once they are resolved and empty, or
// abandoned past hubIdleTTL, so finished battles release their goroutines.
type Manager struct {
	mu    sync.Mutex
	hubs  map[string]*Hub
	store *store.Store
}

func NewManager(st *store.Store) *Manager {
	m := &Manager{
		hubs:  make(map[string]*Hub),
		store: st,
	}
	go m.reaperLoop()
	return m
}

func (m *Manager) reaperLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		m.CleanupExpired()
	}
}

// CleanupExpired reaps hubs with no clients: immediately once resolved,
// after hubIdleTTL when the battle was abandoned unresolved.
func (m *Manager) CleanupExpired() {
	cutoff := time.Now().Add(-hubIdleTTL).Unix()

	m.mu.Lock()
	defer m.mu.Unlock()
	reaped := 0
	for id, hub := range m.hubs {
		if hub.clientCount.Load() > 0 {
			continue
		}
		if hub.resolved.Load() || hub.lastActive.Load() < cutoff {
			delete(m.hubs, id)
			close(hub.quit)
			reaped++
		}
	}
	if reaped > 0 {
		util.LogInfo("Reaped %d idle battle hubs", reaped)
	}
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.hubs)
}

func (m *Manager) getHub(battleID string) *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[battleID]; ok {
		return hub
	}
	hub := newHub(battleID, m.store)
	m.hubs[battleID] = hub
	go hub.run()
	return hub
}

// Join attaches a websocket connection to the battle's hub. The second
// player to arrive moves a pending battle in progress.
func (m *Manager) Join(ctx context.Context, battleID, userID string, conn *websocket.Conn) error {
	battle, err := m.store.GetBattle(ctx, battleID)
	if err != nil {
		return err
	}
	if battle.Status == constants.BattleStatusPending && userID != battle.Player1ID {
		if err := m.store.JoinBattle(ctx, battleID, userID); err != nil {
			util.LogWarn("Battle %s: join by %s failed: %v", battleID, userID, err)
		}
	}

	client := &Client{
		conn:   conn,
		send:   make(chan Message, 8),
		userID: userID,
	}
	hub := m.getHub(battleID)
	select {
	case hub.register <- client:
	case <-hub.quit:
		// Reaped between lookup and registration; a fresh hub takes over.
		hub = m.getHub(battleID)
		hub.register <- client
	}

	go client.writePump()
	go client.readPump(hub)
	return nil
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.quit:
		}
		c.conn.Close()
	}()

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		msg.UserID = c.userID
		select {
		case h.events <- event{client: c, msg: msg}:
		case <-h.quit:
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}
