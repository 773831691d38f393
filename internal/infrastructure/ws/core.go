package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/parleychat/parley/internal/domain"
	"github.com/parleychat/parley/internal/infrastructure/configs"
	"github.com/parleychat/parley/internal/infrastructure/logging"
	"github.com/parleychat/parley/internal/infrastructure/metrics"
	"github.com/parleychat/parley/internal/infrastructure/validate"
)

// EventPublisher mirrors sync events onto an out-of-process bus.
// Publishing is best-effort and never gates the live broadcast.
type EventPublisher interface {
	PublishMessageSent(ctx context.Context, message domain.Message) error
	PublishUserOnline(ctx context.Context, user domain.User) error
	PublishUserOffline(ctx context.Context, user domain.User) error
}

// Core owns the connection lifecycle and wires presence, room routing,
// typing and the message relay together.
//
// Locking: Dispatch holds mu for read, Connect/Disconnect for write.
// Disconnect cleanup is therefore atomic with respect to in-flight
// events from the same connection; once the session entry is gone no
// event can re-insert state behind the cleanup.
type Core struct {
	log     logging.Logger
	cfg     configs.WSConfig
	metrics *metrics.SyncMetrics

	presence  *Presence
	rooms     *RoomManager
	typing    *TypingTracker
	publisher EventPublisher

	mu       sync.RWMutex
	sessions map[string]*Client

	shutdown sync.Once
}

// NewCore builds the sync core. publisher may be nil when the broker
// is disabled.
func NewCore(log logging.Logger, cfg configs.WSConfig, m *metrics.SyncMetrics, publisher EventPublisher) *Core {
	return &Core{
		log:       log,
		cfg:       cfg,
		metrics:   m,
		presence:  NewPresence(),
		rooms:     NewRoomManager(),
		typing:    NewTypingTracker(),
		publisher: publisher,
		sessions:  make(map[string]*Client),
	}
}

// Connect registers a freshly upgraded connection. The connection
// stays anonymous until it sends a join event.
func (c *Core) Connect(cl *Client) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sessions[cl.ID] = cl
	c.metrics.OpenConnections.Set(float64(len(c.sessions)))

	c.log.Debug(logging.WebSocket, logging.Connect, "connection opened", map[logging.ExtraKey]any{
		logging.ConnectionID: cl.ID,
	})
}

// Disconnect runs the cleanup sequence for a closing connection: room
// memberships, outstanding typing entries, then presence. It is safe
// to call more than once; only the first call does work.
func (c *Core) Disconnect(cl *Client) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.sessions[cl.ID]; !ok {
		cl.Close()
		return
	}
	delete(c.sessions, cl.ID)

	// Closing first marks the connection dead so a racing joinRoom
	// cannot re-add membership after LeaveAll (see RoomManager.Join).
	cl.Close()

	c.rooms.LeaveAll(cl)

	for _, entry := range c.typing.ClearConnection(cl.ID) {
		c.broadcast(entry.ChatID, NewUserStoppedTyping(entry.UserID), cl.ID)
	}

	if identity, wasLast := c.presence.Forget(cl.ID); wasLast {
		c.broadcastAllLocked(NewUserOffline(identity), cl.ID)
		c.publishPresence(identity, false)
	}

	c.metrics.OpenConnections.Set(float64(len(c.sessions)))
	c.metrics.OnlineUsers.Set(float64(c.presence.Online()))

	c.log.Debug(logging.WebSocket, logging.Disconnect, "connection closed", map[logging.ExtraKey]any{
		logging.ConnectionID: cl.ID,
	})
}

// Dispatch handles one inbound frame from cl. Every path is total:
// malformed events are logged and discarded, the connection stays up.
func (c *Core) Dispatch(cl *Client, raw []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, ok := c.sessions[cl.ID]; !ok {
		return // disconnect cleanup already ran
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.protocolError(cl, "unparseable frame", err)
		return
	}

	c.metrics.EventsTotal.WithLabelValues(env.Event).Inc()

	switch env.Event {
	case EventJoin:
		c.handleJoin(cl, env.Data)
	case EventJoinRoom:
		c.handleJoinRoom(cl, env.Data)
	case EventNewMessage:
		c.handleNewMessage(cl, env.Data)
	case EventTyping:
		c.handleTyping(cl, env.Data)
	case EventStopTyping:
		c.handleStopTyping(cl, env.Data)
	default:
		c.protocolError(cl, "unknown event "+env.Event, nil)
	}
}

func (c *Core) handleJoin(cl *Client, data json.RawMessage) {
	var identity domain.User
	if err := json.Unmarshal(data, &identity); err != nil {
		c.protocolError(cl, "bad join payload", err)
		return
	}
	if identity.ID == "" || identity.Username == "" {
		c.protocolError(cl, "join payload missing id or username", nil)
		return
	}

	first := c.presence.Announce(cl.ID, identity)
	if first {
		c.broadcastAllLocked(NewUserOnline(identity), cl.ID)
		c.publishPresence(identity, true)
	}

	// Hydrate only the joining connection with who is already here.
	cl.enqueue(NewActiveUsers(c.presence.Snapshot()))

	c.metrics.OnlineUsers.Set(float64(c.presence.Online()))

	c.log.Info(logging.WebSocket, logging.Presence, "user joined", map[logging.ExtraKey]any{
		logging.ConnectionID: cl.ID,
		logging.UserID:       identity.ID,
	})
}

func (c *Core) handleJoinRoom(cl *Client, data json.RawMessage) {
	// Clients may send the room id bare or wrapped in an object.
	var chatID string
	if err := json.Unmarshal(data, &chatID); err != nil {
		var payload JoinRoomPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			c.protocolError(cl, "bad joinRoom payload", err)
			return
		}
		if err := validate.Struct(payload); err != nil {
			c.protocolError(cl, "bad joinRoom payload", err)
			return
		}
		chatID = payload.ChatID
	}

	if chatID == "" {
		c.protocolError(cl, "joinRoom payload missing chat id", nil)
		return
	}

	c.rooms.Join(cl, chatID)

	c.log.Debug(logging.WebSocket, logging.Broadcast, "joined room", map[logging.ExtraKey]any{
		logging.ConnectionID: cl.ID,
		logging.ChatID:       chatID,
	})
}

// handleNewMessage is the relay: the payload is trusted to be an
// already-persisted message and is fanned out to the whole room,
// sender's connections included (clients dedupe by message id).
func (c *Core) handleNewMessage(cl *Client, data json.RawMessage) {
	var payload RelayPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.protocolError(cl, "bad newMessage payload", err)
		return
	}
	if err := validate.Struct(payload); err != nil {
		c.protocolError(cl, "bad newMessage payload", err)
		return
	}

	c.broadcast(payload.ChatID, NewMessageReceived(payload), "")

	if c.publisher != nil {
		message := domain.Message{
			ID:        payload.ID,
			ChatID:    payload.ChatID,
			Sender:    payload.Sender,
			Content:   payload.Content,
			Type:      payload.Type,
			CreatedAt: payload.CreatedAt,
		}
		go func() {
			if err := c.publisher.PublishMessageSent(context.Background(), message); err != nil {
				c.log.Warn(logging.RabbitMQ, logging.Relay, "failed to publish message.sent", map[logging.ExtraKey]any{
					logging.ErrorMessage: err.Error(),
				})
			}
		}()
	}
}

func (c *Core) handleTyping(cl *Client, data json.RawMessage) {
	var payload TypingPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.protocolError(cl, "bad typing payload", err)
		return
	}
	if err := validate.Struct(payload); err != nil {
		c.protocolError(cl, "bad typing payload", err)
		return
	}

	// Already typing: swallow the repeat instead of re-broadcasting.
	if !c.typing.Start(cl.ID, payload.ChatID, payload.UserID) {
		return
	}

	c.broadcast(payload.ChatID, NewUserTyping(payload.UserID, payload.Username), cl.ID)
}

func (c *Core) handleStopTyping(cl *Client, data json.RawMessage) {
	var payload StopTypingPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.protocolError(cl, "bad stopTyping payload", err)
		return
	}
	if err := validate.Struct(payload); err != nil {
		c.protocolError(cl, "bad stopTyping payload", err)
		return
	}

	if !c.typing.Stop(payload.ChatID, payload.UserID) {
		return
	}

	c.broadcast(payload.ChatID, NewUserStoppedTyping(payload.UserID), cl.ID)
}

func (c *Core) broadcast(chatID string, msg *Outbound, excludeConnID string) {
	delivered, dropped := c.rooms.Broadcast(chatID, msg, excludeConnID)

	c.metrics.BroadcastsTotal.WithLabelValues(msg.Event).Inc()
	if dropped > 0 {
		c.metrics.DroppedSends.WithLabelValues(msg.Event).Add(float64(dropped))
		c.log.Warn(logging.WebSocket, logging.Broadcast, "dropped events for slow recipients", map[logging.ExtraKey]any{
			logging.EventName: msg.Event,
			logging.ChatID:    chatID,
			"Delivered":       delivered,
			"Dropped":         dropped,
		})
	}
}

// broadcastAllLocked queues msg on every open connection except the
// excluded one. Caller must hold mu (read or write).
func (c *Core) broadcastAllLocked(msg *Outbound, excludeConnID string) {
	dropped := 0
	for id, cl := range c.sessions {
		if id == excludeConnID {
			continue
		}
		if !cl.enqueue(msg) {
			dropped++
		}
	}

	c.metrics.BroadcastsTotal.WithLabelValues(msg.Event).Inc()
	if dropped > 0 {
		c.metrics.DroppedSends.WithLabelValues(msg.Event).Add(float64(dropped))
	}
}

func (c *Core) publishPresence(identity domain.User, online bool) {
	if c.publisher == nil {
		return
	}

	go func() {
		var err error
		if online {
			err = c.publisher.PublishUserOnline(context.Background(), identity)
		} else {
			err = c.publisher.PublishUserOffline(context.Background(), identity)
		}
		if err != nil {
			c.log.Warn(logging.RabbitMQ, logging.Presence, "failed to publish presence event", map[logging.ExtraKey]any{
				logging.UserID:       identity.ID,
				logging.ErrorMessage: err.Error(),
			})
		}
	}()
}

func (c *Core) protocolError(cl *Client, msg string, err error) {
	c.metrics.ProtocolErrors.Inc()

	extra := map[logging.ExtraKey]any{
		logging.ConnectionID: cl.ID,
	}
	if err != nil {
		extra[logging.ErrorMessage] = err.Error()
	}
	c.log.Warn(logging.WebSocket, logging.Protocol, msg, extra)
}

func (c *Core) logReadError(cl *Client, err error) {
	c.log.Warn(logging.WebSocket, logging.Disconnect, "read error", map[logging.ExtraKey]any{
		logging.ConnectionID: cl.ID,
		logging.ErrorMessage: err.Error(),
	})
}

// Shutdown closes every open connection and runs their cleanup.
func (c *Core) Shutdown() {
	c.shutdown.Do(func() {
		c.mu.Lock()
		clients := make([]*Client, 0, len(c.sessions))
		for _, cl := range c.sessions {
			clients = append(clients, cl)
		}
		c.mu.Unlock()

		for _, cl := range clients {
			c.Disconnect(cl)
		}
	})
}
