package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/parleychat/parley/internal/domain"
	"github.com/parleychat/parley/internal/infrastructure/logging"
	"github.com/parleychat/parley/internal/infrastructure/metrics"
)

func testLogger() logging.Logger {
	return logging.NewLogger(&logging.LoggerConfig{
		Logger: "zerolog",
		Level:  "fatal",
	})
}

func newTestCore(publisher EventPublisher) *Core {
	return NewCore(testLogger(), testWSConfig(), metrics.NewSyncMetrics(prometheus.NewRegistry()), publisher)
}

func frame(t *testing.T, event string, data any) []byte {
	t.Helper()

	raw, err := json.Marshal(map[string]any{
		"event": event,
		"data":  data,
	})
	require.NoError(t, err)
	return raw
}

func connectAndJoin(t *testing.T, core *Core, connID string, identity domain.User) *Client {
	t.Helper()

	cl := newTestClient(connID)
	core.Connect(cl)
	core.Dispatch(cl, frame(t, EventJoin, identity))
	return cl
}

func countEvents(msgs []*Outbound, event string) int {
	n := 0
	for _, msg := range msgs {
		if msg.Event == event {
			n++
		}
	}
	return n
}

func TestCore_JoinHydratesJoinerAndAnnouncesToOthers(t *testing.T) {
	req := require.New(t)
	core := newTestCore(nil)

	ana := connectAndJoin(t, core, "conn-a", domain.User{ID: "u1", Username: "ana"})
	anaMsgs := drain(ana)
	req.Equal(1, countEvents(anaMsgs, EventActiveUsers))

	// The hydration snapshot includes the joiner itself.
	users, ok := anaMsgs[0].Data.([]domain.User)
	req.True(ok)
	req.Len(users, 1)
	req.Equal("u1", users[0].ID)

	bea := connectAndJoin(t, core, "conn-b", domain.User{ID: "u2", Username: "bea"})

	anaMsgs = drain(ana)
	req.Equal(1, countEvents(anaMsgs, EventUserOnline))

	beaMsgs := drain(bea)
	req.Equal(0, countEvents(beaMsgs, EventUserOnline))
	req.Equal(1, countEvents(beaMsgs, EventActiveUsers))

	users, ok = beaMsgs[0].Data.([]domain.User)
	req.True(ok)
	req.Len(users, 2)
}

func TestCore_SecondDeviceDoesNotReannounce(t *testing.T) {
	req := require.New(t)
	core := newTestCore(nil)
	identity := domain.User{ID: "u1", Username: "ana"}

	observer := connectAndJoin(t, core, "conn-obs", domain.User{ID: "u9", Username: "obs"})
	drain(observer)

	first := connectAndJoin(t, core, "conn-1", identity)
	req.Equal(1, countEvents(drain(observer), EventUserOnline))

	second := connectAndJoin(t, core, "conn-2", identity)
	req.Equal(0, countEvents(drain(observer), EventUserOnline))

	// Closing one device keeps the user online.
	core.Disconnect(first)
	req.Equal(0, countEvents(drain(observer), EventUserOffline))

	// Closing the last device announces offline exactly once.
	core.Disconnect(second)
	offline := drain(observer)
	req.Equal(1, countEvents(offline, EventUserOffline))
}

func TestCore_RelayDeliversOncePerRoomMember(t *testing.T) {
	req := require.New(t)
	core := newTestCore(nil)

	ana := connectAndJoin(t, core, "conn-a", domain.User{ID: "u1", Username: "ana"})
	bea := connectAndJoin(t, core, "conn-b", domain.User{ID: "u2", Username: "bea"})
	outsider := connectAndJoin(t, core, "conn-c", domain.User{ID: "u3", Username: "cho"})

	core.Dispatch(ana, frame(t, EventJoinRoom, "chat-1"))
	core.Dispatch(bea, frame(t, EventJoinRoom, "chat-1"))
	drain(ana)
	drain(bea)
	drain(outsider)

	core.Dispatch(ana, frame(t, EventNewMessage, RelayPayload{
		ID:      "m1",
		ChatID:  "chat-1",
		Content: "hello",
	}))

	// The sender's own connection receives the relay too; clients
	// reconcile by message id.
	req.Equal(1, countEvents(drain(ana), EventMessageReceived))
	req.Equal(1, countEvents(drain(bea), EventMessageReceived))
	req.Equal(0, countEvents(drain(outsider), EventMessageReceived))
}

func TestCore_JoinRoomAcceptsObjectPayload(t *testing.T) {
	req := require.New(t)
	core := newTestCore(nil)

	ana := connectAndJoin(t, core, "conn-a", domain.User{ID: "u1", Username: "ana"})
	bea := connectAndJoin(t, core, "conn-b", domain.User{ID: "u2", Username: "bea"})
	drain(ana)
	drain(bea)

	core.Dispatch(ana, frame(t, EventJoinRoom, JoinRoomPayload{ChatID: "chat-1"}))
	core.Dispatch(bea, frame(t, EventJoinRoom, "chat-1"))

	core.Dispatch(bea, frame(t, EventNewMessage, RelayPayload{
		ID:      "m1",
		ChatID:  "chat-1",
		Content: "hello",
	}))

	req.Equal(1, countEvents(drain(ana), EventMessageReceived))
}

func TestCore_TypingExcludesOriginAndDeduplicates(t *testing.T) {
	req := require.New(t)
	core := newTestCore(nil)

	ana := connectAndJoin(t, core, "conn-a", domain.User{ID: "u1", Username: "ana"})
	bea := connectAndJoin(t, core, "conn-b", domain.User{ID: "u2", Username: "bea"})

	core.Dispatch(ana, frame(t, EventJoinRoom, "chat-1"))
	core.Dispatch(bea, frame(t, EventJoinRoom, "chat-1"))
	drain(ana)
	drain(bea)

	typing := TypingPayload{ChatID: "chat-1", UserID: "u1", Username: "ana"}
	core.Dispatch(ana, frame(t, EventTyping, typing))
	core.Dispatch(ana, frame(t, EventTyping, typing))

	req.Equal(0, countEvents(drain(ana), EventUserTyping))
	req.Equal(1, countEvents(drain(bea), EventUserTyping))

	core.Dispatch(ana, frame(t, EventStopTyping, StopTypingPayload{ChatID: "chat-1", UserID: "u1"}))
	core.Dispatch(ana, frame(t, EventStopTyping, StopTypingPayload{ChatID: "chat-1", UserID: "u1"}))

	req.Equal(1, countEvents(drain(bea), EventUserStoppedTyping))
}

func TestCore_DisconnectClearsOutstandingTyping(t *testing.T) {
	req := require.New(t)
	core := newTestCore(nil)

	ana := connectAndJoin(t, core, "conn-a", domain.User{ID: "u1", Username: "ana"})
	bea := connectAndJoin(t, core, "conn-b", domain.User{ID: "u2", Username: "bea"})

	core.Dispatch(ana, frame(t, EventJoinRoom, "chat-1"))
	core.Dispatch(bea, frame(t, EventJoinRoom, "chat-1"))
	drain(bea)

	core.Dispatch(ana, frame(t, EventTyping, TypingPayload{ChatID: "chat-1", UserID: "u1", Username: "ana"}))
	req.Equal(1, countEvents(drain(bea), EventUserTyping))

	core.Disconnect(ana)

	msgs := drain(bea)
	req.Equal(1, countEvents(msgs, EventUserStoppedTyping))
	req.Equal(1, countEvents(msgs, EventUserOffline))
	req.False(core.rooms.Contains("conn-a", "chat-1"))
}

func TestCore_MalformedFramesAreDiscarded(t *testing.T) {
	req := require.New(t)
	core := newTestCore(nil)

	ana := connectAndJoin(t, core, "conn-a", domain.User{ID: "u1", Username: "ana"})
	drain(ana)

	core.Dispatch(ana, []byte("{not json"))
	core.Dispatch(ana, frame(t, "noSuchEvent", nil))
	core.Dispatch(ana, frame(t, EventNewMessage, map[string]any{"chatId": "chat-1"}))
	core.Dispatch(ana, frame(t, EventTyping, map[string]any{"chatId": "chat-1"}))

	// The connection survives and keeps working.
	core.Dispatch(ana, frame(t, EventJoinRoom, "chat-1"))
	core.Dispatch(ana, frame(t, EventNewMessage, RelayPayload{
		ID:      "m1",
		ChatID:  "chat-1",
		Content: "still here",
	}))
	req.Equal(1, countEvents(drain(ana), EventMessageReceived))
}

func TestCore_DispatchAfterDisconnectIsIgnored(t *testing.T) {
	req := require.New(t)
	core := newTestCore(nil)

	ana := connectAndJoin(t, core, "conn-a", domain.User{ID: "u1", Username: "ana"})
	core.Disconnect(ana)

	core.Dispatch(ana, frame(t, EventJoinRoom, "chat-1"))
	req.False(core.rooms.Contains("conn-a", "chat-1"))
}

func TestCore_DisconnectIsIdempotent(t *testing.T) {
	req := require.New(t)
	core := newTestCore(nil)

	observer := connectAndJoin(t, core, "conn-obs", domain.User{ID: "u9", Username: "obs"})
	ana := connectAndJoin(t, core, "conn-a", domain.User{ID: "u1", Username: "ana"})
	drain(observer)

	core.Disconnect(ana)
	core.Disconnect(ana)

	req.Equal(1, countEvents(drain(observer), EventUserOffline))
}

type recordingPublisher struct {
	calls chan string
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{calls: make(chan string, 16)}
}

func (p *recordingPublisher) PublishMessageSent(ctx context.Context, message domain.Message) error {
	p.calls <- "message.sent"
	return nil
}

func (p *recordingPublisher) PublishUserOnline(ctx context.Context, user domain.User) error {
	p.calls <- "user.online"
	return nil
}

func (p *recordingPublisher) PublishUserOffline(ctx context.Context, user domain.User) error {
	p.calls <- "user.offline"
	return nil
}

func (p *recordingPublisher) await(t *testing.T, want string) {
	t.Helper()

	select {
	case got := <-p.calls:
		require.Equal(t, want, got)
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %s", want)
	}
}

func TestCore_MirrorsEventsToPublisher(t *testing.T) {
	publisher := newRecordingPublisher()
	core := newTestCore(publisher)

	ana := connectAndJoin(t, core, "conn-a", domain.User{ID: "u1", Username: "ana"})
	publisher.await(t, "user.online")

	core.Dispatch(ana, frame(t, EventJoinRoom, "chat-1"))
	core.Dispatch(ana, frame(t, EventNewMessage, RelayPayload{
		ID:      "m1",
		ChatID:  "chat-1",
		Content: "hello",
	}))
	publisher.await(t, "message.sent")

	core.Disconnect(ana)
	publisher.await(t, "user.offline")
}

func TestCore_ShutdownClosesAllConnections(t *testing.T) {
	req := require.New(t)
	core := newTestCore(nil)

	ana := connectAndJoin(t, core, "conn-a", domain.User{ID: "u1", Username: "ana"})
	bea := connectAndJoin(t, core, "conn-b", domain.User{ID: "u2", Username: "bea"})

	core.Shutdown()

	req.True(ana.IsClosed())
	req.True(bea.IsClosed())
	req.Equal(0, core.presence.Online())
}
