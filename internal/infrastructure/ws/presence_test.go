package ws

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parleychat/parley/internal/domain"
)

func TestPresence_AnnounceFirstConnection(t *testing.T) {
	req := require.New(t)
	p := NewPresence()

	first := p.Announce("conn-1", domain.User{ID: "u1", Username: "ana"})

	req.True(first)
	req.Equal(1, p.Online())
}

func TestPresence_SecondDeviceDoesNotReannounce(t *testing.T) {
	req := require.New(t)
	p := NewPresence()
	identity := domain.User{ID: "u1", Username: "ana"}

	req.True(p.Announce("conn-1", identity))
	req.False(p.Announce("conn-2", identity))
	req.Equal(1, p.Online())
}

func TestPresence_RejoinSameConnectionIsIdempotent(t *testing.T) {
	req := require.New(t)
	p := NewPresence()
	identity := domain.User{ID: "u1", Username: "ana"}

	req.True(p.Announce("conn-1", identity))
	req.False(p.Announce("conn-1", identity))
	req.Equal(1, p.Online())

	_, last := p.Forget("conn-1")
	req.True(last)
	req.Equal(0, p.Online())
}

func TestPresence_ForgetLastDeviceReportsOffline(t *testing.T) {
	req := require.New(t)
	p := NewPresence()
	identity := domain.User{ID: "u1", Username: "ana"}

	p.Announce("conn-1", identity)
	p.Announce("conn-2", identity)

	got, last := p.Forget("conn-1")
	req.False(last)
	req.Equal("u1", got.ID)

	got, last = p.Forget("conn-2")
	req.True(last)
	req.Equal("u1", got.ID)
	req.Equal(0, p.Online())
}

func TestPresence_ForgetUnannouncedConnectionIsNoop(t *testing.T) {
	req := require.New(t)
	p := NewPresence()

	_, last := p.Forget("conn-unknown")
	req.False(last)
}

func TestPresence_SnapshotDeduplicatesDevices(t *testing.T) {
	req := require.New(t)
	p := NewPresence()

	p.Announce("conn-1", domain.User{ID: "u1", Username: "ana"})
	p.Announce("conn-2", domain.User{ID: "u1", Username: "ana"})
	p.Announce("conn-3", domain.User{ID: "u2", Username: "bea"})

	snapshot := p.Snapshot()
	req.Len(snapshot, 2)

	ids := []string{snapshot[0].ID, snapshot[1].ID}
	req.ElementsMatch([]string{"u1", "u2"}, ids)
}

func TestPresence_AnnounceNewIdentityOnSameConnection(t *testing.T) {
	req := require.New(t)
	p := NewPresence()

	req.True(p.Announce("conn-1", domain.User{ID: "u1", Username: "ana"}))

	// Re-announcing a different identity moves the connection over.
	req.True(p.Announce("conn-1", domain.User{ID: "u2", Username: "bea"}))
	req.Equal(1, p.Online())

	identity, ok := p.Identity("conn-1")
	req.True(ok)
	req.Equal("u2", identity.ID)
}
