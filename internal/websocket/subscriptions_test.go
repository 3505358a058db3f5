package websocket

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptions_JoinLeave(t *testing.T) {
	s := NewSubscriptions()
	conn, room := uuid.New(), uuid.New()
	s.Open(conn)

	joined, err := s.Join(conn, room)
	require.NoError(t, err)
	assert.True(t, joined)

	joined, err = s.Join(conn, room)
	require.NoError(t, err)
	assert.False(t, joined, "second join is a no-op")

	assert.True(t, s.IsSubscribed(conn, room))
	assert.Equal(t, []uuid.UUID{conn}, s.BroadcastTargets(room))
	assert.Equal(t, []uuid.UUID{room}, s.Rooms(conn))

	assert.True(t, s.Leave(conn, room))
	assert.False(t, s.Leave(conn, room))
	assert.Empty(t, s.BroadcastTargets(room))
}

func TestSubscriptions_NeverJoinedIsNeverATarget(t *testing.T) {
	s := NewSubscriptions()
	a, b, room := uuid.New(), uuid.New(), uuid.New()
	s.Open(a)
	s.Open(b)

	_, err := s.Join(a, room)
	require.NoError(t, err)

	assert.NotContains(t, s.BroadcastTargets(room), b)
	assert.False(t, s.IsSubscribed(b, room))
}

func TestSubscriptions_CloseClearsEverything(t *testing.T) {
	s := NewSubscriptions()
	conn, other := uuid.New(), uuid.New()
	rooms := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	s.Open(conn)
	s.Open(other)

	for _, room := range rooms {
		_, err := s.Join(conn, room)
		require.NoError(t, err)
	}
	_, err := s.Join(other, rooms[0])
	require.NoError(t, err)

	left := s.Close(conn)
	assert.ElementsMatch(t, rooms, left)

	for _, room := range rooms {
		assert.NotContains(t, s.BroadcastTargets(room), conn)
	}
	assert.Equal(t, []uuid.UUID{other}, s.BroadcastTargets(rooms[0]))
	assert.Nil(t, s.Close(conn), "closing twice is a no-op")
}

func TestSubscriptions_JoinAfterCloseFails(t *testing.T) {
	s := NewSubscriptions()
	conn, room := uuid.New(), uuid.New()

	_, err := s.Join(conn, room)
	assert.ErrorIs(t, err, ErrConnectionClosed, "never opened")

	s.Open(conn)
	s.Close(conn)

	_, err = s.Join(conn, room)
	assert.ErrorIs(t, err, ErrConnectionClosed)
	assert.Empty(t, s.BroadcastTargets(room))
}

func TestSubscriptions_ConcurrentJoinAndClose(t *testing.T) {
	s := NewSubscriptions()
	room := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		conn := uuid.New()
		s.Open(conn)

		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = s.Join(conn, room)
		}()
		go func() {
			defer wg.Done()
			s.Close(conn)
		}()
	}
	wg.Wait()

	assert.Empty(t, s.BroadcastTargets(room))
}
