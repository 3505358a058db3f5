package handlers_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/concord/internal/database"
	"github.com/thereayou/concord/internal/handlers"
	"github.com/thereayou/concord/internal/handlers/dto"
	"github.com/thereayou/concord/internal/models"
	"github.com/thereayou/concord/internal/services"
	"github.com/thereayou/concord/internal/testutil"
	ws "github.com/thereayou/concord/internal/websocket"
)

type fixture struct {
	db      *database.Database
	hub     *ws.Hub
	handler *handlers.MessageHandler
	alice   *models.User
	room    *models.Room
}

func newFixture(t *testing.T, requireMembership bool) *fixture {
	t.Helper()

	db := testutil.NewDatabase(t)
	hub := ws.NewHub(time.Second)
	t.Cleanup(func() { _ = hub.Shutdown(context.Background()) })

	rooms := services.NewRoomService(db, db, hub, requireMembership)
	messages := services.NewMessageService(db, db, handlers.NewRoomBroadcaster(hub), 2000, requireMembership)

	alice := testutil.CreateUser(t, db, "alice")
	return &fixture{
		db:      db,
		hub:     hub,
		handler: handlers.NewMessageHandler(hub, rooms, messages),
		alice:   alice,
		room:    testutil.CreateRoom(t, db, "general", alice.ID),
	}
}

func (f *fixture) connect(t *testing.T, user *models.User) *ws.Client {
	t.Helper()
	c := ws.NewClient(f.hub, nil, ws.NewConnection(user.ID, user.Username, "127.0.0.1"), ws.DefaultSettings())
	require.NoError(t, f.hub.Register(c))
	return c
}

func event(t *testing.T, typ ws.EventType, data interface{}) ws.Event {
	t.Helper()
	evt, err := ws.NewEvent(typ, data)
	require.NoError(t, err)
	return evt
}

func errorCode(t *testing.T, events []ws.Event) string {
	t.Helper()
	require.Len(t, events, 1)
	require.Equal(t, ws.EventError, events[0].Type)

	var payload ws.ErrorPayload
	require.NoError(t, json.Unmarshal(events[0].Data, &payload))
	return payload.Code
}

func nextMessage(t *testing.T, c *ws.Client) dto.MessageResponse {
	t.Helper()
	select {
	case raw := <-c.Outbound():
		var evt ws.Event
		require.NoError(t, json.Unmarshal(raw, &evt))
		require.Equal(t, ws.EventReceiveMessage, evt.Type)

		var payload dto.ReceiveMessagePayload
		require.NoError(t, json.Unmarshal(evt.Data, &payload))
		return payload.Message
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
		return dto.MessageResponse{}
	}
}

func nextPresence(t *testing.T, c *ws.Client, want ws.EventType) ws.PresencePayload {
	t.Helper()
	select {
	case raw := <-c.Outbound():
		var evt ws.Event
		require.NoError(t, json.Unmarshal(raw, &evt))
		require.Equal(t, want, evt.Type)

		var payload ws.PresencePayload
		require.NoError(t, json.Unmarshal(evt.Data, &payload))
		return payload
	case <-time.After(time.Second):
		t.Fatal("no presence notice delivered")
		return ws.PresencePayload{}
	}
}

func TestHandleEvent_JoinSendEcho(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	c := f.connect(t, f.alice)

	out := f.handler.HandleEvent(ctx, c.Connection, event(t, ws.EventJoinRoom, ws.RoomPayload{RoomID: f.room.ID.String()}))
	require.Len(t, out, 2)
	assert.Equal(t, ws.EventRoomJoined, out[0].Type)
	assert.Equal(t, ws.EventRoomUsers, out[1].Type)
	assert.Equal(t, []uuid.UUID{f.room.ID}, f.hub.Subscriptions(c.ID))

	out = f.handler.HandleEvent(ctx, c.Connection, event(t, ws.EventSendMessage, ws.SendMessagePayload{RoomID: f.room.ID.String(), Content: "hello"}))
	assert.Empty(t, out)

	msg := nextMessage(t, c)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, f.alice.ID, msg.User.ID)
	assert.Equal(t, "alice", msg.User.Username)
	assert.Equal(t, int64(1), msg.Seq)
}

func TestHandleEvent_LeaveStopsDelivery(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	c := f.connect(t, f.alice)
	roomID := f.room.ID.String()

	f.handler.HandleEvent(ctx, c.Connection, event(t, ws.EventJoinRoom, ws.RoomPayload{RoomID: roomID}))
	out := f.handler.HandleEvent(ctx, c.Connection, event(t, ws.EventLeaveRoom, ws.RoomPayload{RoomID: roomID}))
	require.Len(t, out, 1)
	assert.Equal(t, ws.EventRoomLeft, out[0].Type)

	out = f.handler.HandleEvent(ctx, c.Connection, event(t, ws.EventSendMessage, ws.SendMessagePayload{RoomID: roomID, Content: "anyone?"}))
	assert.Empty(t, out)

	select {
	case raw := <-c.Outbound():
		t.Fatalf("unexpected delivery after leave: %s", raw)
	default:
	}
}

func TestHandleEvent_JoinListsUsersAndNotifiesRoom(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	bob := testutil.CreateUser(t, f.db, "bob")
	a := f.connect(t, f.alice)
	b := f.connect(t, bob)
	roomID := f.room.ID.String()

	f.handler.HandleEvent(ctx, a.Connection, event(t, ws.EventJoinRoom, ws.RoomPayload{RoomID: roomID}))
	out := f.handler.HandleEvent(ctx, b.Connection, event(t, ws.EventJoinRoom, ws.RoomPayload{RoomID: roomID}))
	require.Len(t, out, 2)
	require.Equal(t, ws.EventRoomUsers, out[1].Type)

	var users ws.RoomUsersPayload
	require.NoError(t, json.Unmarshal(out[1].Data, &users))
	assert.Equal(t, roomID, users.RoomID)
	assert.ElementsMatch(t, []uuid.UUID{f.alice.ID, bob.ID}, users.UserIDs)

	joined := nextPresence(t, a, ws.EventRoomJoin)
	assert.Equal(t, bob.ID, joined.UserID)
	assert.Equal(t, "bob", joined.Username)

	f.handler.HandleEvent(ctx, b.Connection, event(t, ws.EventLeaveRoom, ws.RoomPayload{RoomID: roomID}))
	left := nextPresence(t, a, ws.EventRoomLeave)
	assert.Equal(t, bob.ID, left.UserID)

	select {
	case raw := <-b.Outbound():
		t.Fatalf("joiner was told about itself: %s", raw)
	default:
	}
}

func TestHandleEvent_ForgedRoom(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	c := f.connect(t, f.alice)

	for _, roomID := range []string{uuid.NewString(), "not-a-room"} {
		out := f.handler.HandleEvent(ctx, c.Connection, event(t, ws.EventSendMessage, ws.SendMessagePayload{RoomID: roomID, Content: "hi"}))
		assert.Equal(t, ws.CodeNotFound, errorCode(t, out))

		out = f.handler.HandleEvent(ctx, c.Connection, event(t, ws.EventJoinRoom, ws.RoomPayload{RoomID: roomID}))
		assert.Equal(t, ws.CodeNotFound, errorCode(t, out))
	}

	var count int64
	require.NoError(t, f.db.DB().Model(&models.Message{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestHandleEvent_BadRequests(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	c := f.connect(t, f.alice)

	out := f.handler.HandleEvent(ctx, c.Connection, ws.Event{Type: "dance"})
	assert.Equal(t, ws.CodeBadRequest, errorCode(t, out))

	out = f.handler.HandleEvent(ctx, c.Connection, ws.Event{Type: ws.EventJoinRoom})
	assert.Equal(t, ws.CodeBadRequest, errorCode(t, out))

	out = f.handler.HandleEvent(ctx, c.Connection, ws.Event{Type: ws.EventSendMessage, Data: json.RawMessage(`"oops"`)})
	assert.Equal(t, ws.CodeBadRequest, errorCode(t, out))

	out = f.handler.HandleEvent(ctx, c.Connection, event(t, ws.EventSendMessage, ws.SendMessagePayload{RoomID: f.room.ID.String(), Content: "   "}))
	assert.Equal(t, ws.CodeBadRequest, errorCode(t, out))
}

func TestHandleEvent_Ping(t *testing.T) {
	f := newFixture(t, false)
	c := f.connect(t, f.alice)

	out := f.handler.HandleEvent(context.Background(), c.Connection, ws.Event{Type: ws.EventPing})
	require.Len(t, out, 1)
	assert.Equal(t, ws.EventPong, out[0].Type)
}

func TestHandleEvent_MembershipRequired(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	bob := testutil.CreateUser(t, f.db, "bob")
	c := f.connect(t, bob)
	roomID := f.room.ID.String()

	out := f.handler.HandleEvent(ctx, c.Connection, event(t, ws.EventJoinRoom, ws.RoomPayload{RoomID: roomID}))
	assert.Equal(t, ws.CodeForbidden, errorCode(t, out))

	out = f.handler.HandleEvent(ctx, c.Connection, event(t, ws.EventSendMessage, ws.SendMessagePayload{RoomID: roomID, Content: "hi"}))
	assert.Equal(t, ws.CodeForbidden, errorCode(t, out))

	_, err := f.db.AddMember(ctx, f.room.ID, bob.ID)
	require.NoError(t, err)

	out = f.handler.HandleEvent(ctx, c.Connection, event(t, ws.EventJoinRoom, ws.RoomPayload{RoomID: roomID}))
	require.Len(t, out, 2)
	assert.Equal(t, ws.EventRoomJoined, out[0].Type)
}

func TestHandleEvent_JoinAfterDisconnectIsSilent(t *testing.T) {
	f := newFixture(t, false)
	c := f.connect(t, f.alice)
	f.hub.Unregister(c.ID)

	out := f.handler.HandleEvent(context.Background(), c.Connection, event(t, ws.EventJoinRoom, ws.RoomPayload{RoomID: f.room.ID.String()}))
	assert.Empty(t, out)
	assert.Empty(t, f.hub.BroadcastTargets(f.room.ID))
}
