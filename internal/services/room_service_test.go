package services_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/concord/internal/database"
	"github.com/thereayou/concord/internal/services"
	"github.com/thereayou/concord/internal/testutil"
)

type staticPresence map[uuid.UUID]bool

func (p staticPresence) IsOnline(userID uuid.UUID) bool { return p[userID] }

func TestRoomService_CreateRoom(t *testing.T) {
	db := testutil.NewDatabase(t)
	svc := services.NewRoomService(db, db, nil, false)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")

	room, err := svc.CreateRoom(ctx, "  general  ", alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "general", room.Name)
	assert.Equal(t, alice.ID, room.CreatedBy)

	isMember, err := db.IsMember(ctx, room.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, isMember)

	_, err = svc.CreateRoom(ctx, "   ", alice.ID)
	assert.ErrorIs(t, err, services.ErrValidation)

	long := make([]rune, 101)
	for i := range long {
		long[i] = 'é'
	}
	_, err = svc.CreateRoom(ctx, string(long), alice.ID)
	assert.ErrorIs(t, err, services.ErrValidation)

	_, err = svc.CreateRoom(ctx, "orphan", uuid.New())
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestRoomService_JoinRoomTwice(t *testing.T) {
	db := testutil.NewDatabase(t)
	svc := services.NewRoomService(db, db, nil, false)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	room := testutil.CreateRoom(t, db, "general", alice.ID)

	created, err := svc.JoinRoom(ctx, room.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.JoinRoom(ctx, room.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, created)

	members, err := svc.ListMembers(ctx, room.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	_, err = svc.JoinRoom(ctx, uuid.New(), bob.ID)
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestRoomService_ListMembersPresence(t *testing.T) {
	db := testutil.NewDatabase(t)
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	svc := services.NewRoomService(db, db, staticPresence{bob.ID: true}, false)
	ctx := context.Background()

	room := testutil.CreateRoom(t, db, "general", alice.ID)
	_, err := svc.JoinRoom(ctx, room.ID, bob.ID)
	require.NoError(t, err)

	members, err := svc.ListMembers(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)

	byName := map[string]services.Member{}
	for _, m := range members {
		byName[m.User.Username] = m
	}
	assert.True(t, byName["alice"].IsOwner)
	assert.False(t, byName["alice"].Online)
	assert.True(t, byName["bob"].Online)

	_, err = svc.ListMembers(ctx, uuid.New())
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestRoomService_GetRoomMessagesUnknownRoom(t *testing.T) {
	db := testutil.NewDatabase(t)
	svc := services.NewRoomService(db, db, nil, false)

	_, err := svc.GetRoomMessages(context.Background(), uuid.New(), database.HistoryOptions{})
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestRoomService_AuthorizeSubscription(t *testing.T) {
	db := testutil.NewDatabase(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	room := testutil.CreateRoom(t, db, "general", alice.ID)

	permissive := services.NewRoomService(db, db, nil, false)
	got, err := permissive.AuthorizeSubscription(ctx, room.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, room.ID, got.ID)
	_, err = permissive.AuthorizeSubscription(ctx, uuid.New(), bob.ID)
	assert.ErrorIs(t, err, services.ErrNotFound)

	strict := services.NewRoomService(db, db, nil, true)
	_, err = strict.AuthorizeSubscription(ctx, room.ID, alice.ID)
	assert.NoError(t, err)
	_, err = strict.AuthorizeSubscription(ctx, room.ID, bob.ID)
	assert.ErrorIs(t, err, services.ErrForbidden)
}
