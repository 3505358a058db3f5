// Package testutil builds throwaway stores for tests.
package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/concord/internal/config"
	"github.com/thereayou/concord/internal/database"
	"github.com/thereayou/concord/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// NewDatabase returns a migrated in-memory sqlite store private to the test.
// A single connection serialises transactions the way row locks would.
func NewDatabase(t testing.TB) *database.Database {
	t.Helper()

	db, err := database.Connect(config.DatabaseConfig{
		Driver:       "sqlite",
		URL:          fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", uuid.NewString()),
		MaxOpenConns: 1,
		LogLevel:     "silent",
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })
	return db
}

// NewRedis starts a miniredis server and returns a client connected to it.
func NewRedis(t testing.TB) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

// CreateUser inserts a user whose password is "password123".
func CreateUser(t testing.TB, db *database.Database, username string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: string(hash),
	}
	require.NoError(t, db.SaveUser(context.Background(), user))
	return user
}

// CreateRoom inserts a room owned by owner.
func CreateRoom(t testing.TB, db *database.Database, name string, owner uuid.UUID) *models.Room {
	t.Helper()

	room := &models.Room{Name: name, CreatedBy: owner}
	require.NoError(t, db.CreateRoom(context.Background(), room))
	return room
}
