package service

import (
	"context"
	"gatekeeper/internal/entity"
	reposql "gatekeeper/internal/model/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)}
}

func newTestStore(t *testing.T, clock *testClock) *reposql.GormRepository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "gatekeeper.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		NamingStrategy: schema.NamingStrategy{SingularTable: true},
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entity.Role{}, &entity.User{}, &entity.UserKey{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	store := reposql.NewGormRepository(db, reposql.WithClock(clock.Now))
	for _, role := range []*entity.Role{
		{Name: "Admin", CanAdmin: entity.Flag(true)},
		{Name: "User", CanAdmin: entity.Flag(false)},
	} {
		require.NoError(t, store.CreateRole(context.Background(), role))
	}
	return store
}

// recordingNotifier keeps every key handed to it.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentKey
}

type sentKey struct {
	to  string
	key entity.UserKey
}

func (n *recordingNotifier) NotifyUserKey(_ context.Context, user *entity.User, key *entity.UserKey) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentKey{to: recipient(user, key), key: *key})
	return nil
}

func (n *recordingNotifier) last(t *testing.T) sentKey {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.sent, "no key was sent")
	return n.sent[len(n.sent)-1]
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}
