package helpers

import (
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/openfleet/delivery-tracker/internal/repository"
	"github.com/openfleet/delivery-tracker/pkg/pg"
	"github.com/openfleet/delivery-tracker/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// SetupTestDB opens an in-memory sqlite database with the tracking
// schema and wraps it so both the read and write side hit the same
// connection.
func SetupTestDB(t *testing.T) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&repository.DriverEntity{},
		&repository.DeliveryEntity{},
		&repository.LocationFixEntity{},
		&repository.DestinationEntity{},
	)
	require.NoError(t, err)

	return pg.NewFromConns(db, db)
}

// SetupTestRedis starts a miniredis and returns an adapter bound to it.
// The connection name is unique per call because the adapter caches
// connections globally.
func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	connName := fmt.Sprintf("test-%s-%d", t.Name(), time.Now().UnixNano())
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

// WaitFor polls the condition until it holds or the timeout expires.
func WaitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}
