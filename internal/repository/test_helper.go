package repository

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/openfleet/delivery-tracker/pkg/pg"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testDB struct {
	*pg.DB
	rawDB *gorm.DB
}

func setupTestDB(t *testing.T) *testDB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&DriverEntity{}, &DeliveryEntity{}, &LocationFixEntity{}, &DestinationEntity{})
	require.NoError(t, err)

	return &testDB{
		DB:    pg.NewFromConns(db, db),
		rawDB: db,
	}
}
