package services

import (
	"context"
	"time"

	"github.com/openfleet/delivery-tracker/pkg/redis"
	"gorm.io/gorm"
)

// HealthService answers liveness probes. It checks the write database
// and the redis connection with a short deadline.
type HealthService struct {
	db      *gorm.DB
	adapter redis.RedisAdapter
}

func NewHealthService(db *gorm.DB, adapter redis.RedisAdapter) *HealthService {
	return &HealthService{
		db:      db,
		adapter: adapter,
	}
}

func (s *HealthService) Get() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return err
		}
	}

	if s.adapter != nil {
		if cmd := s.adapter.Client().Ping(ctx); cmd.Err() != nil {
			return cmd.Err()
		}
	}

	return nil
}
