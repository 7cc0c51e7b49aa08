package pg

import (
	"time"

	"github.com/google/uuid"
)

// Model is the base for uuid-keyed tables. The tracking tables use
// bigserial keys instead; this stays for auxiliary tables.
type Model struct {
	ID        uuid.UUID `gorm:"primaryKey;uniqueIndex;unique;index;type:uuid;default:gen_random_uuid()"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time `gorm:"index"`
}
