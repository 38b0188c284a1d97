package account

import (
	"time"
)

type User struct {
	ID           int64
	Email        string
	FullName     string
	PasswordHash string
	Department   string
	IsLeader     bool
	Disabled     bool
	CreatedAt    time.Time
}
