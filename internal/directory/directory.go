// Package directory is the read-only adapter over the platform's user
// identity service. The ownership subsystem consumes display names and the
// global system-administrator flag; it never writes user records.
package directory

import "context"

// User is the slice of a platform user this subsystem needs.
type User struct {
	ID            int64  `json:"id"`
	DisplayName   string `json:"display_name"`
	IsSystemAdmin bool   `json:"is_system_admin"`
}

// Directory resolves users by id. Implementations return
// sentinel.ErrNotFound for unknown ids.
type Directory interface {
	FindByID(ctx context.Context, userID int64) (*User, error)
}
