package service

import (
	"fmt"

	"github.com/google/uuid"
)

// Actor is the authenticated user a use case runs on behalf of.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

func authorize(actor Actor, roles ...string) error {
	for _, role := range roles {
		if actor.Role == role {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrForbidden, actor.Role)
}
