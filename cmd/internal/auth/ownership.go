package auth

import (
	"context"
	"strings"
)

// AuthorizeOwner allows the request only when the attached identity authored the
// resource. There is no admin override.
func AuthorizeOwner(ctx context.Context, authorID string) error {
	u, ok := IdentityFromContext(ctx)
	if !ok {
		recordDecision("owner", "unauthenticated")
		return ErrUnauthenticated
	}
	if strings.TrimSpace(u.ID) != strings.TrimSpace(authorID) {
		recordDecision("owner", "forbidden")
		return ErrForbidden
	}
	recordDecision("owner", "allowed")
	return nil
}
