package middleware

import "context"

type identityKey struct{}

// identity is the authenticated caller as seen by handlers.
type identity struct {
	userID         string
	role           string
	organizationID string
}

func identityFrom(ctx context.Context) identity {
	if ctx == nil {
		return identity{}
	}
	id, _ := ctx.Value(identityKey{}).(identity)
	return id
}

func withIdentity(ctx context.Context, edit func(*identity)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	id := identityFrom(ctx)
	edit(&id)
	return context.WithValue(ctx, identityKey{}, id)
}

func UserIDFromContext(ctx context.Context) string { return identityFrom(ctx).userID }

func RoleFromContext(ctx context.Context) string { return identityFrom(ctx).role }

// OrganizationIDFromContext is empty for admin tokens.
func OrganizationIDFromContext(ctx context.Context) string {
	return identityFrom(ctx).organizationID
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return withIdentity(ctx, func(id *identity) { id.userID = userID })
}

func WithRole(ctx context.Context, role string) context.Context {
	return withIdentity(ctx, func(id *identity) { id.role = role })
}

func WithOrganizationID(ctx context.Context, orgID string) context.Context {
	return withIdentity(ctx, func(id *identity) { id.organizationID = orgID })
}
