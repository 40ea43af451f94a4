package access

import "context"

// Group is a named capability set loaded from storage.
type Group struct {
	Name         string
	Capabilities []Capability
}

func (g Group) Has(c Capability) bool {
	for _, held := range g.Capabilities {
		if held == c {
			return true
		}
	}
	return false
}

// Actor is the authenticated identity behind one request. It is passed
// explicitly to every write path and lives only in the request context.
type Actor struct {
	UserID uint
	Role   Role
	Groups []Group
	IP     string
}

type actorKey struct{}

func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom returns nil when the request is anonymous.
func ActorFrom(ctx context.Context) *Actor {
	a, _ := ctx.Value(actorKey{}).(*Actor)
	return a
}

// IDPtr is a convenience for audit columns.
func (a *Actor) IDPtr() *uint {
	if a == nil {
		return nil
	}
	id := a.UserID
	return &id
}
