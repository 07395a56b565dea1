package content

import "context"

// Directory resolves peers capable of handling a content type. Platform
// peer discovery (desktop metadata, app registries) stays behind this
// interface so the core never depends on it directly.
type Directory interface {
	// ResolveDefault returns the recommended peer for a type, or the
	// unknown peer when no recommendation exists.
	ResolveDefault(ctx context.Context, t ContentType) (Peer, error)

	// ListKnown returns every registered peer able to handle the type,
	// in registration order.
	ListKnown(ctx context.Context, t ContentType) ([]Peer, error)
}
