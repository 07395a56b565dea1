// Package content holds the value types shared by every layer of the hub:
// peers, content types, items, and the peer directory capability.
package content

// Peer identifies an application able to act as a content source,
// destination, or share target. Peers are plain values compared by id.
type Peer struct {
	id string
}

// NewPeer builds a peer from a stable application identifier.
func NewPeer(id string) Peer {
	return Peer{id: id}
}

// Unknown returns the sentinel peer meaning "no peer selected / let the
// user choose".
func Unknown() Peer {
	return Peer{}
}

func (p Peer) ID() string {
	return p.id
}

func (p Peer) IsUnknown() bool {
	return p.id == ""
}

func (p Peer) String() string {
	if p.IsUnknown() {
		return "peer(unknown)"
	}
	return "peer(" + p.id + ")"
}

// Role describes what a peer is capable of. Roles combine as a bitmask.
type Role uint8

const (
	RoleSource Role = 1 << iota
	RoleDestination
	RoleShare
)

func (r Role) Has(other Role) bool {
	return r&other == other
}

func (r Role) String() string {
	switch r {
	case RoleSource:
		return "SOURCE"
	case RoleDestination:
		return "DESTINATION"
	case RoleShare:
		return "SHARE"
	}

	s := ""
	for _, part := range []Role{RoleSource, RoleDestination, RoleShare} {
		if r.Has(part) {
			if s != "" {
				s += "|"
			}
			s += part.String()
		}
	}
	if s == "" {
		return "NONE"
	}
	return s
}
