package store

// Peer is a registered application peer.
type Peer struct {
	ID        uint   `gorm:"primaryKey"`
	PeerID    string `gorm:"uniqueIndex"`
	Name      string
	Roles     uint8
	CreatedAt int64
}

// PeerType records one content type a peer can handle.
type PeerType struct {
	ID       uint  `gorm:"primaryKey"`
	PeerID   uint  `gorm:"not null;index;foreignKey:PeerID;constraint:OnDelete:CASCADE"`
	Peer     Peer  `gorm:"constraint:OnDelete:CASCADE"`
	TypeCode uint8 `gorm:"index"`
}

// DefaultPeer pins the recommended peer for a content type.
type DefaultPeer struct {
	ID       uint  `gorm:"primaryKey"`
	TypeCode uint8 `gorm:"uniqueIndex"`
	PeerID   string
}

// Transfer is the persisted snapshot of a brokered transfer.
type Transfer struct {
	ID          uint   `gorm:"primaryKey"`
	TransferID  string `gorm:"uniqueIndex"`
	Direction   uint8
	State       uint8
	Source      string `gorm:"index"`
	Destination string `gorm:"index"`
	TypeCode    uint8
	Selection   uint8
	CreatedAt   int64
	UpdatedAt   int64
}
