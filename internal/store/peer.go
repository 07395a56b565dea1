// Package store persists the hub's peer directory and transfer log.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sharedesk/contenthub/internal/content"
	"gorm.io/gorm"
)

// PeerStore is the registry of application peers and their capabilities.
// It implements content.Directory.
type PeerStore struct {
	db *gorm.DB
}

var _ content.Directory = (*PeerStore)(nil)

func NewPeerStore(db *gorm.DB) *PeerStore {
	return &PeerStore{db: db}
}

// RegisterPeer upserts a peer and replaces its capability rows.
// Re-registration updates name, roles, and content types in place.
func (ps *PeerStore) RegisterPeer(ctx context.Context, peerID, name string, roles content.Role, types []content.ContentType) error {
	return ps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		peer := Peer{}
		err := tx.Where("peer_id = ?", peerID).First(&peer).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			peer = Peer{
				PeerID:    peerID,
				Name:      name,
				Roles:     uint8(roles),
				CreatedAt: time.Now().Unix(),
			}
			if err := tx.Create(&peer).Error; err != nil {
				return fmt.Errorf("creating peer: %w", err)
			}
		case err != nil:
			return err
		default:
			peer.Name = name
			peer.Roles = uint8(roles)
			if err := tx.Save(&peer).Error; err != nil {
				return fmt.Errorf("updating peer: %w", err)
			}
			if err := tx.Where("peer_id = ?", peer.ID).Delete(&PeerType{}).Error; err != nil {
				return err
			}
		}

		for _, t := range types {
			if err := tx.Create(&PeerType{PeerID: peer.ID, TypeCode: uint8(t)}).Error; err != nil {
				return fmt.Errorf("creating peer type: %w", err)
			}
		}
		return nil
	})
}

// HasPeer reports whether a peer id is present in the directory.
func (ps *PeerStore) HasPeer(ctx context.Context, peerID string) (bool, error) {
	var count int64
	err := ps.db.WithContext(ctx).Model(&Peer{}).Where("peer_id = ?", peerID).Count(&count).Error
	return count > 0, err
}

// ListKnown returns every peer registered for the type, in registration
// order.
func (ps *PeerStore) ListKnown(ctx context.Context, t content.ContentType) ([]content.Peer, error) {
	var peers []Peer
	err := ps.db.WithContext(ctx).
		Joins("JOIN peer_types ON peer_types.peer_id = peers.id").
		Where("peer_types.type_code = ?", uint8(t)).
		Order("peers.id").
		Find(&peers).Error
	if err != nil {
		return nil, err
	}

	result := make([]content.Peer, 0, len(peers))
	for _, p := range peers {
		result = append(result, content.NewPeer(p.PeerID))
	}
	return result, nil
}

// ResolveDefault returns the pinned default peer for the type, falling
// back to the first known peer, and to the unknown peer when the type has
// no registrations at all.
func (ps *PeerStore) ResolveDefault(ctx context.Context, t content.ContentType) (content.Peer, error) {
	def := DefaultPeer{}
	err := ps.db.WithContext(ctx).Where("type_code = ?", uint8(t)).First(&def).Error
	if err == nil {
		return content.NewPeer(def.PeerID), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return content.Unknown(), err
	}

	known, err := ps.ListKnown(ctx, t)
	if err != nil {
		return content.Unknown(), err
	}
	if len(known) == 0 {
		return content.Unknown(), nil
	}
	return known[0], nil
}

// SetDefault pins the default peer for a content type.
func (ps *PeerStore) SetDefault(ctx context.Context, t content.ContentType, peerID string) error {
	def := DefaultPeer{}
	err := ps.db.WithContext(ctx).Where("type_code = ?", uint8(t)).First(&def).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ps.db.WithContext(ctx).Create(&DefaultPeer{TypeCode: uint8(t), PeerID: peerID}).Error
	}
	if err != nil {
		return err
	}
	def.PeerID = peerID
	return ps.db.WithContext(ctx).Save(&def).Error
}

// GetPeer returns the stored peer row for an id.
func (ps *PeerStore) GetPeer(ctx context.Context, peerID string) (Peer, error) {
	peer := Peer{}
	err := ps.db.WithContext(ctx).Where("peer_id = ?", peerID).First(&peer).Error
	return peer, err
}
