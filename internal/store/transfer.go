package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sharedesk/contenthub/internal/transfer"
	"gorm.io/gorm"
)

// TransferStore is the hub's durable transfer log. Item lists are not
// persisted; they only exist on the wire and in the endpoint processes.
type TransferStore struct {
	db *gorm.DB
}

func NewTransferStore(db *gorm.DB) *TransferStore {
	return &TransferStore{db: db}
}

// CreateTransfer records a newly brokered transfer.
func (ts *TransferStore) CreateTransfer(ctx context.Context, t *transfer.Transfer) error {
	now := time.Now().Unix()
	row := Transfer{
		TransferID:  t.ID(),
		Direction:   uint8(t.Direction()),
		State:       uint8(t.State()),
		Source:      t.Source().ID(),
		Destination: t.Destination().ID(),
		TypeCode:    uint8(t.ContentType()),
		Selection:   uint8(t.Selection()),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := ts.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("creating transfer row: %w", err)
	}
	return nil
}

// UpdateState records a transition. An aborted transfer never moves
// again; duplicate updates to the same state are no-ops.
func (ts *TransferStore) UpdateState(ctx context.Context, transferID string, s transfer.State) error {
	return ts.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := Transfer{}
		if err := tx.Where("transfer_id = ?", transferID).First(&row).Error; err != nil {
			return err
		}
		if transfer.State(row.State) == transfer.Aborted || transfer.State(row.State) == s {
			return nil
		}
		row.State = uint8(s)
		row.UpdatedAt = time.Now().Unix()
		return tx.Save(&row).Error
	})
}

// GetTransfer fetches one transfer row by its bus identity.
func (ts *TransferStore) GetTransfer(ctx context.Context, transferID string) (Transfer, error) {
	row := Transfer{}
	err := ts.db.WithContext(ctx).Where("transfer_id = ?", transferID).First(&row).Error
	return row, err
}

// ListActiveInvolving returns the non-terminal transfers a peer is either
// side of, oldest first. Used to replay pending work when the peer's
// handler registers.
func (ts *TransferStore) ListActiveInvolving(ctx context.Context, peerID string) ([]Transfer, error) {
	var rows []Transfer
	err := ts.db.WithContext(ctx).
		Where("(source = ? OR destination = ?)", peerID, peerID).
		Where("state NOT IN ?", []int{int(transfer.Finalized), int(transfer.Aborted)}).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// IsNotFound reports whether an error means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
