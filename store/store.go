package store

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agritrace/provenance-node/errors"
)

// Store provides database operations over the relational mirror.
type Store struct {
	client *gorm.DB
}

// NewStore creates a new store over the given GORM client.
func NewStore(client *gorm.DB) *Store {
	return &Store{client: client}
}

// CreateBatch inserts a new batch. The natural identifier must be unique;
// a duplicate surfaces as a database error.
func (s *Store) CreateBatch(batch *Batch) error {
	if s.client == nil {
		return errors.New(errors.ErrCodeDatabase, "store client is nil")
	}
	if err := s.client.Create(batch).Error; err != nil {
		return errors.Wrap(errors.ErrCodeDatabase, "failed to create batch", err)
	}
	return nil
}

// GetBatchByIdentifier looks up a batch by its natural identifier. The
// identifier column is uniquely indexed, so this is the reconciler's
// reverse lookup from a decoded on-ledger identifier to the internal id.
func (s *Store) GetBatchByIdentifier(identifier string) (*Batch, error) {
	if s.client == nil {
		return nil, errors.New(errors.ErrCodeDatabase, "store client is nil")
	}
	var batch Batch
	err := s.client.Where("batch_identifier = ?", identifier).First(&batch).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.Newf(errors.ErrCodeNotFound, "unknown batch identifier %q", identifier)
		}
		return nil, errors.Wrap(errors.ErrCodeDatabase, "failed to query batch", err)
	}
	return &batch, nil
}

// GetBatchByID looks up a batch by internal id.
func (s *Store) GetBatchByID(id uint) (*Batch, error) {
	if s.client == nil {
		return nil, errors.New(errors.ErrCodeDatabase, "store client is nil")
	}
	var batch Batch
	if err := s.client.First(&batch, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.Newf(errors.ErrCodeNotFound, "unknown batch id %d", id)
		}
		return nil, errors.Wrap(errors.ErrCodeDatabase, "failed to query batch", err)
	}
	return &batch, nil
}

// TransitionBatch moves a batch out of PENDING into the given terminal
// status. The transition is a conditional update guarded on the current
// status: zero affected rows on an existing batch means the batch already
// left PENDING, which is a state conflict, never a silent success.
func (s *Store) TransitionBatch(identifier string, to BatchStatus, verifierID *uint, notes *string) error {
	if s.client == nil {
		return errors.New(errors.ErrCodeDatabase, "store client is nil")
	}
	if to != BatchStatusConfirmed && to != BatchStatusRejected {
		return errors.Newf(errors.ErrCodeValidation, "illegal target status %q", to)
	}

	updates := map[string]any{"status": to}
	if verifierID != nil {
		updates["verifier_id"] = *verifierID
	}
	if notes != nil {
		updates["rejection_notes"] = *notes
	}

	res := s.client.Model(&Batch{}).
		Where("batch_identifier = ? AND status = ?", identifier, BatchStatusPending).
		Updates(updates)
	if res.Error != nil {
		return errors.Wrap(errors.ErrCodeDatabase, "failed to update batch status", res.Error)
	}
	if res.RowsAffected == 0 {
		// Distinguish a missing batch from one that already left PENDING.
		if _, err := s.GetBatchByIdentifier(identifier); err != nil {
			return err
		}
		return errors.Newf(errors.ErrCodeStateConflict,
			"batch %q is not PENDING, cannot transition to %s", identifier, to)
	}
	return nil
}

// UpsertProductEvent inserts or updates a ProductEvent keyed by its
// transaction hash. On conflict only the mutable fields are refreshed.
// This is the system's sole concurrency-safety mechanism: the synchronous
// write path and the reconciler may both record the same on-ledger fact,
// in any order, concurrently, and must converge on one row.
func (s *Store) UpsertProductEvent(event *ProductEvent) error {
	if s.client == nil {
		return errors.New(errors.ErrCodeDatabase, "store client is nil")
	}
	err := s.client.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tx_hash"}},
		DoUpdates: clause.AssignmentColumns([]string{"content_hash", "block_number", "log_index"}),
	}).Create(event).Error
	if err != nil {
		return errors.Wrap(errors.ErrCodeDatabase, "failed to upsert product event", err)
	}
	return nil
}

// GetProductEventByTxHash looks up the mirror row for one transaction.
func (s *Store) GetProductEventByTxHash(txHash string) (*ProductEvent, error) {
	if s.client == nil {
		return nil, errors.New(errors.ErrCodeDatabase, "store client is nil")
	}
	var event ProductEvent
	err := s.client.Where("tx_hash = ?", txHash).First(&event).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.Newf(errors.ErrCodeNotFound, "no event for transaction %s", txHash)
		}
		return nil, errors.Wrap(errors.ErrCodeDatabase, "failed to query product event", err)
	}
	return &event, nil
}

// ListEventsForBatch returns all mirror rows for a batch identifier in
// block order.
func (s *Store) ListEventsForBatch(identifier string) ([]ProductEvent, error) {
	if s.client == nil {
		return nil, errors.New(errors.ErrCodeDatabase, "store client is nil")
	}
	var events []ProductEvent
	err := s.client.
		Where("batch_identifier = ?", identifier).
		Order("block_number asc, log_index asc").
		Find(&events).Error
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDatabase, "failed to list product events", err)
	}
	return events, nil
}

// CreateShipmentLog attaches logistics details to a product event.
func (s *Store) CreateShipmentLog(log *ShipmentLog) error {
	if s.client == nil {
		return errors.New(errors.ErrCodeDatabase, "store client is nil")
	}
	if err := s.client.Create(log).Error; err != nil {
		return errors.Wrap(errors.ErrCodeDatabase, "failed to create shipment log", err)
	}
	return nil
}

// CreateCertificate records a certificate issued by a verification action.
func (s *Store) CreateCertificate(cert *Certificate) error {
	if s.client == nil {
		return errors.New(errors.ErrCodeDatabase, "store client is nil")
	}
	if err := s.client.Create(cert).Error; err != nil {
		return errors.Wrap(errors.ErrCodeDatabase, "failed to create certificate", err)
	}
	return nil
}

// CreateUser registers an identity for actor resolution.
func (s *Store) CreateUser(user *User) error {
	if s.client == nil {
		return errors.New(errors.ErrCodeDatabase, "store client is nil")
	}
	if err := s.client.Create(user).Error; err != nil {
		return errors.Wrap(errors.ErrCodeDatabase, "failed to create user", err)
	}
	return nil
}

// GetUserByAddress resolves a ledger account to its identity record.
func (s *Store) GetUserByAddress(address string) (*User, error) {
	if s.client == nil {
		return nil, errors.New(errors.ErrCodeDatabase, "store client is nil")
	}
	var user User
	err := s.client.Where("ledger_address = ?", address).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.Newf(errors.ErrCodeNotFound, "no user for address %s", address)
		}
		return nil, errors.Wrap(errors.ErrCodeDatabase, "failed to query user", err)
	}
	return &user, nil
}
