// Package store contains the GORM-backed relational mirror of the ledger.
//
// Database structure (database file: provenance.db):
//
//	provenance.db
//	├── batches
//	├── product_events
//	├── shipment_logs
//	├── certificates
//	└── users
//
// product_events carries a unique index on tx_hash: the synchronous write
// path and the background reconciler both record the same on-ledger fact,
// and that index is what makes the two paths converge on a single row.
package store

import (
	"gorm.io/gorm"
)

// BatchStatus is the lifecycle status of a batch.
type BatchStatus string

const (
	// BatchStatusPending is the initial status, set on the first harvest event.
	BatchStatusPending BatchStatus = "PENDING"
	// BatchStatusConfirmed is the terminal success status, set once a
	// verification event's ledger write succeeds.
	BatchStatusConfirmed BatchStatus = "CONFIRMED"
	// BatchStatusRejected is the terminal failure status, set by an explicit
	// admin rejection carrying mandatory notes.
	BatchStatusRejected BatchStatus = "REJECTED"
)

// EventType is the small integer tagging the kind of provenance event.
type EventType uint8

const (
	EventTypeHarvest      EventType = 1
	EventTypeShipment     EventType = 2 // shipment or certification, context dependent
	EventTypePicked       EventType = 3
	EventTypeProcessing   EventType = 4 // processing, or receipt in the operator flow
	EventTypeReceived     EventType = 5 // receipt in the cross-operator pickup flow
	EventTypeVerification EventType = 99
)

// DisplayName maps an event type code to its human-readable name.
// Unknown codes render as "Unknown".
func (t EventType) DisplayName() string {
	switch t {
	case EventTypeHarvest:
		return "Harvest"
	case EventTypeShipment:
		return "Shipment/Certification"
	case EventTypePicked:
		return "Picked"
	case EventTypeProcessing:
		return "Processing/Received"
	case EventTypeReceived:
		return "Received"
	case EventTypeVerification:
		return "Verification"
	default:
		return "Unknown"
	}
}

// IsLogistics reports whether events of this type carry a ShipmentLog.
func (t EventType) IsLogistics() bool {
	switch t {
	case EventTypeShipment, EventTypePicked, EventTypeProcessing, EventTypeReceived:
		return true
	default:
		return false
	}
}

// Batch is a trackable unit of physical product moving through the chain.
// BatchIdentifier is the human-readable natural key; it is immutable once
// assigned and indexed for the reconciler's identifier lookups.
type Batch struct {
	gorm.Model
	BatchIdentifier string      `gorm:"uniqueIndex;not null"` // Natural identifier, e.g. "HRV-001"
	ProductName     string      `gorm:"not null"`
	Status          BatchStatus `gorm:"index;not null;default:'PENDING'"`
	FarmerID        uint        `gorm:"index"` // Owning farmer user id
	VerifierID      *uint       // Admin who confirmed or rejected, nil until then
	RejectionNotes  *string     `gorm:"type:text"` // Mandatory on rejection, nil otherwise
}

// ProductEvent mirrors one on-ledger provenance event. TxHash is the sole
// deduplication key shared by the write path and the reconciler.
type ProductEvent struct {
	gorm.Model
	BatchID         uint      `gorm:"index;not null"`
	BatchIdentifier string    `gorm:"index;not null"` // Denormalized for ledger lookups
	EventType       EventType `gorm:"not null"`
	ContentHash     string    // Content address of the event payload
	ActorAddress    string    `gorm:"index"` // Ledger account that recorded the event
	ActorUserID     *uint     // Resolved identity, nil until resolution
	TxHash          string    `gorm:"uniqueIndex;not null"`
	BlockNumber     uint64
	LogIndex        uint
	BlockTime       int64 // Unix seconds of the containing block
}

// ShipmentLog carries logistics details for one logistics-typed ProductEvent.
type ShipmentLog struct {
	gorm.Model
	ProductEventID uint    `gorm:"uniqueIndex;not null"`
	Latitude       float64
	Longitude      float64
	Notes          string `gorm:"type:text"`
}

// Certificate is created by a verification action and referenced by the
// verification event's content payload.
type Certificate struct {
	gorm.Model
	BatchID     uint   `gorm:"index;not null"`
	IssuerID    uint   // Admin user who issued the certificate
	Remarks     string `gorm:"type:text"`
	ContentHash string // Content address of the certificate document, if any
}

// User is the minimal identity record needed to resolve a ledger account
// to a display name. Full user management lives outside this core.
type User struct {
	gorm.Model
	LedgerAddress string `gorm:"uniqueIndex;not null"` // Checksummed hex account
	DisplayName   string `gorm:"not null"`
	Role          string `gorm:"index"` // "farmer", "operator", "admin"
}
