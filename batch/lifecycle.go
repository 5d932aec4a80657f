// Package batch governs the batch lifecycle and drives the synchronous
// event-recording path: content store upload, ledger write, mirror
// insert, and status transition, in that order.
package batch

import (
	"strings"

	"github.com/agritrace/provenance-node/errors"
	"github.com/agritrace/provenance-node/store"
)

// MinRejectionNotesLen is the minimum length of rejection notes.
const MinRejectionNotesLen = 10

// CanTransition reports whether a batch may move from one status to
// another. Transitions are legal only out of PENDING, and only into a
// terminal status; CONFIRMED and REJECTED are sticky.
func CanTransition(from, to store.BatchStatus) bool {
	if from != store.BatchStatusPending {
		return false
	}
	return to == store.BatchStatusConfirmed || to == store.BatchStatusRejected
}

// ValidateRejectionNotes enforces the mandatory rejection notes.
func ValidateRejectionNotes(notes string) error {
	if len(strings.TrimSpace(notes)) < MinRejectionNotesLen {
		return errors.Newf(errors.ErrCodeValidation,
			"rejection notes must be at least %d characters", MinRejectionNotesLen)
	}
	return nil
}

// ensurePending fails with a state conflict unless the batch is PENDING.
func ensurePending(b *store.Batch) error {
	if b.Status != store.BatchStatusPending {
		return errors.Newf(errors.ErrCodeStateConflict,
			"batch %q is %s, not PENDING", b.BatchIdentifier, b.Status)
	}
	return nil
}
