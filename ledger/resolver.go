package ledger

import (
	"context"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/agritrace/provenance-node/store"
)

// StoreActorResolver resolves ledger accounts against the identity table
// in the relational mirror.
type StoreActorResolver struct {
	store *store.Store
}

// NewStoreActorResolver creates a resolver backed by the given store.
func NewStoreActorResolver(s *store.Store) *StoreActorResolver {
	return &StoreActorResolver{store: s}
}

// DisplayName implements ActorResolver.
func (r *StoreActorResolver) DisplayName(ctx context.Context, address ethcommon.Address) (string, error) {
	user, err := r.store.GetUserByAddress(address.Hex())
	if err != nil {
		return "", err
	}
	return user.DisplayName, nil
}
