package repo

import (
	"context"

	"github.com/richardliu001/wallet-ledger/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ClaimResult is the outcome of TryClaim.
type ClaimResult int

const (
	Claimed ClaimResult = iota + 1
	AlreadyClaimed
)

func (c ClaimResult) String() string {
	switch c {
	case Claimed:
		return "claimed"
	case AlreadyClaimed:
		return "already_claimed"
	}
	return "unknown"
}

// TryClaim records reference as processed inside tx. Exactly one of any
// number of racing units observes Claimed; a concurrent insert of the same
// key waits on the first unit and sees AlreadyClaimed once it commits, or
// Claimed if it rolls back. The record lives or dies with tx, so a claim
// never outlives the effect it guards.
func (r *Repository) TryClaim(ctx context.Context, tx *gorm.DB, reference string) (ClaimResult, error) {
	rec := &model.IdempotencyRecord{Reference: reference, Processed: true}
	res := tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(rec)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return AlreadyClaimed, nil
	}
	return Claimed, nil
}
