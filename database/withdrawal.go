package database

import (
	"context"
	"fmt"

	"github.com/lightlink-network/ll-opinit-bots/database/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func (db *Database) SaveWithdrawals(ctx context.Context, withdrawals []models.Withdrawal) error {
	return insertOnce(ctx, db, WithdrawalsCollection, withdrawals, func(w models.Withdrawal) bson.D {
		return bridgeSequenceKey(w.BridgeID, w.Sequence)
	})
}

// GetWithdrawalsByOutputIndex returns the withdrawals assigned to an output, by sequence.
func (db *Database) GetWithdrawalsByOutputIndex(ctx context.Context, index uint64) ([]models.Withdrawal, error) {
	filter := bson.D{{Key: "output_index", Value: index}}
	return db.findWithdrawals(ctx, filter, models.Page{})
}

// UpdateWithdrawalProofs stores the merkle root and proof of each withdrawal.
// Withdrawals that already carry a root are left untouched.
func (db *Database) UpdateWithdrawalProofs(ctx context.Context, withdrawals []models.Withdrawal) error {
	if len(withdrawals) == 0 {
		return nil
	}

	writes := make([]mongo.WriteModel, len(withdrawals))
	for i, w := range withdrawals {
		filter := bridgeSequenceKey(w.BridgeID, w.Sequence)
		filter = append(filter, bson.E{Key: "merkle_root", Value: ""})
		writes[i] = mongo.NewUpdateOneModel().
			SetFilter(filter).
			SetUpdate(bson.D{{
				Key: "$set",
				Value: bson.D{
					{Key: "merkle_root", Value: w.MerkleRoot},
					{Key: "merkle_proof", Value: w.MerkleProof},
				},
			}})
	}

	result, err := db.collection(WithdrawalsCollection).BulkWrite(ctx, writes)
	if err != nil {
		return fmt.Errorf("failed to update withdrawal proofs: %w", err)
	}

	db.logger.Debug("updated withdrawal proofs", "count", result.ModifiedCount)
	return nil
}

func withdrawalFilter(f models.WithdrawalFilter) bson.D {
	filter := bson.D{}
	if f.Address != "" {
		filter = append(filter, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "sender", Value: f.Address}},
			bson.D{{Key: "receiver", Value: f.Address}},
		}})
	}
	if f.Sequence != nil {
		filter = append(filter, bson.E{Key: "sequence", Value: *f.Sequence})
	}
	return filter
}

func (db *Database) ListWithdrawals(ctx context.Context, f models.WithdrawalFilter, page models.Page) ([]models.Withdrawal, int64, error) {
	filter := withdrawalFilter(f)

	total, err := db.collection(WithdrawalsCollection).CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count withdrawals: %w", err)
	}

	withdrawals, err := db.findWithdrawals(ctx, filter, page)
	if err != nil {
		return nil, 0, err
	}

	return withdrawals, total, nil
}

func (db *Database) findWithdrawals(ctx context.Context, filter bson.D, page models.Page) ([]models.Withdrawal, error) {
	cursor, err := db.collection(WithdrawalsCollection).Find(ctx, filter, findOptions(page, "sequence"))
	if err != nil {
		return nil, fmt.Errorf("failed to find withdrawals: %w", err)
	}
	defer cursor.Close(ctx)

	withdrawals := []models.Withdrawal{}
	if err := cursor.All(ctx, &withdrawals); err != nil {
		return nil, fmt.Errorf("failed to decode withdrawals: %w", err)
	}

	return withdrawals, nil
}
