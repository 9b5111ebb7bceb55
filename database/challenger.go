package database

import (
	"context"

	"github.com/lightlink-network/ll-opinit-bots/database/models"
	"go.mongodb.org/mongo-driver/bson"
)

func (db *Database) SaveChallengerDeposits(ctx context.Context, deposits []models.ChallengerDeposit) error {
	return insertOnce(ctx, db, ChallengerDepositsCollection, deposits, func(d models.ChallengerDeposit) bson.D {
		return bridgeSequenceKey(d.BridgeID, d.Sequence)
	})
}

func (db *Database) SaveFinalizedWithdrawals(ctx context.Context, withdrawals []models.FinalizedWithdrawal) error {
	return insertOnce(ctx, db, ChallengerFinalizedWithdrawalsCollection, withdrawals, func(w models.FinalizedWithdrawal) bson.D {
		return bridgeSequenceKey(w.BridgeID, w.Sequence)
	})
}
