package database

import (
	"context"
	"fmt"

	"github.com/lightlink-network/ll-opinit-bots/database/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db *Database) SaveDeposits(ctx context.Context, deposits []models.Deposit) error {
	return insertOnce(ctx, db, DepositsCollection, deposits, func(d models.Deposit) bson.D {
		return bridgeSequenceKey(d.BridgeID, d.Sequence)
	})
}

func (db *Database) SaveUnconfirmedDeposits(ctx context.Context, deposits []models.UnconfirmedDeposit) error {
	return insertOnce(ctx, db, UnconfirmedDepositsCollection, deposits, func(d models.UnconfirmedDeposit) bson.D {
		return bridgeSequenceKey(d.BridgeID, d.Sequence)
	})
}

// GetPendingUnconfirmedDeposits returns every unprocessed deposit, oldest sequence first.
func (db *Database) GetPendingUnconfirmedDeposits(ctx context.Context) ([]models.UnconfirmedDeposit, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "sequence", Value: 1}}).
		SetHint(bson.D{{Key: "processed", Value: 1}})

	cursor, err := db.collection(UnconfirmedDepositsCollection).Find(ctx, bson.D{{Key: "processed", Value: false}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get unconfirmed deposits: %w", err)
	}
	defer cursor.Close(ctx)

	deposits := []models.UnconfirmedDeposit{}
	if err := cursor.All(ctx, &deposits); err != nil {
		return nil, fmt.Errorf("failed to decode unconfirmed deposits: %w", err)
	}

	return deposits, nil
}

// MarkDepositsProcessed flips processed to true. Already processed rows are not touched.
func (db *Database) MarkDepositsProcessed(ctx context.Context, deposits []models.UnconfirmedDeposit) error {
	if len(deposits) == 0 {
		return nil
	}

	writes := make([]mongo.WriteModel, len(deposits))
	for i, d := range deposits {
		filter := bridgeSequenceKey(d.BridgeID, d.Sequence)
		filter = append(filter, bson.E{Key: "processed", Value: false})
		writes[i] = mongo.NewUpdateOneModel().
			SetFilter(filter).
			SetUpdate(bson.D{{Key: "$set", Value: bson.D{{Key: "processed", Value: true}}}})
	}

	result, err := db.collection(UnconfirmedDepositsCollection).BulkWrite(ctx, writes)
	if err != nil {
		return fmt.Errorf("failed to mark deposits processed: %w", err)
	}

	db.logger.Info("marked unconfirmed deposits processed", "count", result.ModifiedCount)
	return nil
}

// RecordDepositErrors stores the latest broadcast error of each pending row.
func (db *Database) RecordDepositErrors(ctx context.Context, deposits []models.UnconfirmedDeposit) error {
	if len(deposits) == 0 {
		return nil
	}

	writes := make([]mongo.WriteModel, len(deposits))
	for i, d := range deposits {
		filter := bridgeSequenceKey(d.BridgeID, d.Sequence)
		filter = append(filter, bson.E{Key: "processed", Value: false})
		writes[i] = mongo.NewUpdateOneModel().
			SetFilter(filter).
			SetUpdate(bson.D{{Key: "$set", Value: bson.D{{Key: "error", Value: d.Error}}}})
	}

	if _, err := db.collection(UnconfirmedDepositsCollection).BulkWrite(ctx, writes); err != nil {
		return fmt.Errorf("failed to record deposit errors: %w", err)
	}
	return nil
}

func (db *Database) ListUnconfirmedDeposits(ctx context.Context, page models.Page) (*models.PaginatedResult, error) {
	filter := bson.D{{Key: "processed", Value: false}}

	total, err := db.collection(UnconfirmedDepositsCollection).CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count unconfirmed deposits: %w", err)
	}

	cursor, err := db.collection(UnconfirmedDepositsCollection).Find(ctx, filter, findOptions(page, "sequence"))
	if err != nil {
		return nil, fmt.Errorf("failed to list unconfirmed deposits: %w", err)
	}
	defer cursor.Close(ctx)

	deposits := []models.UnconfirmedDeposit{}
	if err := cursor.All(ctx, &deposits); err != nil {
		return nil, fmt.Errorf("failed to decode unconfirmed deposits: %w", err)
	}

	return &models.PaginatedResult{
		Items:      deposits,
		TotalCount: total,
		Offset:     page.Offset,
		Limit:      page.Limit,
	}, nil
}
