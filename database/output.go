package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/lightlink-network/ll-opinit-bots/database/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SaveOutput stores an output. Outputs are never modified once written.
func (db *Database) SaveOutput(ctx context.Context, output models.Output) error {
	return insertOnce(ctx, db, OutputsCollection, []models.Output{output}, func(o models.Output) bson.D {
		return bson.D{{Key: "output_index", Value: o.OutputIndex}}
	})
}

// GetLastOutput returns the output with the highest index, or nil if none exists.
func (db *Database) GetLastOutput(ctx context.Context) (*models.Output, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "output_index", Value: -1}})

	var output models.Output
	err := db.collection(OutputsCollection).FindOne(ctx, bson.D{}, opts).Decode(&output)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last output: %w", err)
	}

	return &output, nil
}

// GetOutput returns mongo.ErrNoDocuments when the output does not exist.
func (db *Database) GetOutput(ctx context.Context, index uint64) (*models.Output, error) {
	var output models.Output
	err := db.collection(OutputsCollection).FindOne(ctx, bson.D{{Key: "output_index", Value: index}}).Decode(&output)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get output %d: %w", index, err)
	}

	return &output, nil
}

// GetOutputsAfter returns up to limit outputs with an index above index, ascending.
func (db *Database) GetOutputsAfter(ctx context.Context, index uint64, limit int64) ([]models.Output, error) {
	filter := bson.D{{Key: "output_index", Value: bson.D{{Key: "$gt", Value: index}}}}
	return db.findOutputs(ctx, filter, models.Page{Limit: limit})
}

func (db *Database) ListOutputs(ctx context.Context, page models.Page) (*models.PaginatedResult, error) {
	total, err := db.collection(OutputsCollection).CountDocuments(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("failed to count outputs: %w", err)
	}

	outputs, err := db.findOutputs(ctx, bson.D{}, page)
	if err != nil {
		return nil, err
	}

	return &models.PaginatedResult{
		Items:      outputs,
		TotalCount: total,
		Offset:     page.Offset,
		Limit:      page.Limit,
	}, nil
}

func (db *Database) findOutputs(ctx context.Context, filter bson.D, page models.Page) ([]models.Output, error) {
	cursor, err := db.collection(OutputsCollection).Find(ctx, filter, findOptions(page, "output_index"))
	if err != nil {
		return nil, fmt.Errorf("failed to find outputs: %w", err)
	}
	defer cursor.Close(ctx)

	outputs := []models.Output{}
	if err := cursor.All(ctx, &outputs); err != nil {
		return nil, fmt.Errorf("failed to decode outputs: %w", err)
	}

	return outputs, nil
}
