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

// SaveCursor creates or moves the named cursor.
func (db *Database) SaveCursor(ctx context.Context, name string, height int64) error {
	filter := bson.D{{Key: "name", Value: name}}
	update := bson.D{{
		Key: "$set",
		Value: bson.D{{
			Key: "height", Value: height,
		}},
	}}

	_, err := db.collection(CursorsCollection).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save cursor %s: %w", name, err)
	}

	return nil
}

// GetCursor returns the named cursor. ok is false when it was never saved.
func (db *Database) GetCursor(ctx context.Context, name string) (int64, bool, error) {
	var result models.Cursor
	err := db.collection(CursorsCollection).FindOne(ctx, bson.D{{Key: "name", Value: name}}).Decode(&result)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get cursor %s: %w", name, err)
	}

	return result.Height, true, nil
}
