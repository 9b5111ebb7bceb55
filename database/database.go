package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lightlink-network/ll-opinit-bots/database/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// Collection names
const (
	CursorsCollection                        = "cursors"
	OutputsCollection                        = "outputs"
	WithdrawalsCollection                    = "withdrawals"
	DepositsCollection                       = "deposits"
	UnconfirmedDepositsCollection            = "unconfirmed_deposits"
	ChallengerDepositsCollection             = "challenger_deposits"
	ChallengerFinalizedWithdrawalsCollection = "challenger_finalized_withdrawals"
)

// Database stores bot state in MongoDB. Transactions need a replica set.
type Database struct {
	client       *mongo.Client
	databaseName string
	logger       *slog.Logger
}

type DatabaseOpts struct {
	URI          string
	DatabaseName string
	Logger       *slog.Logger
}

const (
	defaultTimeout     = 10 * time.Second
	transactionTimeout = time.Minute
)

func NewDatabase(opts DatabaseOpts) (*Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	clientOpts := options.Client().
		ApplyURI(opts.URI).
		SetMaxPoolSize(100).
		SetMinPoolSize(10).
		SetMaxConnecting(10).
		SetServerSelectionTimeout(5 * time.Second).
		SetRetryWrites(true)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{
		client:       client,
		databaseName: opts.DatabaseName,
		logger:       opts.Logger,
	}, nil
}

func (db *Database) Close(ctx context.Context) error {
	return db.client.Disconnect(ctx)
}

func (db *Database) collection(name string) *mongo.Collection {
	return db.client.Database(db.databaseName).Collection(name)
}

// WithTransaction runs fn in a multi document transaction. fn must use the
// ctx it is given for every read and write that belongs to the transaction.
// The driver may call fn again on a transient transaction error.
func (db *Database) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := db.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	ctx, cancel := context.WithTimeout(ctx, transactionTimeout)
	defer cancel()

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	}, txnOpts)
	return err
}

func (db *Database) CreateIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	bridgeSequence := bson.D{{Key: "bridge_id", Value: 1}, {Key: "sequence", Value: 1}}

	indexes := map[string][]mongo.IndexModel{
		CursorsCollection: {
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: unique},
		},
		OutputsCollection: {
			{Keys: bson.D{{Key: "output_index", Value: 1}}, Options: unique},
		},
		WithdrawalsCollection: {
			{Keys: bridgeSequence, Options: unique},
			{Keys: bson.D{{Key: "output_index", Value: 1}}},
			{Keys: bson.D{{Key: "sender", Value: 1}}},
			{Keys: bson.D{{Key: "receiver", Value: 1}}},
		},
		DepositsCollection: {
			{Keys: bridgeSequence, Options: unique},
		},
		UnconfirmedDepositsCollection: {
			{Keys: bridgeSequence, Options: unique},
			{Keys: bson.D{{Key: "processed", Value: 1}}},
		},
		ChallengerDepositsCollection: {
			{Keys: bridgeSequence, Options: unique},
		},
		ChallengerFinalizedWithdrawalsCollection: {
			{Keys: bridgeSequence, Options: unique},
			{Keys: bson.D{{Key: "output_index", Value: 1}}},
		},
	}

	for name, idx := range indexes {
		if _, err := db.collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", name, err)
		}
	}

	return nil
}

// insertOnce writes each document unless one with the same key already
// exists. Duplicate key errors abort a Mongo transaction, so write-once
// inserts are done as $setOnInsert upserts instead of InsertMany.
func insertOnce[T any](ctx context.Context, db *Database, collection string, items []T, key func(T) bson.D) error {
	if len(items) == 0 {
		return nil
	}

	writes := make([]mongo.WriteModel, len(items))
	for i, item := range items {
		writes[i] = mongo.NewUpdateOneModel().
			SetFilter(key(item)).
			SetUpdate(bson.D{{Key: "$setOnInsert", Value: item}}).
			SetUpsert(true)
	}

	result, err := db.collection(collection).BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("failed to insert %s: %w", collection, err)
	}

	if skipped := int64(len(items)) - result.UpsertedCount; skipped > 0 {
		db.logger.Debug("skipped existing documents",
			"collection", collection,
			"inserted", result.UpsertedCount,
			"existing", skipped)
	}

	return nil
}

func bridgeSequenceKey(bridgeID, sequence uint64) bson.D {
	return bson.D{{Key: "bridge_id", Value: bridgeID}, {Key: "sequence", Value: sequence}}
}

func findOptions(page models.Page, sortKey string) *options.FindOptions {
	order := 1
	if page.Descending {
		order = -1
	}
	opts := options.Find().SetSort(bson.D{{Key: sortKey, Value: order}})
	if page.Offset > 0 {
		opts.SetSkip(page.Offset)
	}
	if page.Limit > 0 {
		opts.SetLimit(page.Limit)
	}
	return opts
}
