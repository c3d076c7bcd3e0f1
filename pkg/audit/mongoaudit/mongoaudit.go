// Package mongoaudit stores audit entries in a MongoDB collection
package mongoaudit

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-ledger/pkg/audit"
)

const (
	DefaultCollection = "audit_logs"
	connectTimeout    = 10 * time.Second
)

// inserter is the part of *mongo.Collection the sink needs
type inserter interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

// Sink writes audit entries to MongoDB
type Sink struct {
	client     *mongo.Client
	collection inserter
}

var _ audit.Sink = (*Sink)(nil)

// Connect dials MongoDB and returns a sink writing to database.collection
func Connect(ctx context.Context, uri, database, collection string, logger *zap.Logger) (*Sink, error) {
	if collection == "" {
		collection = DefaultCollection
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info("Connected to MongoDB audit store",
		zap.String("database", database),
		zap.String("collection", collection))

	return &Sink{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}, nil
}

// Write inserts one audit document
func (s *Sink) Write(ctx context.Context, entry audit.Entry) error {
	if _, err := s.collection.InsertOne(ctx, toDocument(entry)); err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// Close disconnects the client
func (s *Sink) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}
	return nil
}

func toDocument(entry audit.Entry) bson.M {
	doc := bson.M{
		"_id":       primitive.NewObjectID(),
		"actorId":   entry.ActorID,
		"action":    entry.Action,
		"module":    entry.Module,
		"timestamp": primitive.NewDateTimeFromTime(entry.Timestamp),
	}
	if entry.OldData != nil {
		doc["oldData"] = entry.OldData
	}
	if entry.NewData != nil {
		doc["newData"] = entry.NewData
	}
	if entry.IPAddress != "" {
		doc["ipAddress"] = entry.IPAddress
	}
	return doc
}
