package mongo

import (
	"context"
	"errors"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const indexSuffix = "_export"

// IndexManager maintains the POD/day index used by the export queries.
type IndexManager struct {
	db     *mongo.Database
	logger *log.Logger
}

// NewIndexManager constructs an index manager.
func NewIndexManager(db *mongo.Database, logger *log.Logger) (*IndexManager, error) {
	if db == nil {
		return nil, errors.New("mongo index manager: nil database")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &IndexManager{db: db, logger: logger}, nil
}

// IndexName returns the export index name of collection.
func IndexName(collection string) string { return collection + indexSuffix }

// Recreate drops the export index of collection if present and builds it
// again on (POD asc, MEAS_YMDD_ID asc). It returns the index name.
func (m *IndexManager) Recreate(ctx context.Context, collection string) (string, error) {
	name := IndexName(collection)
	indexes := m.db.Collection(collection).Indexes()

	exists, err := m.exists(ctx, indexes, name)
	if err != nil {
		return "", err
	}
	if exists {
		if _, err := indexes.DropOne(ctx, name); err != nil {
			return "", fmt.Errorf("mongo index manager: drop %s: %w", name, err)
		}
	}

	m.logger.Printf("mongo index create: collection=%s index=%s", collection, name)
	model := mongo.IndexModel{
		Keys:    bson.D{{Key: FieldPOD, Value: 1}, {Key: FieldDaySlot, Value: 1}},
		Options: options.Index().SetName(name),
	}
	if _, err := indexes.CreateOne(ctx, model); err != nil {
		return "", fmt.Errorf("mongo index manager: create %s: %w", name, err)
	}
	m.logger.Printf("mongo index created: collection=%s index=%s", collection, name)
	return name, nil
}

// Drop removes the named index of collection.
func (m *IndexManager) Drop(ctx context.Context, collection, name string) error {
	if _, err := m.db.Collection(collection).Indexes().DropOne(ctx, name); err != nil {
		return fmt.Errorf("mongo index manager: drop %s: %w", name, err)
	}
	m.logger.Printf("mongo index dropped: collection=%s index=%s", collection, name)
	return nil
}

func (m *IndexManager) exists(ctx context.Context, indexes mongo.IndexView, name string) (bool, error) {
	specs, err := indexes.ListSpecifications(ctx)
	if err != nil {
		return false, fmt.Errorf("mongo index manager: list: %w", err)
	}
	for _, spec := range specs {
		if spec.Name == name {
			return true, nil
		}
	}
	return false, nil
}
