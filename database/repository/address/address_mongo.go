package addressRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"homeglow/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoAddressRepo implements AddressRepository using MongoDB.
type MongoAddressRepo struct {
	coll *mongo.Collection
}

func NewMongoAddressRepo(db *mongo.Database, logger *zap.Logger) AddressRepository {
	repo := &MongoAddressRepo{coll: db.Collection("client_addresses")}
	if err := repo.ensureIndexes(); err != nil {
		logger.Warn("address indexes not created", zap.Error(err))
	}
	return repo
}

func (r *MongoAddressRepo) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "client_id", Value: 1}}},
	}
	if _, err := r.coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// Create inserts a new address. It is not idempotent: callers guard against repeats.
func (r *MongoAddressRepo) Create(ctx context.Context, address *models.ClientAddress) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := r.coll.InsertOne(ctx, address); err != nil {
		return fmt.Errorf("failed to create address for client %s: %w", address.ClientID, err)
	}
	return nil
}

func (r *MongoAddressRepo) GetByID(ctx context.Context, id string) (*models.ClientAddress, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var address models.ClientAddress
	if err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&address); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAddressNotFound
		}
		return nil, fmt.Errorf("failed to fetch address %s: %w", id, err)
	}
	return &address, nil
}
