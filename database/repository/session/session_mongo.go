package sessionRepo

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

const collectionName = "booking_sessions"

// MongoSessionRepo implements SessionRepository using MongoDB.
type MongoSessionRepo struct {
	coll *mongo.Collection
}

// NewMongoSessionRepo creates a new instance of SessionRepository using MongoDB.
func NewMongoSessionRepo(db *mongo.Database, logger *zap.Logger) SessionRepository {
	repo := &MongoSessionRepo{coll: db.Collection(collectionName)}
	if err := repo.ensureIndexes(); err != nil {
		logger.Warn("session indexes not created", zap.Error(err))
	}
	return repo
}

// newContext creates a context with the given timeout.
func newContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func (r *MongoSessionRepo) Get(ctx context.Context, sessionID string) (*models.BookingSession, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var session models.BookingSession
	if err := r.coll.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&session); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to fetch session %s: %w", sessionID, err)
	}
	return &session, nil
}

func (r *MongoSessionRepo) Create(ctx context.Context, session *models.BookingSession) error {
	if err := session.Validate(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := r.coll.InsertOne(ctx, session); err != nil {
		return fmt.Errorf("failed to create session %s: %w", session.SessionID, err)
	}
	return nil
}

// Update reads the row, merges the patch and replaces it conditionally on the
// version that was read, so concurrent writers cannot silently overwrite each other.
func (r *MongoSessionRepo) Update(ctx context.Context, sessionID string, patch models.SessionPatch, expectedVersion *int64, now time.Time) (*models.BookingSession, error) {
	current, err := r.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	merged, err := PrepareUpdate(current, patch, expectedVersion, now)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"session_id": sessionID, "version": current.Version}
	res, err := r.coll.ReplaceOne(ctx, filter, merged)
	if err != nil {
		return nil, fmt.Errorf("failed to update session %s: %w", sessionID, err)
	}
	if res.MatchedCount == 0 {
		return nil, fmt.Errorf("%w: session %s changed while updating", models.ErrStaleSession, sessionID)
	}
	return merged, nil
}

func (r *MongoSessionRepo) MarkConsumed(ctx context.Context, sessionID string, version int64, bookingID string, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"session_id":  sessionID,
		"version":     version,
		"consumed_at": nil,
	}
	update := bson.M{
		"$set": bson.M{
			"consumed_at":      now,
			"booking_id":       bookingID,
			"last_activity_at": now,
			"updated_at":       now,
		},
		"$inc": bson.M{"version": 1},
	}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to consume session %s: %w", sessionID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: session %s already consumed or changed", models.ErrStaleSession, sessionID)
	}
	return nil
}

// Delete removes the session; deleting a missing session is not an error.
func (r *MongoSessionRepo) Delete(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := r.coll.DeleteOne(ctx, bson.M{"session_id": sessionID}); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return nil
}

func (r *MongoSessionRepo) ListActive(ctx context.Context, clientID string, now time.Time) ([]models.BookingSession, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{
		"expires_at":  bson.M{"$gte": now},
		"consumed_at": nil,
	}
	if clientID != "" {
		filter["client_id"] = clientID
	}
	opts := options.Find().SetSort(bson.D{{Key: "last_activity_at", Value: -1}})

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}
	defer cursor.Close(ctx)

	sessions := []models.BookingSession{}
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode active sessions: %w", err)
	}
	return sessions, nil
}

func (r *MongoSessionRepo) ListExpiredIDs(ctx context.Context, now time.Time, limit int) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Find().
		SetProjection(bson.M{"session_id": 1}).
		SetSort(bson.D{{Key: "expires_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.coll.Find(ctx, bson.M{"expires_at": bson.M{"$lt": now}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var row struct {
			SessionID string `bson:"session_id"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("error decoding expired session: %w", err)
		}
		ids = append(ids, row.SessionID)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return ids, nil
}
