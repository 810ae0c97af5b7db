package sessionRepo

import (
	"context"
	"time"

	"homeglow/models"
)

// SessionRepository is the durable store for booking sessions. Every call is a
// round trip to the database; there is no caching layer.
type SessionRepository interface {
	Get(ctx context.Context, sessionID string) (*models.BookingSession, error)
	Create(ctx context.Context, session *models.BookingSession) error
	// Update merges patch into the stored row. A non-nil expectedVersion must match
	// the stored version; otherwise models.ErrStaleSession is returned.
	Update(ctx context.Context, sessionID string, patch models.SessionPatch, expectedVersion *int64, now time.Time) (*models.BookingSession, error)
	// MarkConsumed stamps the session as materialized into bookingID, only if it has
	// not been consumed already and is still at version.
	MarkConsumed(ctx context.Context, sessionID string, version int64, bookingID string, now time.Time) error
	Delete(ctx context.Context, sessionID string) error
	// ListActive returns unexpired, unconsumed sessions; all clients when clientID is empty.
	ListActive(ctx context.Context, clientID string, now time.Time) ([]models.BookingSession, error)
	ListExpiredIDs(ctx context.Context, now time.Time, limit int) ([]string, error)
}
