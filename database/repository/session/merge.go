package sessionRepo

import (
	"fmt"
	"time"

	"homeglow/models"
)

// PrepareUpdate computes the row that replaces current. It is shared by every
// SessionRepository implementation so merge and invariant rules stay identical.
func PrepareUpdate(current *models.BookingSession, patch models.SessionPatch, expectedVersion *int64, now time.Time) (*models.BookingSession, error) {
	if expectedVersion != nil && *expectedVersion != current.Version {
		return nil, fmt.Errorf("%w: expected version %d, stored version %d", models.ErrStaleSession, *expectedVersion, current.Version)
	}
	merged := patch.Apply(current, now)
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	merged.Version = current.Version + 1
	return merged, nil
}
