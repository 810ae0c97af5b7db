package session

import (
	"context"
	"strings"

	"homeglow/models"

	"go.uber.org/zap"
)

// MigrateGuestSession binds a guest session to clientID after the guest signs in.
// A typed-in guest address becomes a permanent address owned by the client. Both
// writes share one transaction, and the is_guest precondition keeps a repeated call
// from inserting the address twice.
func (s *DefaultSessionService) MigrateGuestSession(ctx context.Context, sessionID, clientID string) (*models.BookingSession, error) {
	const op = "migrate guest session"

	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, fail(op, sessionID, ErrInvalidInput, "client id is required")
	}

	var migrated *models.BookingSession
	err := s.inTransaction(ctx, func(ctx context.Context) error {
		session, err := s.loadMutable(ctx, op, sessionID, nil)
		if err != nil {
			return err
		}
		if !session.IsGuest || session.ClientID != nil {
			return fail(op, sessionID, ErrNotAGuestSession, "session already belongs to a client")
		}

		patch := models.SessionPatch{
			ClientID:          models.StringPtr(clientID),
			IsGuest:           models.BoolPtr(false),
			ClearGuestEmail:   true,
			ClearGuestAddress: true,
		}
		if session.GuestAddress != nil {
			addr := models.NewClientAddressFromGuest(s.newID(), clientID, *session.GuestAddress, s.now())
			if err := s.Addresses.Create(ctx, &addr); err != nil {
				return wrap(op, sessionID, err)
			}
			patch.AddressID = models.StringPtr(addr.ID)
		}

		migrated, err = s.update(ctx, op, session, patch)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log().Info("guest session migrated",
		zap.String("session", sessionID),
		zap.String("client", clientID),
		zap.Bool("addressCreated", migrated.AddressID != nil),
	)
	return migrated, nil
}
