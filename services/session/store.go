package session

import (
	"context"
	"errors"
	"strings"

	addressRepo "homeglow/database/repository/address"
	catalogRepo "homeglow/database/repository/catalog"
	"homeglow/models"

	"go.uber.org/zap"
)

// NewSessionInput describes how a wizard run starts. Exactly one of ClientID and
// GuestEmail must be set. ServiceID and ContractorID preselect from a service or
// contractor page; ContractorLocked pins the contractor for the whole session.
type NewSessionInput struct {
	ClientID         string
	GuestEmail       string
	ServiceID        string
	ContractorID     string
	ContractorLocked bool
}

func (s *DefaultSessionService) CreateSession(ctx context.Context, in NewSessionInput) (*models.BookingSession, error) {
	const op = "create session"

	in.ClientID = strings.TrimSpace(in.ClientID)
	in.GuestEmail = strings.ToLower(strings.TrimSpace(in.GuestEmail))
	switch {
	case in.ClientID != "" && in.GuestEmail != "":
		return nil, fail(op, "", ErrConflict, "a session is either authenticated or guest, not both")
	case in.ClientID == "" && in.GuestEmail == "":
		return nil, fail(op, "", ErrInvalidInput, "client id or guest email is required")
	case in.GuestEmail != "":
		if err := validate.Var(in.GuestEmail, "email,max=254"); err != nil {
			return nil, fail(op, "", ErrInvalidInput, "guest email %q is not valid", in.GuestEmail)
		}
	}
	if in.ContractorLocked && in.ContractorID == "" {
		return nil, fail(op, "", ErrInvalidInput, "a locked contractor requires a contractor id")
	}

	now := s.now()
	session := &models.BookingSession{
		SessionID:        s.newID(),
		CurrentStep:      models.StepService,
		ContractorLocked: in.ContractorLocked,
		Version:          1,
		ExpiresAt:        now.Add(s.ttl()),
		LastActivityAt:   now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if in.ClientID != "" {
		session.ClientID = models.StringPtr(in.ClientID)
	} else {
		session.IsGuest = true
		session.GuestEmail = models.StringPtr(in.GuestEmail)
	}
	if in.ServiceID != "" {
		if _, err := s.activeService(ctx, op, "", in.ServiceID); err != nil {
			return nil, err
		}
		session.ServiceID = models.StringPtr(in.ServiceID)
	}
	if in.ContractorID != "" {
		if err := s.checkContractor(ctx, op, "", in.ContractorID); err != nil {
			return nil, err
		}
		session.ContractorID = models.StringPtr(in.ContractorID)
	}

	if err := s.Sessions.Create(ctx, session); err != nil {
		return nil, wrap(op, session.SessionID, err)
	}
	s.log().Info("booking session created",
		zap.String("session", session.SessionID),
		zap.Bool("guest", session.IsGuest),
		zap.Bool("contractorLocked", session.ContractorLocked),
	)
	return session, nil
}

// GetSession returns a live session. Expired sessions are reported as ErrExpired so
// callers can send the user back to the first step.
func (s *DefaultSessionService) GetSession(ctx context.Context, sessionID string) (*models.BookingSession, error) {
	return s.load(ctx, "get session", sessionID)
}

func (s *DefaultSessionService) GetWithRelations(ctx context.Context, sessionID string) (*models.SessionWithRelations, error) {
	const op = "get session with relations"

	session, err := s.load(ctx, op, sessionID)
	if err != nil {
		return nil, err
	}
	out := &models.SessionWithRelations{BookingSession: session}

	if session.ServiceID != nil {
		svc, err := s.Catalog.GetService(ctx, *session.ServiceID)
		switch {
		case errors.Is(err, catalogRepo.ErrServiceNotFound):
			s.log().Warn("session references a missing service", zap.String("session", sessionID), zap.String("service", *session.ServiceID))
		case err != nil:
			return nil, wrap(op, sessionID, err)
		default:
			out.Service = svc
		}
	}
	if session.ContractorID != nil {
		contractor, err := s.Catalog.GetContractor(ctx, *session.ContractorID)
		switch {
		case errors.Is(err, catalogRepo.ErrContractorNotFound):
			s.log().Warn("session references a missing contractor", zap.String("session", sessionID), zap.String("contractor", *session.ContractorID))
		case err != nil:
			return nil, wrap(op, sessionID, err)
		default:
			out.Contractor = contractor
		}
	}
	if session.AddressID != nil {
		addr, err := s.Addresses.GetByID(ctx, *session.AddressID)
		switch {
		case errors.Is(err, addressRepo.ErrAddressNotFound):
			s.log().Warn("session references a missing address", zap.String("session", sessionID), zap.String("address", *session.AddressID))
		case err != nil:
			return nil, wrap(op, sessionID, err)
		default:
			out.Address = addr
		}
	}
	return out, nil
}

func (s *DefaultSessionService) GetActiveSessions(ctx context.Context, clientID string) ([]models.BookingSession, error) {
	sessions, err := s.Sessions.ListActive(ctx, clientID, s.now())
	if err != nil {
		return nil, wrap("list active sessions", "", err)
	}
	return sessions, nil
}

// DeleteSession removes a session. Deleting an unknown session succeeds.
func (s *DefaultSessionService) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.Sessions.Delete(ctx, sessionID); err != nil {
		return wrap("delete session", sessionID, err)
	}
	s.log().Info("booking session deleted", zap.String("session", sessionID))
	return nil
}

// CleanupExpired deletes every session past its expiry and returns how many were
// removed. A failed delete is logged and skipped; it never aborts the sweep.
func (s *DefaultSessionService) CleanupExpired(ctx context.Context) (int, error) {
	now := s.now()
	batch := s.batchSize()
	removed := 0
	failed := map[string]bool{}

	for {
		// Rows that failed to delete are still listed; widen the page to see past them.
		limit := batch + len(failed)
		ids, err := s.Sessions.ListExpiredIDs(ctx, now, limit)
		if err != nil {
			return removed, wrap("cleanup expired sessions", "", err)
		}

		progressed := false
		for _, id := range ids {
			if failed[id] {
				continue
			}
			if err := s.Sessions.Delete(ctx, id); err != nil {
				failed[id] = true
				s.log().Error("failed to delete expired session", zap.String("session", id), zap.Error(err))
				continue
			}
			removed++
			progressed = true
		}
		if !progressed || len(ids) < limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return removed, err
		}
	}

	if removed > 0 || len(failed) > 0 {
		s.log().Info("expired booking sessions swept", zap.Int("removed", removed), zap.Int("failed", len(failed)))
	}
	return removed, nil
}

// load fetches a session and rejects it once expired.
func (s *DefaultSessionService) load(ctx context.Context, op, sessionID string) (*models.BookingSession, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fail(op, sessionID, ErrNotFound, "empty session id")
	}
	session, err := s.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, wrap(op, sessionID, err)
	}
	if session.IsExpired(s.now()) {
		return nil, fail(op, sessionID, ErrExpired, "expired at %s", session.ExpiresAt.Format("15:04:05"))
	}
	return session, nil
}

// loadMutable is load plus the checks every write needs: not yet consumed and,
// when the caller supplied one, the version they read is still current.
func (s *DefaultSessionService) loadMutable(ctx context.Context, op, sessionID string, expectedVersion *int64) (*models.BookingSession, error) {
	session, err := s.load(ctx, op, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsConsumed() {
		return nil, fail(op, sessionID, ErrConsumed, "booking %s already created", deref(session.BookingID))
	}
	if expectedVersion != nil && *expectedVersion != session.Version {
		return nil, fail(op, sessionID, ErrConflict, "expected version %d, current version %d", *expectedVersion, session.Version)
	}
	return session, nil
}

// update writes patch against the version that was read, so checks made on
// session still hold when the write lands.
func (s *DefaultSessionService) update(ctx context.Context, op string, session *models.BookingSession, patch models.SessionPatch) (*models.BookingSession, error) {
	now := s.now()
	if s.Options.SlidingExpiry {
		expires := now.Add(s.ttl())
		patch.ExpiresAt = &expires
	}
	version := session.Version
	updated, err := s.Sessions.Update(ctx, session.SessionID, patch, &version, now)
	if err != nil {
		return nil, wrap(op, session.SessionID, err)
	}
	return updated, nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
