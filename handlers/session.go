package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"homeglow/middleware"
	"homeglow/models"
	"homeglow/services/session"
	"homeglow/utils"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
)

// SessionHandler exposes the booking wizard over HTTP.
type SessionHandler struct {
	Service session.SessionService
	Logger  *zap.Logger
}

func NewSessionHandler(svc session.SessionService, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{Service: svc, Logger: logger}
}

// versioned is embedded in every mutating request body.
type versioned struct {
	ExpectedVersion *int64 `json:"expectedVersion"`
}

type createSessionRequest struct {
	GuestEmail       string `json:"guestEmail"`
	ServiceID        string `json:"serviceId"`
	ContractorID     string `json:"contractorId"`
	ContractorLocked bool   `json:"contractorLocked"`
}

// CreateSession starts a wizard run. Authenticated callers get a session bound to
// their identity; anonymous callers must supply a guest email.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if !h.bind(c, &req) {
		return
	}

	s, err := h.Service.CreateSession(c.Request.Context(), session.NewSessionInput{
		ClientID:         c.GetString(middleware.ClientIDKey),
		GuestEmail:       req.GuestEmail,
		ServiceID:        req.ServiceID,
		ContractorID:     req.ContractorID,
		ContractorLocked: req.ContractorLocked,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

// GetSession returns the session with its service, address and contractor resolved.
func (h *SessionHandler) GetSession(c *gin.Context) {
	s, err := h.Service.GetWithRelations(c.Request.Context(), c.Param("sessionID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *SessionHandler) ListActiveSessions(c *gin.Context) {
	sessions, err := h.Service.GetActiveSessions(c.Request.Context(), c.GetString(middleware.ClientIDKey))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if sessions == nil {
		sessions = []models.BookingSession{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *SessionHandler) DeleteSession(c *gin.Context) {
	if err := h.Service.DeleteSession(c.Request.Context(), c.Param("sessionID")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) SelectService(c *gin.Context) {
	var req struct {
		versioned
		ServiceID string `json:"serviceId" binding:"required"`
	}
	if !h.bind(c, &req) {
		return
	}
	h.respond(c)(h.Service.SelectService(c.Request.Context(), c.Param("sessionID"), req.ServiceID, req.ExpectedVersion))
}

func (h *SessionHandler) SelectAddress(c *gin.Context) {
	var req struct {
		versioned
		AddressID string `json:"addressId" binding:"required"`
	}
	if !h.bind(c, &req) {
		return
	}
	h.respond(c)(h.Service.SelectAddress(c.Request.Context(), c.Param("sessionID"), req.AddressID, req.ExpectedVersion))
}

func (h *SessionHandler) SelectGuestAddress(c *gin.Context) {
	var req struct {
		versioned
		Address models.GuestAddress `json:"address"`
	}
	if !h.bind(c, &req) {
		return
	}
	h.respond(c)(h.Service.SelectGuestAddress(c.Request.Context(), c.Param("sessionID"), req.Address, req.ExpectedVersion))
}

func (h *SessionHandler) SelectSchedule(c *gin.Context) {
	var req struct {
		versioned
		Timeslot     models.Timeslot `json:"timeslot"`
		ContractorID *string         `json:"contractorId"`
	}
	if !h.bind(c, &req) {
		return
	}
	h.respond(c)(h.Service.SelectTimeslotAndContractor(c.Request.Context(), c.Param("sessionID"), req.Timeslot, req.ContractorID, req.ExpectedVersion))
}

func (h *SessionHandler) SelectContractor(c *gin.Context) {
	var req struct {
		versioned
		ContractorID string `json:"contractorId" binding:"required"`
	}
	if !h.bind(c, &req) {
		return
	}
	h.respond(c)(h.Service.SelectContractor(c.Request.Context(), c.Param("sessionID"), req.ContractorID, req.ExpectedVersion))
}

func (h *SessionHandler) RewindStep(c *gin.Context) {
	var req struct {
		versioned
		Step models.Step `json:"step" binding:"required"`
	}
	if !h.bind(c, &req) {
		return
	}
	h.respond(c)(h.Service.RewindToStep(c.Request.Context(), c.Param("sessionID"), req.Step, req.ExpectedVersion))
}

// discountRequest carries only the code; the amount is priced server-side.
type discountRequest struct {
	versioned
	Code string `json:"code" binding:"required"`
}

func (h *SessionHandler) ApplyPromoCode(c *gin.Context) {
	var req discountRequest
	if !h.bind(c, &req) {
		return
	}
	h.respond(c)(h.Service.RedeemPromoCode(c.Request.Context(), c.Param("sessionID"), req.Code, req.ExpectedVersion))
}

func (h *SessionHandler) RemovePromoCode(c *gin.Context) {
	version, ok := versionFromQuery(c)
	if !ok {
		return
	}
	h.respond(c)(h.Service.RemovePromoCode(c.Request.Context(), c.Param("sessionID"), version))
}

func (h *SessionHandler) ApplyGiftCard(c *gin.Context) {
	var req discountRequest
	if !h.bind(c, &req) {
		return
	}
	h.respond(c)(h.Service.RedeemGiftCard(c.Request.Context(), c.Param("sessionID"), req.Code, req.ExpectedVersion))
}

func (h *SessionHandler) RemoveGiftCard(c *gin.Context) {
	version, ok := versionFromQuery(c)
	if !ok {
		return
	}
	h.respond(c)(h.Service.RemoveGiftCard(c.Request.Context(), c.Param("sessionID"), version))
}

func (h *SessionHandler) Quote(c *gin.Context) {
	q, err := h.Service.Quote(c.Request.Context(), c.Param("sessionID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *SessionHandler) PreparePayment(c *gin.Context) {
	prep, err := h.Service.PreparePayment(c.Request.Context(), c.Param("sessionID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, prep)
}

// MigrateSession binds a guest session to the caller's identity after sign-in.
func (h *SessionHandler) MigrateSession(c *gin.Context) {
	h.respond(c)(h.Service.MigrateGuestSession(c.Request.Context(), c.Param("sessionID"), c.GetString(middleware.ClientIDKey)))
}

func (h *SessionHandler) ConfirmBooking(c *gin.Context) {
	var req struct {
		PaymentReference string `json:"paymentReference"`
	}
	if !h.bind(c, &req) {
		return
	}
	booking, err := h.Service.MaterializeBooking(c.Request.Context(), c.Param("sessionID"), req.PaymentReference)
	if err != nil {
		if errors.Is(err, session.ErrConsumed) && booking != nil {
			c.JSON(http.StatusConflict, gin.H{
				"message": "Booking already created for this session",
				"code":    "session_consumed",
				"booking": booking,
			})
			return
		}
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, booking)
}

// bind decodes an optional JSON body. An empty body is accepted for requests whose
// fields are all optional; binding tags still apply.
func (h *SessionHandler) bind(c *gin.Context, req any) bool {
	if c.Request.ContentLength == 0 {
		if err := binding.Validator.ValidateStruct(req); err != nil {
			utils.JSONError(c, http.StatusBadRequest, "Invalid request", err.Error())
			return false
		}
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid request", err.Error())
		return false
	}
	return true
}

// versionFromQuery reads ?expectedVersion= for body-less DELETE requests. A value
// that is not an integer is answered with 400 and ok is false.
func versionFromQuery(c *gin.Context) (version *int64, ok bool) {
	raw := c.Query("expectedVersion")
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid request", "expectedVersion must be an integer")
		return nil, false
	}
	return &v, true
}

func (h *SessionHandler) respond(c *gin.Context) func(*models.BookingSession, error) {
	return func(s *models.BookingSession, err error) {
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, s)
	}
}

func (h *SessionHandler) respondError(c *gin.Context, err error) {
	status, resp := ErrorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger(c).Error("booking session request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	utils.JSONErrorResponse(c, status, resp)
}

func (h *SessionHandler) logger(c *gin.Context) *zap.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return utils.LoggerFrom(c)
}
