package handlers

import (
	"github.com/gin-gonic/gin"
)

// HandlerBundle groups the endpoint handlers handed to the router.
type HandlerBundle struct {
	JWTSecret []byte

	// Session lifecycle
	CreateSession      gin.HandlerFunc
	GetSession         gin.HandlerFunc
	ListActiveSessions gin.HandlerFunc
	DeleteSession      gin.HandlerFunc

	// Wizard steps
	SelectService      gin.HandlerFunc
	SelectAddress      gin.HandlerFunc
	SelectGuestAddress gin.HandlerFunc
	SelectSchedule     gin.HandlerFunc
	SelectContractor   gin.HandlerFunc
	RewindStep         gin.HandlerFunc

	// Discounts and payment
	ApplyPromoCode  gin.HandlerFunc
	RemovePromoCode gin.HandlerFunc
	ApplyGiftCard   gin.HandlerFunc
	RemoveGiftCard  gin.HandlerFunc
	Quote           gin.HandlerFunc
	PreparePayment  gin.HandlerFunc

	MigrateSession gin.HandlerFunc
	ConfirmBooking gin.HandlerFunc

	Health gin.HandlerFunc
}

// NewHandlerBundle wires every session endpoint from h.
func NewHandlerBundle(h *SessionHandler, health gin.HandlerFunc, jwtSecret []byte) *HandlerBundle {
	return &HandlerBundle{
		JWTSecret: jwtSecret,

		CreateSession:      h.CreateSession,
		GetSession:         h.GetSession,
		ListActiveSessions: h.ListActiveSessions,
		DeleteSession:      h.DeleteSession,

		SelectService:      h.SelectService,
		SelectAddress:      h.SelectAddress,
		SelectGuestAddress: h.SelectGuestAddress,
		SelectSchedule:     h.SelectSchedule,
		SelectContractor:   h.SelectContractor,
		RewindStep:         h.RewindStep,

		ApplyPromoCode:  h.ApplyPromoCode,
		RemovePromoCode: h.RemovePromoCode,
		ApplyGiftCard:   h.ApplyGiftCard,
		RemoveGiftCard:  h.RemoveGiftCard,
		Quote:           h.Quote,
		PreparePayment:  h.PreparePayment,

		MigrateSession: h.MigrateSession,
		ConfirmBooking: h.ConfirmBooking,

		Health: health,
	}
}
