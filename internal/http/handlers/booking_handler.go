package handlers

import (
	"github.com/gin-gonic/gin"

	"natours/internal/models"
	"natours/internal/repo"
	"natours/internal/services"
	"natours/internal/utils"
)

type BookingHandler struct {
	bookings *services.BookingService
}

type CreateBookingRequest struct {
	Tour  string  `json:"tour" binding:"required"`
	User  string  `json:"user" binding:"required"`
	Price float64 `json:"price" binding:"required,gte=0"`
	Paid  *bool   `json:"paid"`
}

type UpdateBookingRequest struct {
	Tour  *string  `json:"tour"`
	User  *string  `json:"user"`
	Price *float64 `json:"price" binding:"omitempty,gte=0"`
	Paid  *bool    `json:"paid"`
}

func NewBookingHandler(bookings *services.BookingService) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

// CheckoutSession starts a hosted checkout for the tour in the path.
func (h *BookingHandler) CheckoutSession(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	sess, err := h.bookings.CheckoutSession(c.Request.Context(), user, c.Param("tourId"), origin(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondOK(c, gin.H{"session": sess})
}

func (h *BookingHandler) List(c *gin.Context) {
	opts, ok := queryOptions(c, repo.BookingSchema)
	if !ok {
		return
	}
	bookings, err := h.bookings.List(c.Request.Context(), opts)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	respondList(c, bookings, opts.Fields)
}

func (h *BookingHandler) Get(c *gin.Context) {
	booking, err := h.bookings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondOK(c, gin.H{"data": booking})
}

func (h *BookingHandler) Create(c *gin.Context) {
	var req CreateBookingRequest
	if !bindJSON(c, &req) {
		return
	}

	paid := true
	if req.Paid != nil {
		paid = *req.Paid
	}
	booking, err := h.bookings.Create(c.Request.Context(), &models.Booking{
		TourID: req.Tour,
		UserID: req.User,
		Price:  req.Price,
		Paid:   paid,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondCreated(c, gin.H{"data": booking})
}

func (h *BookingHandler) Update(c *gin.Context) {
	var req UpdateBookingRequest
	if !bindJSON(c, &req) {
		return
	}

	booking, err := h.bookings.Update(c.Request.Context(), c.Param("id"), repo.BookingUpdate{
		TourID: req.Tour,
		UserID: req.User,
		Price:  req.Price,
		Paid:   req.Paid,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondOK(c, gin.H{"data": booking})
}

func (h *BookingHandler) Delete(c *gin.Context) {
	if err := h.bookings.Delete(c.Request.Context(), c.Param("id")); err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondNoContent(c)
}
