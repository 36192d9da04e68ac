package handlers

import (
	"github.com/gin-gonic/gin"

	"natours/internal/repo"
	"natours/internal/services"
	"natours/internal/utils"
)

type ReviewHandler struct {
	reviews *services.ReviewService
}

// CreateReviewRequest may omit tour and user; they default to the nested
// route's tour and the caller.
type CreateReviewRequest struct {
	Review string `json:"review" binding:"required"`
	Rating int    `json:"rating" binding:"required,min=1,max=5"`
	Tour   string `json:"tour"`
	User   string `json:"user"`
}

type UpdateReviewRequest struct {
	Review *string `json:"review" binding:"omitempty,min=1"`
	Rating *int    `json:"rating" binding:"omitempty,min=1,max=5"`
}

func NewReviewHandler(reviews *services.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

func (h *ReviewHandler) List(c *gin.Context) {
	values := c.Request.URL.Query()
	if tourID := c.Param("tourId"); tourID != "" {
		values.Set("tour", tourID)
	}
	opts, err := repo.ParseQuery(values, repo.ReviewSchema)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	reviews, err := h.reviews.List(c.Request.Context(), opts)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	respondList(c, reviews, opts.Fields)
}

func (h *ReviewHandler) Get(c *gin.Context) {
	review, err := h.reviews.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondOK(c, gin.H{"data": review})
}

func (h *ReviewHandler) Create(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req CreateReviewRequest
	if !bindJSON(c, &req) {
		return
	}

	params := repo.CreateReviewParams{
		Review: req.Review,
		Rating: req.Rating,
		TourID: req.Tour,
		UserID: req.User,
	}
	if params.TourID == "" {
		params.TourID = c.Param("tourId")
	}
	if params.UserID == "" {
		params.UserID = user.ID
	}
	if params.TourID == "" {
		utils.RespondError(c, utils.BadRequest("Review must belong to a tour."))
		return
	}

	review, err := h.reviews.Create(c.Request.Context(), params)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondCreated(c, gin.H{"data": review})
}

func (h *ReviewHandler) Update(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req UpdateReviewRequest
	if !bindJSON(c, &req) {
		return
	}

	review, err := h.reviews.Update(c.Request.Context(), user, c.Param("id"),
		repo.ReviewUpdate{Review: req.Review, Rating: req.Rating})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondOK(c, gin.H{"data": review})
}

func (h *ReviewHandler) Delete(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.reviews.Delete(c.Request.Context(), user, c.Param("id")); err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondNoContent(c)
}
