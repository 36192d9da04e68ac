package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"natours/internal/http/middleware"
	"natours/internal/repo"
	"natours/internal/services"
	"natours/internal/utils"
)

// ViewHandler renders the server-side pages.
type ViewHandler struct {
	tours    *services.TourService
	users    *services.UserService
	bookings *services.BookingService
}

type UserDataForm struct {
	Name  string `form:"name" binding:"required,max=100"`
	Email string `form:"email" binding:"required,email"`
}

func NewViewHandler(tours *services.TourService, users *services.UserService, bookings *services.BookingService) *ViewHandler {
	return &ViewHandler{tours: tours, users: users, bookings: bookings}
}

// Overview lists all tours. A checkout success redirect lands here first with
// tour, user and price in the query; the booking is stored and the query dropped.
// Nothing authenticates that query: anyone who knows the URL shape can book.
func (h *ViewHandler) Overview(c *gin.Context) {
	tour, user, price := c.Query("tour"), c.Query("user"), c.Query("price")
	if tour != "" && user != "" && price != "" {
		if _, err := h.bookings.CreateFromCheckout(c.Request.Context(), tour, user, price); err != nil {
			utils.RespondError(c, err)
			return
		}
		c.Redirect(http.StatusFound, c.Request.URL.Path)
		return
	}

	opts, err := repo.ParseQuery(nil, repo.TourSchema)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	tours, err := h.tours.List(c.Request.Context(), opts)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	h.render(c, http.StatusOK, "overview", gin.H{"Title": "All Tours", "Tours": tours})
}

func (h *ViewHandler) Tour(c *gin.Context) {
	tour, err := h.tours.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			err = utils.NotFound("There is no tour with that name.")
		}
		utils.RespondError(c, err)
		return
	}
	h.render(c, http.StatusOK, "tour", gin.H{"Title": tour.Name + " Tour", "Tour": tour})
}

func (h *ViewHandler) Login(c *gin.Context) {
	h.render(c, http.StatusOK, "login", gin.H{"Title": "Log into your account"})
}

func (h *ViewHandler) Account(c *gin.Context) {
	h.render(c, http.StatusOK, "account", gin.H{"Title": "Your account"})
}

func (h *ViewHandler) MyTours(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	tours, err := h.bookings.BookedTours(c.Request.Context(), user.ID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	h.render(c, http.StatusOK, "overview", gin.H{"Title": "My Tours", "Tours": tours})
}

// SubmitUserData updates name and email from the account page form.
func (h *ViewHandler) SubmitUserData(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var form UserDataForm
	if err := c.ShouldBind(&form); err != nil {
		utils.RespondValidationError(c, err)
		return
	}

	updated, err := h.users.UpdateProfile(c.Request.Context(), user.ID, services.ProfileUpdate{
		Name:  &form.Name,
		Email: &form.Email,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	h.render(c, http.StatusOK, "account", gin.H{"Title": "Your account", "User": updated})
}

// render adds the current user unless data already carries one.
func (h *ViewHandler) render(c *gin.Context, status int, name string, data gin.H) {
	if _, ok := data["User"]; !ok {
		data["User"] = middleware.CurrentUser(c)
	}
	c.HTML(status, name, data)
}
