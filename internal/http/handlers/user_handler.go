package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"natours/internal/media"
	"natours/internal/models"
	"natours/internal/repo"
	"natours/internal/services"
	"natours/internal/utils"
)

type UserHandler struct {
	users *services.UserService
	media *media.Store
}

// UpdateMeRequest is bound from JSON or from a multipart form carrying a photo.
// The password fields exist only to be rejected.
type UpdateMeRequest struct {
	Name            *string `json:"name" form:"name" binding:"omitempty,min=1,max=100"`
	Email           *string `json:"email" form:"email" binding:"omitempty,email"`
	Password        string  `json:"password" form:"password"`
	PasswordConfirm string  `json:"passwordConfirm" form:"passwordConfirm"`
}

type UpdateUserRequest struct {
	Name  *string `json:"name" binding:"omitempty,min=1,max=100"`
	Email *string `json:"email" binding:"omitempty,email"`
	Photo *string `json:"photo"`
	Role  *string `json:"role" binding:"omitempty,role"`
}

func NewUserHandler(users *services.UserService, store *media.Store) *UserHandler {
	return &UserHandler{users: users, media: store}
}

func (h *UserHandler) GetMe(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	utils.RespondOK(c, gin.H{"data": user})
}

func (h *UserHandler) UpdateMe(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req UpdateMeRequest
	if err := c.ShouldBind(&req); err != nil {
		if errors.Is(err, http.ErrNotMultipart) || strings.Contains(err.Error(), "EOF") {
			utils.RespondError(c, utils.BadRequest("Request body is required"))
			return
		}
		utils.RespondValidationError(c, err)
		return
	}
	if req.Password != "" || req.PasswordConfirm != "" {
		utils.RespondError(c, utils.BadRequest("This route is not for password updates. Please use /updateMyPassword."))
		return
	}

	upd := services.ProfileUpdate{Name: req.Name, Email: req.Email}
	if file, err := c.FormFile("photo"); err == nil {
		name, err := h.savePhoto(file, user.ID)
		if err != nil {
			utils.RespondError(c, err)
			return
		}
		upd.Photo = &name
	}

	updated, err := h.users.UpdateProfile(c.Request.Context(), user.ID, upd)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.RespondOK(c, gin.H{"user": updated})
}

func (h *UserHandler) savePhoto(file *multipart.FileHeader, userID string) (string, error) {
	if !media.IsImage(file.Header.Get("Content-Type")) {
		return "", utils.BadRequest("Not an image! Please upload only images.")
	}
	f, err := file.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	name, err := h.media.SaveUserPhoto(f, userID)
	if errors.Is(err, media.ErrNotImage) {
		return "", utils.BadRequest("Not an image! Please upload only images.")
	}
	return name, err
}

func (h *UserHandler) DeleteMe(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.users.Deactivate(c.Request.Context(), user.ID); err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondNoContent(c)
}

func (h *UserHandler) List(c *gin.Context) {
	opts, ok := queryOptions(c, repo.UserSchema)
	if !ok {
		return
	}
	users, err := h.users.List(c.Request.Context(), opts)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	respondList(c, users, opts.Fields)
}

func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondOK(c, gin.H{"data": user})
}

// Create is not offered; accounts are made through signup.
func (h *UserHandler) Create(c *gin.Context) {
	utils.RespondError(c, utils.NewAppError(http.StatusInternalServerError, utils.CodeInternal,
		"This route is not defined! Please use /signup instead", nil))
}

func (h *UserHandler) Update(c *gin.Context) {
	var req UpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	upd := repo.UserUpdate{Name: req.Name, Email: req.Email, Photo: req.Photo}
	if req.Role != nil {
		role := models.Role(*req.Role)
		upd.Role = &role
	}

	user, err := h.users.Update(c.Request.Context(), c.Param("id"), upd)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondOK(c, gin.H{"data": user})
}

func (h *UserHandler) Delete(c *gin.Context) {
	if err := h.users.Delete(c.Request.Context(), c.Param("id")); err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondNoContent(c)
}
