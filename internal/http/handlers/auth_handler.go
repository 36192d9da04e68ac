package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"natours/internal/services"
	"natours/internal/utils"
)

type AuthHandler struct {
	auth    *services.AuthService
	cookies *utils.SessionCookies
}

type SignupRequest struct {
	Name            string `json:"name" binding:"required,max=100"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" binding:"required,eqfield=Password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Password        string `json:"password" binding:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" binding:"required,eqfield=Password"`
}

type UpdatePasswordRequest struct {
	PasswordCurrent string `json:"passwordCurrent" binding:"required"`
	Password        string `json:"password" binding:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" binding:"required,eqfield=Password"`
}

func NewAuthHandler(auth *services.AuthService, cookies *utils.SessionCookies) *AuthHandler {
	return &AuthHandler{auth: auth, cookies: cookies}
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req SignupRequest
	if !bindJSON(c, &req) {
		return
	}

	sess, err := h.auth.Signup(c.Request.Context(), services.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	}, origin(c)+"/me")
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	sendSession(c, h.cookies, http.StatusCreated, sess)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	sess, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	sendSession(c, h.cookies, http.StatusOK, sess)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	h.cookies.Clear(c)
	c.JSON(http.StatusOK, utils.SuccessResponse{Status: "success"})
}

func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	base := origin(c) + "/api/v1/users/resetPassword/"
	err := h.auth.ForgotPassword(c.Request.Context(), req.Email, func(token string) string {
		return base + token
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.RespondMessage(c, "Token sent to email!")
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	sess, err := h.auth.ResetPassword(c.Request.Context(), c.Param("token"), req.Password)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	sendSession(c, h.cookies, http.StatusOK, sess)
}

func (h *AuthHandler) UpdatePassword(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req UpdatePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	sess, err := h.auth.UpdatePassword(c.Request.Context(), user, req.PasswordCurrent, req.Password)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	sendSession(c, h.cookies, http.StatusOK, sess)
}
