package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type SuccessResponse struct {
	Status  string      `json:"status"`
	Results *int        `json:"results,omitempty"`
	Token   string      `json:"token,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type ErrorResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Error   interface{} `json:"error,omitempty"`
	Stack   string      `json:"stack,omitempty"`
}

// RespondError hands err to the error middleware and stops the chain.
func RespondError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func RespondValidationError(c *gin.Context, err error) {
	RespondError(c, Normalize(err))
}

func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{Status: "success", Data: data})
}

func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, SuccessResponse{Status: "success", Data: data})
}

func RespondList(c *gin.Context, data interface{}, results int) {
	c.JSON(http.StatusOK, SuccessResponse{Status: "success", Results: &results, Data: data})
}

func RespondMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, SuccessResponse{Status: "success", Message: message})
}

func RespondNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
