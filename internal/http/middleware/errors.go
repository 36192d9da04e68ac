package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"natours/internal/utils"
)

const genericViewMessage = "Please try again later."

// ErrorRenderer turns the errors handlers attach with utils.RespondError into
// responses: JSON under /api, the error view elsewhere.
type ErrorRenderer struct {
	log        *slog.Logger
	production bool
}

func NewErrorRenderer(log *slog.Logger, production bool) *ErrorRenderer {
	return &ErrorRenderer{log: log, production: production}
}

// Handle renders the last error of the request once the chain has run.
func (r *ErrorRenderer) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		r.render(c, c.Errors.Last().Err)
	}
}

// Recover converts panics into a rendered internal error.
func (r *ErrorRenderer) Recover() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		err, ok := recovered.(error)
		if !ok {
			err = fmt.Errorf("panic: %v", recovered)
		}
		c.Abort()
		if !c.Writer.Written() {
			r.render(c, utils.Internal(err))
		}
	})
}

// NotFound answers requests that matched no route.
func NotFound(c *gin.Context) {
	utils.RespondError(c, utils.NotFound(fmt.Sprintf("Can't find %s on this server!", c.Request.URL.Path)))
}

func (r *ErrorRenderer) render(c *gin.Context, err error) {
	appErr := utils.Normalize(err)

	if !appErr.Operational || appErr.Status >= http.StatusInternalServerError {
		r.log.Error("request failed",
			"status", appErr.Status,
			"code", appErr.Code,
			"error", err,
			"path", c.Request.URL.Path,
			"request_id", GetRequestID(c),
		)
	}

	if strings.HasPrefix(c.Request.URL.Path, "/api") {
		c.JSON(appErr.Status, r.apiBody(appErr))
		return
	}

	message := appErr.Message
	if r.production && !appErr.Operational {
		message = genericViewMessage
	}
	c.HTML(appErr.Status, "error", gin.H{
		"Title":   "Something went wrong!",
		"Message": message,
		"User":    CurrentUser(c),
	})
}

func (r *ErrorRenderer) apiBody(appErr *utils.AppError) utils.ErrorResponse {
	body := utils.ErrorResponse{Status: appErr.StatusText(), Message: appErr.Message}
	if r.production {
		return body
	}

	detail := gin.H{"statusCode": appErr.Status, "code": appErr.Code, "isOperational": appErr.Operational}
	if appErr.Details != nil {
		detail["details"] = appErr.Details
	}
	if cause := errors.Unwrap(appErr); cause != nil {
		detail["cause"] = cause.Error()
	}
	body.Error = detail
	body.Stack = appErr.Stack()
	return body
}
