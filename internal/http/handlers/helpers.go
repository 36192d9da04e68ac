package handlers

import (
	"errors"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"natours/internal/http/middleware"
	"natours/internal/models"
	"natours/internal/repo"
	"natours/internal/services"
	"natours/internal/utils"
)

var registerOnce sync.Once

// RegisterValidations adds the custom tags used by request structs and makes
// validation messages use JSON field names.
func RegisterValidations() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				name, _, _ = strings.Cut(fld.Tag.Get("form"), ",")
			}
			return name
		})
		_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
			return models.Role(fl.Field().String()).Valid()
		})
	})
}

// bindJSON binds the body into req and reports failures; it returns false
// when the handler should stop.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		if errors.Is(err, io.EOF) {
			utils.RespondError(c, utils.BadRequest("Request body is required"))
			return false
		}
		utils.RespondValidationError(c, err)
		return false
	}
	return true
}

func queryOptions(c *gin.Context, schema repo.Schema) (repo.QueryOptions, bool) {
	opts, err := repo.ParseQuery(c.Request.URL.Query(), schema)
	if err != nil {
		utils.RespondError(c, err)
		return repo.QueryOptions{}, false
	}
	return opts, true
}

// origin is the scheme and host the client used to reach us.
func origin(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme, _, _ = strings.Cut(proto, ",")
	}
	return scheme + "://" + c.Request.Host
}

func respondList[T any](c *gin.Context, items []T, fields []string) {
	data, err := utils.SelectFields(items, fields)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondList(c, gin.H{"data": data}, len(items))
}

// sendSession sets the session cookie and answers with the token and user.
func sendSession(c *gin.Context, cookies *utils.SessionCookies, status int, sess *services.Session) {
	cookies.Set(c, sess.Token)
	c.JSON(status, utils.SuccessResponse{
		Status: "success",
		Token:  sess.Token,
		Data:   gin.H{"user": sess.User},
	})
}

func requireUser(c *gin.Context) (*models.User, bool) {
	user := middleware.CurrentUser(c)
	if user == nil {
		utils.RespondError(c, utils.Unauthenticated(utils.CodeUnauthenticated,
			"You are not logged in! Please log in to get access."))
		return nil, false
	}
	return user, true
}
