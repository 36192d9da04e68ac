package http

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"natours/internal/config"
	"natours/internal/http/handlers"
	"natours/internal/http/middleware"
	"natours/internal/http/views"
	"natours/internal/media"
	"natours/internal/models"
	"natours/internal/services"
	"natours/internal/utils"
)

// Multipart bodies carry images and get their own cap.
const uploadLimit = 10 << 20

type Dependencies struct {
	Config   *config.Config
	Logger   *slog.Logger
	Limiter  middleware.Limiter
	Auth     *services.AuthService
	Users    *services.UserService
	Tours    *services.TourService
	Reviews  *services.ReviewService
	Bookings *services.BookingService
	Media    *media.Store
	Health   []handlers.Pinger
}

func NewRouter(deps Dependencies) (*gin.Engine, error) {
	handlers.RegisterValidations()

	cfg := deps.Config
	errs := middleware.NewErrorRenderer(deps.Logger, cfg.IsProduction())
	sanitizer := middleware.NewSanitizer()
	cookies := utils.NewSessionCookies(cfg.CookieExpiry, cfg.IsProduction())

	tmpl, err := views.Load()
	if err != nil {
		return nil, fmt.Errorf("load views: %w", err)
	}

	router := gin.New()
	router.SetHTMLTemplate(tmpl)
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(deps.Logger))
	router.Use(errs.Recover())
	router.Use(errs.Handle())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	router.Static("/css", filepath.Join(cfg.PublicDir, "css"))
	router.Static("/js", filepath.Join(cfg.PublicDir, "js"))
	router.Static("/img", filepath.Join(cfg.PublicDir, "img"))

	router.Use(middleware.BodyLimit(cfg.BodyLimit, uploadLimit))
	router.Use(sanitizer.Middleware())
	router.NoRoute(middleware.NotFound)

	authHandler := handlers.NewAuthHandler(deps.Auth, cookies)
	userHandler := handlers.NewUserHandler(deps.Users, deps.Media)
	tourHandler := handlers.NewTourHandler(deps.Tours, deps.Media)
	reviewHandler := handlers.NewReviewHandler(deps.Reviews)
	bookingHandler := handlers.NewBookingHandler(deps.Bookings)
	viewHandler := handlers.NewViewHandler(deps.Tours, deps.Users, deps.Bookings)

	protect := middleware.Protect(deps.Auth)
	staff := middleware.RestrictTo(models.RoleAdmin, models.RoleLeadGuide)

	router.GET("/healthz", handlers.Health(deps.Health...))

	pages := router.Group("/")
	{
		optional := pages.Group("", middleware.IsLoggedIn(deps.Auth))
		optional.GET("/", viewHandler.Overview)
		optional.GET("/tour/:slug", viewHandler.Tour)
		optional.GET("/login", viewHandler.Login)

		account := pages.Group("", protect)
		account.GET("/me", viewHandler.Account)
		account.GET("/my-tours", viewHandler.MyTours)
		account.POST("/submit-user-data", viewHandler.SubmitUserData)
	}

	api := router.Group("/api/v1")
	api.Use(middleware.RateLimit(deps.Limiter, cfg.RateLimitMax, deps.Logger))

	users := api.Group("/users")
	{
		users.POST("/signup", authHandler.Signup)
		users.POST("/login", authHandler.Login)
		users.GET("/logout", authHandler.Logout)
		users.POST("/forgotPassword", authHandler.ForgotPassword)
		users.PATCH("/resetPassword/:token", authHandler.ResetPassword)

		me := users.Group("", protect)
		me.PATCH("/updateMyPassword", authHandler.UpdatePassword)
		me.GET("/me", userHandler.GetMe)
		me.PATCH("/updateMe", userHandler.UpdateMe)
		me.DELETE("/deleteMe", userHandler.DeleteMe)

		admin := me.Group("", middleware.RestrictTo(models.RoleAdmin))
		admin.GET("", userHandler.List)
		admin.POST("", userHandler.Create)
		admin.GET("/:id", userHandler.Get)
		admin.PATCH("/:id", userHandler.Update)
		admin.DELETE("/:id", userHandler.Delete)
	}

	tours := api.Group("/tours")
	{
		tours.GET("/top-5-cheap", tourHandler.TopCheap)
		tours.GET("/tour-stats", tourHandler.Stats)
		tours.GET("/monthly-plan/:year", protect,
			middleware.RestrictTo(models.RoleAdmin, models.RoleLeadGuide, models.RoleGuide), tourHandler.MonthlyPlan)
		tours.GET("/tours-within/:distance/center/:latlng/unit/:unit", tourHandler.Within)
		tours.GET("/distances/:latlng/unit/:unit", tourHandler.Distances)

		tours.GET("", tourHandler.List)
		tours.POST("", protect, staff, tourHandler.Create)
		tours.GET("/:id", tourHandler.Get)
		tours.PATCH("/:id", protect, staff, tourHandler.Update)
		tours.DELETE("/:id", protect, staff, tourHandler.Delete)

		mountReviews(tours.Group("/:id/reviews", renameParam("id", "tourId"), protect), reviewHandler)
	}

	mountReviews(api.Group("/reviews", protect), reviewHandler)

	bookings := api.Group("/bookings", protect)
	{
		bookings.GET("/checkout-session/:tourId", bookingHandler.CheckoutSession)

		crud := bookings.Group("", staff)
		crud.GET("", bookingHandler.List)
		crud.POST("", bookingHandler.Create)
		crud.GET("/:id", bookingHandler.Get)
		crud.PATCH("/:id", bookingHandler.Update)
		crud.DELETE("/:id", bookingHandler.Delete)
	}

	return router, nil
}

func mountReviews(g *gin.RouterGroup, h *handlers.ReviewHandler) {
	g.GET("", h.List)
	g.POST("", middleware.RestrictTo(models.RoleUser), h.Create)

	byID := g.Group("/:reviewId", renameParam("reviewId", "id"))
	byID.GET("", h.Get)
	byID.PATCH("", middleware.RestrictTo(models.RoleUser, models.RoleAdmin), h.Update)
	byID.DELETE("", middleware.RestrictTo(models.RoleUser, models.RoleAdmin), h.Delete)
}

// renameParam exposes path parameter from under the name to. gin requires one
// wildcard name per path segment, so /tours/:id/reviews carries the tour as :id.
func renameParam(from, to string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for i, p := range c.Params {
			if p.Key == from {
				c.Params[i].Key = to
			}
		}
		c.Next()
	}
}
