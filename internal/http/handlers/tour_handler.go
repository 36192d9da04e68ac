package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"natours/internal/media"
	"natours/internal/models"
	"natours/internal/repo"
	"natours/internal/services"
	"natours/internal/utils"
)

const maxTourImages = 3

type TourHandler struct {
	tours *services.TourService
	media *media.Store
}

type CreateTourRequest struct {
	Name           string            `json:"name" binding:"required,min=10,max=40"`
	Duration       int               `json:"duration" binding:"required,gt=0"`
	MaxGroupSize   int               `json:"maxGroupSize" binding:"required,gt=0"`
	Difficulty     string            `json:"difficulty" binding:"required,oneof=easy medium difficult"`
	RatingsAverage *float64          `json:"ratingsAverage" binding:"omitempty,gte=1,lte=5"`
	Price          float64           `json:"price" binding:"required,gt=0"`
	PriceDiscount  *float64          `json:"priceDiscount" binding:"omitempty,gte=0"`
	Summary        string            `json:"summary" binding:"required"`
	Description    string            `json:"description"`
	ImageCover     string            `json:"imageCover" binding:"required"`
	Images         []string          `json:"images"`
	StartDates     []time.Time       `json:"startDates"`
	SecretTour     bool              `json:"secretTour"`
	StartLocation  *models.Location  `json:"startLocation"`
	Locations      []models.Location `json:"locations"`
	Guides         []string          `json:"guides"`
}

// UpdateTourRequest is bound from JSON, or from a multipart form when images
// are uploaded. Structured fields are only accepted as JSON.
type UpdateTourRequest struct {
	Name           *string            `json:"name" form:"name" binding:"omitempty,min=10,max=40"`
	Duration       *int               `json:"duration" form:"duration" binding:"omitempty,gt=0"`
	MaxGroupSize   *int               `json:"maxGroupSize" form:"maxGroupSize" binding:"omitempty,gt=0"`
	Difficulty     *string            `json:"difficulty" form:"difficulty" binding:"omitempty,oneof=easy medium difficult"`
	RatingsAverage *float64           `json:"ratingsAverage" form:"ratingsAverage" binding:"omitempty,gte=1,lte=5"`
	Price          *float64           `json:"price" form:"price" binding:"omitempty,gt=0"`
	PriceDiscount  *float64           `json:"priceDiscount" form:"priceDiscount" binding:"omitempty,gte=0"`
	Summary        *string            `json:"summary" form:"summary"`
	Description    *string            `json:"description" form:"description"`
	ImageCover     *string            `json:"imageCover" form:"-"`
	Images         *[]string          `json:"images" form:"-"`
	StartDates     *[]time.Time       `json:"startDates" form:"-"`
	SecretTour     *bool              `json:"secretTour" form:"secretTour"`
	StartLocation  *models.Location   `json:"startLocation" form:"-"`
	Locations      *[]models.Location `json:"locations" form:"-"`
	Guides         *[]string          `json:"guides" form:"-"`
}

func NewTourHandler(tours *services.TourService, store *media.Store) *TourHandler {
	return &TourHandler{tours: tours, media: store}
}

func (h *TourHandler) List(c *gin.Context) {
	opts, ok := queryOptions(c, repo.TourSchema)
	if !ok {
		return
	}
	h.list(c, opts)
}

// TopCheap is GET / with the top-5-cheap query forced.
func (h *TourHandler) TopCheap(c *gin.Context) {
	opts, err := repo.ParseQuery(services.TopCheapQuery(), repo.TourSchema)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	h.list(c, opts)
}

func (h *TourHandler) list(c *gin.Context, opts repo.QueryOptions) {
	tours, err := h.tours.List(c.Request.Context(), opts)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	respondList(c, tours, opts.Fields)
}

func (h *TourHandler) Get(c *gin.Context) {
	tour, err := h.tours.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondOK(c, gin.H{"data": tour})
}

func (h *TourHandler) Create(c *gin.Context) {
	var req CreateTourRequest
	if !bindJSON(c, &req) {
		return
	}

	tour := &models.Tour{
		Name:          req.Name,
		Duration:      req.Duration,
		MaxGroupSize:  req.MaxGroupSize,
		Difficulty:    models.Difficulty(req.Difficulty),
		Price:         req.Price,
		PriceDiscount: req.PriceDiscount,
		Summary:       strings.TrimSpace(req.Summary),
		Description:   strings.TrimSpace(req.Description),
		ImageCover:    req.ImageCover,
		Images:        req.Images,
		StartDates:    req.StartDates,
		SecretTour:    req.SecretTour,
		StartLocation: req.StartLocation,
		Locations:     req.Locations,
		GuideIDs:      req.Guides,
	}
	if req.RatingsAverage != nil {
		tour.RatingsAverage = *req.RatingsAverage
	}

	created, err := h.tours.Create(c.Request.Context(), tour)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondCreated(c, gin.H{"data": created})
}

func (h *TourHandler) Update(c *gin.Context) {
	id := c.Param("id")
	multipartBody := strings.HasPrefix(c.ContentType(), "multipart/")

	var req UpdateTourRequest
	var err error
	if multipartBody {
		err = c.ShouldBind(&req)
	} else {
		err = c.ShouldBindJSON(&req)
	}
	if err != nil {
		if strings.Contains(err.Error(), "EOF") {
			utils.RespondError(c, utils.BadRequest("Request body is required"))
			return
		}
		utils.RespondValidationError(c, err)
		return
	}

	upd := repo.TourUpdate{
		Name:           req.Name,
		Duration:       req.Duration,
		MaxGroupSize:   req.MaxGroupSize,
		RatingsAverage: req.RatingsAverage,
		Price:          req.Price,
		PriceDiscount:  req.PriceDiscount,
		Summary:        req.Summary,
		Description:    req.Description,
		ImageCover:     req.ImageCover,
		Images:         req.Images,
		StartDates:     req.StartDates,
		SecretTour:     req.SecretTour,
		StartLocation:  req.StartLocation,
		Locations:      req.Locations,
		GuideIDs:       req.Guides,
	}
	if req.Difficulty != nil {
		d := models.Difficulty(*req.Difficulty)
		upd.Difficulty = &d
	}

	if multipartBody {
		if err := h.saveImages(c, id, &upd); err != nil {
			utils.RespondError(c, err)
			return
		}
	}

	tour, err := h.tours.Update(c.Request.Context(), id, upd)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondOK(c, gin.H{"data": tour})
}

// saveImages resizes an uploaded imageCover and up to three images.
func (h *TourHandler) saveImages(c *gin.Context, tourID string, upd *repo.TourUpdate) error {
	if err := repo.ValidateID("id", tourID); err != nil {
		return err
	}
	form, err := c.MultipartForm()
	if err != nil {
		return utils.BadRequest("Invalid multipart form.")
	}

	if covers := form.File["imageCover"]; len(covers) > 0 {
		name, err := h.saveImage(covers[0], tourID, "cover")
		if err != nil {
			return err
		}
		upd.ImageCover = &name
	}

	files := form.File["images"]
	if len(files) > maxTourImages {
		return utils.BadRequest("Too many images. Please upload at most 3.")
	}
	if len(files) > 0 {
		names := make([]string, 0, len(files))
		for i, file := range files {
			name, err := h.saveImage(file, tourID, strconv.Itoa(i+1))
			if err != nil {
				return err
			}
			names = append(names, name)
		}
		upd.Images = &names
	}
	return nil
}

func (h *TourHandler) saveImage(file *multipart.FileHeader, tourID, suffix string) (string, error) {
	if !media.IsImage(file.Header.Get("Content-Type")) {
		return "", utils.BadRequest("Not an image! Please upload only images.")
	}
	f, err := file.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	name, err := h.media.SaveTourImage(f, tourID, suffix)
	if errors.Is(err, media.ErrNotImage) {
		return "", utils.BadRequest("Not an image! Please upload only images.")
	}
	return name, err
}

func (h *TourHandler) Delete(c *gin.Context) {
	if err := h.tours.Delete(c.Request.Context(), c.Param("id")); err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondNoContent(c)
}

func (h *TourHandler) Stats(c *gin.Context) {
	stats, err := h.tours.Stats(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondOK(c, gin.H{"stats": stats})
}

func (h *TourHandler) MonthlyPlan(c *gin.Context) {
	plan, err := h.tours.MonthlyPlan(c.Request.Context(), c.Param("year"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondOK(c, gin.H{"plan": plan})
}

func (h *TourHandler) Within(c *gin.Context) {
	unit, ok := distanceUnit(c)
	if !ok {
		return
	}
	tours, err := h.tours.Within(c.Request.Context(), c.Param("distance"), c.Param("latlng"), unit)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondList(c, gin.H{"data": tours}, len(tours))
}

func (h *TourHandler) Distances(c *gin.Context) {
	unit, ok := distanceUnit(c)
	if !ok {
		return
	}
	distances, err := h.tours.Distances(c.Request.Context(), c.Param("latlng"), unit)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, utils.SuccessResponse{Status: "success", Data: gin.H{"data": distances}})
}

func distanceUnit(c *gin.Context) (string, bool) {
	unit := c.Param("unit")
	if unit != "mi" && unit != "km" {
		utils.RespondError(c, utils.BadRequest("Please provide a unit of mi or km."))
		return "", false
	}
	return unit, true
}
