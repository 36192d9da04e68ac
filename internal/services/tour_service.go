package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/gosimple/slug"

	"natours/internal/models"
	"natours/internal/repo"
	"natours/internal/utils"
)

type TourStore interface {
	List(ctx context.Context, opts repo.QueryOptions) ([]models.Tour, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Tour, error)
	GetByID(ctx context.Context, id string) (*models.Tour, error)
	GetBySlug(ctx context.Context, slug string) (*models.Tour, error)
	Create(ctx context.Context, t *models.Tour) (*models.Tour, error)
	Update(ctx context.Context, id string, upd repo.TourUpdate) (*models.Tour, error)
	UpdateRatings(ctx context.Context, id string, quantity int, average float64) error
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) ([]models.TourStats, error)
	MonthlyPlan(ctx context.Context, year int) ([]models.MonthlyPlan, error)
	Within(ctx context.Context, lat, lng, radius float64) ([]models.Tour, error)
	Distances(ctx context.Context, lat, lng, multiplier float64) ([]models.TourDistance, error)
}

type GuideLookup interface {
	ListByIDs(ctx context.Context, ids []string) ([]models.User, error)
}

type TourReviewLister interface {
	ListByTour(ctx context.Context, tourID string) ([]models.Review, error)
}

// Earth radius per distance unit, and meters-to-unit multipliers.
const (
	earthRadiusMiles = 3963.2
	earthRadiusKm    = 6378.1
	metersToMiles    = 0.000621371
	metersToKm       = 0.001
)

type TourService struct {
	tours   TourStore
	guides  GuideLookup
	reviews TourReviewLister
}

func NewTourService(tours TourStore, guides GuideLookup, reviews TourReviewLister) *TourService {
	return &TourService{tours: tours, guides: guides, reviews: reviews}
}

// TopCheapQuery is the query behind the top-5-cheap alias.
func TopCheapQuery() url.Values {
	return url.Values{
		"limit":  {"5"},
		"sort":   {"-ratingsAverage,price"},
		"fields": {"name,price,ratingsAverage,summary,difficulty"},
	}
}

func (s *TourService) List(ctx context.Context, opts repo.QueryOptions) ([]models.Tour, error) {
	return s.tours.List(ctx, opts)
}

// Get returns the tour with its guides and reviews.
func (s *TourService) Get(ctx context.Context, id string) (*models.Tour, error) {
	tour, err := s.tours.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return tour, s.populate(ctx, tour)
}

func (s *TourService) GetBySlug(ctx context.Context, slug string) (*models.Tour, error) {
	tour, err := s.tours.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return tour, s.populate(ctx, tour)
}

func (s *TourService) populate(ctx context.Context, tour *models.Tour) error {
	guides, err := s.guides.ListByIDs(ctx, tour.GuideIDs)
	if err != nil {
		return err
	}
	reviews, err := s.reviews.ListByTour(ctx, tour.ID)
	if err != nil {
		return err
	}
	tour.Guides = guides
	tour.Reviews = reviews
	return nil
}

func (s *TourService) Create(ctx context.Context, t *models.Tour) (*models.Tour, error) {
	if err := checkDiscount(t.PriceDiscount, t.Price); err != nil {
		return nil, err
	}
	t.Slug = slug.Make(t.Name)
	return s.tours.Create(ctx, t)
}

func (s *TourService) Update(ctx context.Context, id string, upd repo.TourUpdate) (*models.Tour, error) {
	// A discount must stay below the price whichever of the two changes.
	if upd.PriceDiscount != nil || upd.Price != nil {
		discount, price := upd.PriceDiscount, upd.Price
		if discount == nil || price == nil {
			current, err := s.tours.GetByID(ctx, id)
			if err != nil {
				return nil, err
			}
			if discount == nil {
				discount = current.PriceDiscount
			}
			if price == nil {
				price = &current.Price
			}
		}
		if err := checkDiscount(discount, *price); err != nil {
			return nil, err
		}
	}
	if upd.Name != nil {
		sl := slug.Make(*upd.Name)
		upd.Slug = &sl
	}
	return s.tours.Update(ctx, id, upd)
}

func (s *TourService) Delete(ctx context.Context, id string) error {
	return s.tours.Delete(ctx, id)
}

func (s *TourService) Stats(ctx context.Context) ([]models.TourStats, error) {
	return s.tours.Stats(ctx)
}

func (s *TourService) MonthlyPlan(ctx context.Context, year string) ([]models.MonthlyPlan, error) {
	y, err := strconv.Atoi(year)
	if err != nil || y < 1 || y > 9999 {
		return nil, utils.BadRequest(fmt.Sprintf("Invalid year: %s.", year))
	}
	return s.tours.MonthlyPlan(ctx, y)
}

// Within finds tours starting within distance (in unit) of latlng.
func (s *TourService) Within(ctx context.Context, distance, latlng, unit string) ([]models.Tour, error) {
	lat, lng, err := ParseLatLng(latlng)
	if err != nil {
		return nil, err
	}
	d, perr := strconv.ParseFloat(distance, 64)
	if perr != nil || d < 0 {
		return nil, utils.BadRequest(fmt.Sprintf("Invalid distance: %s.", distance))
	}

	radius := d / earthRadiusKm
	if unit == "mi" {
		radius = d / earthRadiusMiles
	}
	return s.tours.Within(ctx, lat, lng, radius)
}

func (s *TourService) Distances(ctx context.Context, latlng, unit string) ([]models.TourDistance, error) {
	lat, lng, err := ParseLatLng(latlng)
	if err != nil {
		return nil, err
	}

	multiplier := metersToKm
	if unit == "mi" {
		multiplier = metersToMiles
	}
	return s.tours.Distances(ctx, lat, lng, multiplier)
}

// ParseLatLng parses "lat,lng".
func ParseLatLng(latlng string) (float64, float64, error) {
	bad := utils.BadRequest("Please provide latitude and longitude in the format lat,lng.")

	rawLat, rawLng, ok := strings.Cut(latlng, ",")
	if !ok {
		return 0, 0, bad
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(rawLat), 64)
	if err != nil || lat < -90 || lat > 90 {
		return 0, 0, bad
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(rawLng), 64)
	if err != nil || lng < -180 || lng > 180 {
		return 0, 0, bad
	}
	return lat, lng, nil
}

func checkDiscount(discount *float64, price float64) error {
	if discount != nil && *discount >= price {
		return utils.BadRequest(fmt.Sprintf("Discount price (%v) should be below regular price", *discount))
	}
	return nil
}
