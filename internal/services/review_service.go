package services

import (
	"context"

	"natours/internal/models"
	"natours/internal/repo"
	"natours/internal/utils"
)

type ReviewStore interface {
	List(ctx context.Context, opts repo.QueryOptions) ([]models.Review, error)
	ListByTour(ctx context.Context, tourID string) ([]models.Review, error)
	GetByID(ctx context.Context, id string) (*models.Review, error)
	Create(ctx context.Context, params repo.CreateReviewParams) (*models.Review, error)
	Update(ctx context.Context, id string, upd repo.ReviewUpdate) (*models.Review, error)
	Delete(ctx context.Context, id string) (string, error)
	Stats(ctx context.Context, tourID string) (repo.RatingStats, error)
}

type RatingsWriter interface {
	UpdateRatings(ctx context.Context, id string, quantity int, average float64) error
}

// ReviewService keeps each tour's rating aggregate in step with its reviews.
type ReviewService struct {
	reviews ReviewStore
	tours   RatingsWriter
}

func NewReviewService(reviews ReviewStore, tours RatingsWriter) *ReviewService {
	return &ReviewService{reviews: reviews, tours: tours}
}

func (s *ReviewService) List(ctx context.Context, opts repo.QueryOptions) ([]models.Review, error) {
	return s.reviews.List(ctx, opts)
}

func (s *ReviewService) Get(ctx context.Context, id string) (*models.Review, error) {
	return s.reviews.GetByID(ctx, id)
}

func (s *ReviewService) Create(ctx context.Context, params repo.CreateReviewParams) (*models.Review, error) {
	review, err := s.reviews.Create(ctx, params)
	if err != nil {
		return nil, err
	}
	return review, s.RecomputeRatings(ctx, review.TourID)
}

// Update changes a review. Only its author or an admin may change it.
func (s *ReviewService) Update(ctx context.Context, actor *models.User, id string, upd repo.ReviewUpdate) (*models.Review, error) {
	if err := s.authorize(ctx, actor, id); err != nil {
		return nil, err
	}
	review, err := s.reviews.Update(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	if upd.Rating == nil {
		return review, nil
	}
	return review, s.RecomputeRatings(ctx, review.TourID)
}

func (s *ReviewService) Delete(ctx context.Context, actor *models.User, id string) error {
	if err := s.authorize(ctx, actor, id); err != nil {
		return err
	}
	tourID, err := s.reviews.Delete(ctx, id)
	if err != nil {
		return err
	}
	return s.RecomputeRatings(ctx, tourID)
}

func (s *ReviewService) authorize(ctx context.Context, actor *models.User, id string) error {
	if actor.Role == models.RoleAdmin {
		return nil
	}
	review, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if review.UserID != actor.ID {
		return utils.Forbidden()
	}
	return nil
}

// RecomputeRatings stores the review count and mean rating of a tour. A tour
// without reviews goes back to the default average.
func (s *ReviewService) RecomputeRatings(ctx context.Context, tourID string) error {
	stats, err := s.reviews.Stats(ctx, tourID)
	if err != nil {
		return err
	}
	if stats.Quantity == 0 {
		return s.tours.UpdateRatings(ctx, tourID, 0, models.DefaultRatingsAverage)
	}
	return s.tours.UpdateRatings(ctx, tourID, stats.Quantity, stats.Average)
}
