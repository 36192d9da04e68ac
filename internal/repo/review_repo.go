package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"natours/internal/models"
)

// Authors are joined only while their account is active.
const reviewSelect = `
	SELECT r.id, r.review, r.rating, r.created_at, r.tour_id::text, r.user_id::text,
		u.id::text, u.name, u.photo
	FROM reviews r
	LEFT JOIN users u ON u.id = r.user_id AND u.active`

var ReviewSchema = Schema{
	Fields: map[string]FieldSpec{
		"id":        {Column: "r.id", Kind: KindID},
		"review":    {Column: "r.review", Kind: KindText},
		"rating":    {Column: "r.rating", Kind: KindNumber, Multi: true},
		"tour":      {Column: "r.tour_id", Kind: KindID, Multi: true},
		"user":      {Column: "r.user_id", Kind: KindID},
		"createdAt": {Column: "r.created_at", Kind: KindTime},
	},
	DefaultSort: []SortField{{Field: "createdAt", Desc: true}},
}

type ReviewRepo struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

type CreateReviewParams struct {
	Review string
	Rating int
	TourID string
	UserID string
}

// ReviewUpdate holds the fields to change; nil means unchanged.
type ReviewUpdate struct {
	Review *string
	Rating *int
}

// RatingStats is the aggregate of a tour's reviews.
type RatingStats struct {
	Quantity int
	Average  float64
}

func NewReviewRepo(pool *pgxpool.Pool, timeout time.Duration) *ReviewRepo {
	return &ReviewRepo{pool: pool, timeout: timeout}
}

func (r *ReviewRepo) Create(ctx context.Context, params CreateReviewParams) (*models.Review, error) {
	if err := ValidateID("tour", params.TourID); err != nil {
		return nil, err
	}
	if err := ValidateID("user", params.UserID); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO reviews (review, rating, tour_id, user_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text
	`, params.Review, params.Rating, params.TourID, params.UserID).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &DuplicateError{Field: "review", Value: params.TourID}
		}
		if isForeignKeyViolation(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("create review: %w", err)
	}
	return r.getByID(ctx, id)
}

func (r *ReviewRepo) GetByID(ctx context.Context, id string) (*models.Review, error) {
	if err := ValidateID("id", id); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	return r.getByID(ctx, id)
}

func (r *ReviewRepo) getByID(ctx context.Context, id string) (*models.Review, error) {
	review, err := scanReview(r.pool.QueryRow(ctx, reviewSelect+` WHERE r.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get review: %w", err)
	}
	return review, nil
}

func (r *ReviewRepo) List(ctx context.Context, opts QueryOptions) ([]models.Review, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	where, args := opts.Where(ReviewSchema, 1)
	query := fmt.Sprintf(`%s
		WHERE TRUE
		%s
		%s
		%s
	`, reviewSelect, where, opts.OrderBy(ReviewSchema), opts.LimitOffset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	results := []models.Review{}
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		results = append(results, *review)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}
	return results, nil
}

// ListByTour is used to embed reviews in a single tour read.
func (r *ReviewRepo) ListByTour(ctx context.Context, tourID string) ([]models.Review, error) {
	return r.List(ctx, QueryOptions{
		Conditions: []Condition{{Field: "tour", Values: []any{tourID}}},
		Sort:       ReviewSchema.DefaultSort,
		Page:       DefaultPage,
		Limit:      DefaultLimit,
	})
}

func (r *ReviewRepo) Update(ctx context.Context, id string, upd ReviewUpdate) (*models.Review, error) {
	if err := ValidateID("id", id); err != nil {
		return nil, err
	}

	var sets []string
	var args []any
	if upd.Review != nil {
		args = append(args, *upd.Review)
		sets = append(sets, fmt.Sprintf("review = $%d", len(args)))
	}
	if upd.Rating != nil {
		args = append(args, *upd.Rating)
		sets = append(sets, fmt.Sprintf("rating = $%d", len(args)))
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	args = append(args, id)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd, err := r.pool.Exec(ctx, fmt.Sprintf(`UPDATE reviews SET %s WHERE id = $%d`,
		strings.Join(sets, ", "), len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("update review: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.getByID(ctx, id)
}

// Delete removes the review and reports the tour it belonged to.
func (r *ReviewRepo) Delete(ctx context.Context, id string) (string, error) {
	if err := ValidateID("id", id); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var tourID string
	err := r.pool.QueryRow(ctx, `DELETE FROM reviews WHERE id = $1 RETURNING tour_id::text`, id).Scan(&tourID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("delete review: %w", err)
	}
	return tourID, nil
}

// Stats aggregates the reviews of tourID.
func (r *ReviewRepo) Stats(ctx context.Context, tourID string) (RatingStats, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var s RatingStats
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)::int, COALESCE(AVG(rating), 0)::double precision
		FROM reviews
		WHERE tour_id = $1
	`, tourID).Scan(&s.Quantity, &s.Average)
	if err != nil {
		return RatingStats{}, fmt.Errorf("review stats: %w", err)
	}
	return s, nil
}

func scanReview(row pgx.Row) (*models.Review, error) {
	var (
		review   models.Review
		authorID *string
		name     *string
		photo    *string
	)
	if err := row.Scan(
		&review.ID,
		&review.Review,
		&review.Rating,
		&review.CreatedAt,
		&review.TourID,
		&review.UserID,
		&authorID,
		&name,
		&photo,
	); err != nil {
		return nil, err
	}
	if authorID != nil {
		review.User = &models.ReviewAuthor{ID: *authorID, Name: deref(name), Photo: deref(photo)}
	}
	return &review, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
