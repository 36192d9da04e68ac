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

const tourColumns = `id, name, slug, duration, max_group_size, difficulty, ratings_average,
		ratings_quantity, price, price_discount, summary, description, image_cover, images,
		start_dates, secret_tour, start_location, locations, guides::text[], created_at`

// Start locations are GeoJSON points, coordinates [lng, lat].
const (
	startLng = `(start_location->'coordinates'->>0)::double precision`
	startLat = `(start_location->'coordinates'->>1)::double precision`
)

var TourSchema = Schema{
	Fields: map[string]FieldSpec{
		"id":              {Column: "id", Kind: KindID},
		"name":            {Column: "name", Kind: KindText},
		"slug":            {Column: "slug", Kind: KindText},
		"duration":        {Column: "duration", Kind: KindNumber, Multi: true},
		"maxGroupSize":    {Column: "max_group_size", Kind: KindNumber, Multi: true},
		"difficulty":      {Column: "difficulty", Kind: KindText, Multi: true},
		"ratingsAverage":  {Column: "ratings_average", Kind: KindNumber, Multi: true},
		"ratingsQuantity": {Column: "ratings_quantity", Kind: KindNumber, Multi: true},
		"price":           {Column: "price", Kind: KindNumber, Multi: true},
		"priceDiscount":   {Column: "price_discount", Kind: KindNumber},
		"summary":         {Column: "summary", Kind: KindText},
		"description":     {Column: "description", Kind: KindText},
		"imageCover":      {Column: "image_cover", Kind: KindText},
		"images":          {Column: "images", Kind: KindText, NoFilter: true},
		"startDates":      {Column: "start_dates", Kind: KindTime, NoFilter: true},
		"startLocation":   {Column: "start_location", Kind: KindText, NoFilter: true},
		"locations":       {Column: "locations", Kind: KindText, NoFilter: true},
		"createdAt":       {Column: "created_at", Kind: KindTime},
	},
	DefaultSort: []SortField{{Field: "createdAt", Desc: true}},
}

type TourRepo struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// TourUpdate holds the fields to change; nil means unchanged.
type TourUpdate struct {
	Name           *string
	Slug           *string
	Duration       *int
	MaxGroupSize   *int
	Difficulty     *models.Difficulty
	Price          *float64
	PriceDiscount  *float64
	Summary        *string
	Description    *string
	ImageCover     *string
	Images         *[]string
	StartDates     *[]time.Time
	SecretTour     *bool
	StartLocation  *models.Location
	Locations      *[]models.Location
	GuideIDs       *[]string
	RatingsAverage *float64
}

func NewTourRepo(pool *pgxpool.Pool, timeout time.Duration) *TourRepo {
	return &TourRepo{pool: pool, timeout: timeout}
}

func (r *TourRepo) Create(ctx context.Context, t *models.Tour) (*models.Tour, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	ratings := t.RatingsAverage
	if ratings == 0 {
		ratings = models.DefaultRatingsAverage
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO tours (
			name, slug, duration, max_group_size, difficulty, ratings_average, price,
			price_discount, summary, description, image_cover, images, start_dates,
			secret_tour, start_location, locations, guides
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17::text[]::uuid[])
		RETURNING `+tourColumns,
		t.Name,
		t.Slug,
		t.Duration,
		t.MaxGroupSize,
		string(t.Difficulty),
		models.RoundRating(ratings),
		t.Price,
		t.PriceDiscount,
		t.Summary,
		t.Description,
		t.ImageCover,
		nonNil(t.Images),
		nonNil(t.StartDates),
		t.SecretTour,
		t.StartLocation,
		nonNil(t.Locations),
		nonNil(t.GuideIDs),
	)

	created, err := scanTour(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &DuplicateError{Field: "name", Value: t.Name}
		}
		if cErr := asConstraintError(err); cErr != nil {
			return nil, cErr
		}
		return nil, fmt.Errorf("insert tour: %w", err)
	}
	return created, nil
}

func (r *TourRepo) GetByID(ctx context.Context, id string) (*models.Tour, error) {
	if err := ValidateID("id", id); err != nil {
		return nil, err
	}
	return r.getOne(ctx, "get tour by id", "id = $1", id)
}

func (r *TourRepo) GetBySlug(ctx context.Context, slug string) (*models.Tour, error) {
	return r.getOne(ctx, "get tour by slug", "slug = $1", slug)
}

func (r *TourRepo) getOne(ctx context.Context, op, where string, args ...any) (*models.Tour, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
		SELECT `+tourColumns+`
		FROM tours
		WHERE NOT secret_tour AND `+where, args...)

	tour, err := scanTour(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return tour, nil
}

func (r *TourRepo) List(ctx context.Context, opts QueryOptions) ([]models.Tour, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	where, args := opts.Where(TourSchema, 1)
	query := fmt.Sprintf(`
		SELECT %s
		FROM tours
		WHERE NOT secret_tour
		%s
		%s
		%s
	`, tourColumns, where, opts.OrderBy(TourSchema), opts.LimitOffset())

	return r.query(ctx, "list tours", query, args...)
}

// ListByIDs returns the visible tours among ids.
func (r *TourRepo) ListByIDs(ctx context.Context, ids []string) ([]models.Tour, error) {
	if len(ids) == 0 {
		return []models.Tour{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	return r.query(ctx, "list tours by ids", `
		SELECT `+tourColumns+`
		FROM tours
		WHERE NOT secret_tour AND id = ANY($1::text[]::uuid[])
		ORDER BY name
	`, ids)
}

func (r *TourRepo) query(ctx context.Context, op, query string, args ...any) ([]models.Tour, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	results := []models.Tour{}
	for rows.Next() {
		tour, err := scanTour(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tour: %w", err)
		}
		results = append(results, *tour)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tours: %w", err)
	}
	return results, nil
}

func (r *TourRepo) Update(ctx context.Context, id string, upd TourUpdate) (*models.Tour, error) {
	if err := ValidateID("id", id); err != nil {
		return nil, err
	}

	var sets []string
	var args []any
	add := func(column string, value any, cast string) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d%s", column, len(args), cast))
	}
	if upd.Name != nil {
		add("name", *upd.Name, "")
	}
	if upd.Slug != nil {
		add("slug", *upd.Slug, "")
	}
	if upd.Duration != nil {
		add("duration", *upd.Duration, "")
	}
	if upd.MaxGroupSize != nil {
		add("max_group_size", *upd.MaxGroupSize, "")
	}
	if upd.Difficulty != nil {
		add("difficulty", string(*upd.Difficulty), "")
	}
	if upd.Price != nil {
		add("price", *upd.Price, "")
	}
	if upd.PriceDiscount != nil {
		add("price_discount", *upd.PriceDiscount, "")
	}
	if upd.Summary != nil {
		add("summary", *upd.Summary, "")
	}
	if upd.Description != nil {
		add("description", *upd.Description, "")
	}
	if upd.ImageCover != nil {
		add("image_cover", *upd.ImageCover, "")
	}
	if upd.Images != nil {
		add("images", nonNil(*upd.Images), "")
	}
	if upd.StartDates != nil {
		add("start_dates", nonNil(*upd.StartDates), "")
	}
	if upd.SecretTour != nil {
		add("secret_tour", *upd.SecretTour, "")
	}
	if upd.StartLocation != nil {
		add("start_location", upd.StartLocation, "")
	}
	if upd.Locations != nil {
		add("locations", nonNil(*upd.Locations), "")
	}
	if upd.GuideIDs != nil {
		add("guides", nonNil(*upd.GuideIDs), "::text[]::uuid[]")
	}
	if upd.RatingsAverage != nil {
		add("ratings_average", models.RoundRating(*upd.RatingsAverage), "")
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	args = append(args, id)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE tours
		SET %s
		WHERE id = $%d AND NOT secret_tour
		RETURNING `+tourColumns, strings.Join(sets, ", "), len(args)), args...)

	tour, err := scanTour(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if isUniqueViolation(err) && upd.Name != nil {
			return nil, &DuplicateError{Field: "name", Value: *upd.Name}
		}
		if cErr := asConstraintError(err); cErr != nil {
			return nil, cErr
		}
		return nil, fmt.Errorf("update tour: %w", err)
	}
	return tour, nil
}

// UpdateRatings stores recomputed review aggregates.
func (r *TourRepo) UpdateRatings(ctx context.Context, id string, quantity int, average float64) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		UPDATE tours SET ratings_quantity = $1, ratings_average = $2 WHERE id = $3
	`, quantity, models.RoundRating(average), id)
	if err != nil {
		return fmt.Errorf("update tour ratings: %w", err)
	}
	return nil
}

func (r *TourRepo) Delete(ctx context.Context, id string) error {
	if err := ValidateID("id", id); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd, err := r.pool.Exec(ctx, `DELETE FROM tours WHERE id = $1 AND NOT secret_tour`, id)
	if err != nil {
		return fmt.Errorf("delete tour: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats groups well-rated tours by difficulty.
func (r *TourRepo) Stats(ctx context.Context) ([]models.TourStats, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT UPPER(difficulty), COUNT(*), COALESCE(SUM(ratings_quantity), 0),
			AVG(ratings_average), AVG(price), MIN(price), MAX(price)
		FROM tours
		WHERE NOT secret_tour AND ratings_average >= 4.5
		GROUP BY UPPER(difficulty)
		ORDER BY AVG(price) ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("tour stats: %w", err)
	}
	defer rows.Close()

	stats := []models.TourStats{}
	for rows.Next() {
		var s models.TourStats
		if err := rows.Scan(&s.Difficulty, &s.NumTours, &s.NumRatings, &s.AvgRating, &s.AvgPrice, &s.MinPrice, &s.MaxPrice); err != nil {
			return nil, fmt.Errorf("scan tour stats: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tour stats: %w", err)
	}
	return stats, nil
}

// MonthlyPlan counts tour starts per month of year, busiest first.
func (r *TourRepo) MonthlyPlan(ctx context.Context, year int) ([]models.MonthlyPlan, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)

	rows, err := r.pool.Query(ctx, `
		SELECT EXTRACT(MONTH FROM s.start_date AT TIME ZONE 'UTC')::int AS month,
			COUNT(*)::int, ARRAY_AGG(t.name ORDER BY t.name)
		FROM tours t, UNNEST(t.start_dates) AS s(start_date)
		WHERE NOT t.secret_tour AND s.start_date >= $1 AND s.start_date < $2
		GROUP BY month
		ORDER BY COUNT(*) DESC, month ASC
		LIMIT 12
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("monthly plan: %w", err)
	}
	defer rows.Close()

	plan := []models.MonthlyPlan{}
	for rows.Next() {
		var p models.MonthlyPlan
		if err := rows.Scan(&p.Month, &p.NumTourStarts, &p.Tours); err != nil {
			return nil, fmt.Errorf("scan monthly plan: %w", err)
		}
		plan = append(plan, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate monthly plan: %w", err)
	}
	return plan, nil
}

// Within returns tours whose start location lies within radius radians of
// (lat, lng) on a sphere.
func (r *TourRepo) Within(ctx context.Context, lat, lng, radius float64) ([]models.Tour, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	return r.query(ctx, "tours within", `
		SELECT `+tourColumns+`
		FROM tours
		WHERE NOT secret_tour AND start_location IS NOT NULL
			AND `+centralAngle+` <= $3
		ORDER BY name
	`, lat, lng, radius)
}

// Distances returns every tour's start distance from (lat, lng), in meters
// scaled by multiplier, nearest first.
func (r *TourRepo) Distances(ctx context.Context, lat, lng, multiplier float64) ([]models.TourDistance, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT id::text, name, `+centralAngle+` * $3 * $4 AS distance
		FROM tours
		WHERE NOT secret_tour AND start_location IS NOT NULL
		ORDER BY distance ASC
	`, lat, lng, EarthRadiusMeters, multiplier)
	if err != nil {
		return nil, fmt.Errorf("tour distances: %w", err)
	}
	defer rows.Close()

	out := []models.TourDistance{}
	for rows.Next() {
		var d models.TourDistance
		if err := rows.Scan(&d.ID, &d.Name, &d.Distance); err != nil {
			return nil, fmt.Errorf("scan tour distance: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tour distances: %w", err)
	}
	return out, nil
}

const EarthRadiusMeters = 6378100.0

// centralAngle is the great-circle angle in radians between ($1 lat, $2 lng)
// and the tour's start location.
const centralAngle = `ACOS(LEAST(1.0, GREATEST(-1.0,
	SIN(RADIANS($1::double precision)) * SIN(RADIANS(` + startLat + `)) +
	COS(RADIANS($1::double precision)) * COS(RADIANS(` + startLat + `)) *
	COS(RADIANS(` + startLng + `) - RADIANS($2::double precision)))))`

func scanTour(row pgx.Row) (*models.Tour, error) {
	var (
		t          models.Tour
		difficulty string
		guides     []string
	)
	if err := row.Scan(
		&t.ID,
		&t.Name,
		&t.Slug,
		&t.Duration,
		&t.MaxGroupSize,
		&difficulty,
		&t.RatingsAverage,
		&t.RatingsQuantity,
		&t.Price,
		&t.PriceDiscount,
		&t.Summary,
		&t.Description,
		&t.ImageCover,
		&t.Images,
		&t.StartDates,
		&t.SecretTour,
		&t.StartLocation,
		&t.Locations,
		&guides,
		&t.CreatedAt,
	); err != nil {
		return nil, err
	}
	t.Difficulty = models.Difficulty(difficulty)
	t.GuideIDs = guides
	return &t, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
