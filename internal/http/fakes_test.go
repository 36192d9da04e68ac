package http

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"natours/internal/mail"
	"natours/internal/models"
	"natours/internal/repo"
)

// memUsers is an in-memory services.UserStore.
type memUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: map[string]*models.User{}}
}

func (m *memUsers) Create(_ context.Context, p repo.CreateUserParams) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(p.Email))
	for _, u := range m.users {
		if u.Email == email {
			return nil, &repo.DuplicateError{Field: "email", Value: email}
		}
	}
	role := p.Role
	if role == "" {
		role = models.RoleUser
	}
	u := &models.User{
		ID:           uuid.NewString(),
		Name:         p.Name,
		Email:        email,
		Photo:        models.DefaultPhoto,
		Role:         role,
		PasswordHash: p.PasswordHash,
		Active:       true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	m.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m *memUsers) find(match func(*models.User) bool) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Active && match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	if err := repo.ValidateID("id", id); err != nil {
		return nil, err
	}
	return m.find(func(u *models.User) bool { return u.ID == id })
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return m.find(func(u *models.User) bool { return u.Email == email })
}

func (m *memUsers) GetByResetToken(_ context.Context, tokenHash string, now time.Time) (*models.User, error) {
	return m.find(func(u *models.User) bool {
		return u.PasswordResetToken != nil && *u.PasswordResetToken == tokenHash &&
			u.PasswordResetExpires != nil && u.PasswordResetExpires.After(now)
	})
}

func (m *memUsers) mutate(id string, fn func(*models.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || !u.Active {
		return repo.ErrNotFound
	}
	fn(u)
	return nil
}

func (m *memUsers) SetResetToken(_ context.Context, userID string, tokenHash *string, expiresAt *time.Time) error {
	return m.mutate(userID, func(u *models.User) {
		u.PasswordResetToken = tokenHash
		u.PasswordResetExpires = expiresAt
	})
}

func (m *memUsers) ClearResetToken(ctx context.Context, userID string) error {
	return m.SetResetToken(ctx, userID, nil, nil)
}

func (m *memUsers) UpdatePassword(_ context.Context, userID, passwordHash string, changedAt time.Time) error {
	return m.mutate(userID, func(u *models.User) {
		u.PasswordHash = passwordHash
		u.PasswordChangedAt = &changedAt
		u.PasswordResetToken = nil
		u.PasswordResetExpires = nil
	})
}

func (m *memUsers) Update(_ context.Context, id string, upd repo.UserUpdate) (*models.User, error) {
	var out models.User
	err := m.mutate(id, func(u *models.User) {
		if upd.Name != nil {
			u.Name = *upd.Name
		}
		if upd.Email != nil {
			u.Email = strings.ToLower(*upd.Email)
		}
		if upd.Photo != nil {
			u.Photo = *upd.Photo
		}
		if upd.Role != nil {
			u.Role = *upd.Role
		}
		out = *u
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *memUsers) Deactivate(_ context.Context, id string) error {
	return m.mutate(id, func(u *models.User) { u.Active = false })
}

func (m *memUsers) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return repo.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *memUsers) List(_ context.Context, _ repo.QueryOptions) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		if u.Active {
			out = append(out, *u)
		}
	}
	return out, nil
}

// promote sets the role of the account holding email.
func (m *memUsers) promote(email string, role models.Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			u.Role = role
		}
	}
}

type sentMail struct {
	kind string
	to   mail.Recipient
	url  string
}

type memMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *memMailer) SendWelcome(_ context.Context, to mail.Recipient, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{kind: "welcome", to: to, url: url})
	return nil
}

func (m *memMailer) SendPasswordReset(_ context.Context, to mail.Recipient, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{kind: "reset", to: to, url: url})
	return nil
}

func (m *memMailer) last(kind string) (sentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].kind == kind {
			return m.sent[i], true
		}
	}
	return sentMail{}, false
}

func (m *memUsers) ListByIDs(_ context.Context, ids []string) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.User{}
	for _, id := range ids {
		if u, ok := m.users[id]; ok && u.Active {
			out = append(out, *u)
		}
	}
	return out, nil
}

// memTours is an in-memory services.TourStore. Query features are ignored.
type memTours struct {
	mu    sync.Mutex
	order []string
	tours map[string]*models.Tour
}

func newMemTours() *memTours {
	return &memTours{tours: map[string]*models.Tour{}}
}

func (m *memTours) visible() []models.Tour {
	out := []models.Tour{}
	for _, id := range m.order {
		if t, ok := m.tours[id]; ok && !t.SecretTour {
			out = append(out, *t)
		}
	}
	return out
}

func (m *memTours) List(_ context.Context, _ repo.QueryOptions) ([]models.Tour, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visible(), nil
}

func (m *memTours) ListByIDs(_ context.Context, ids []string) ([]models.Tour, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Tour{}
	for _, id := range ids {
		if t, ok := m.tours[id]; ok && !t.SecretTour {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memTours) find(match func(*models.Tour) bool) (*models.Tour, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tours {
		if !t.SecretTour && match(t) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (m *memTours) GetByID(_ context.Context, id string) (*models.Tour, error) {
	if err := repo.ValidateID("id", id); err != nil {
		return nil, err
	}
	return m.find(func(t *models.Tour) bool { return t.ID == id })
}

func (m *memTours) GetBySlug(_ context.Context, slug string) (*models.Tour, error) {
	return m.find(func(t *models.Tour) bool { return t.Slug == slug })
}

func (m *memTours) Create(_ context.Context, t *models.Tour) (*models.Tour, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.tours {
		if existing.Name == t.Name {
			return nil, &repo.DuplicateError{Field: "name", Value: t.Name}
		}
	}
	tour := *t
	tour.ID = uuid.NewString()
	if tour.RatingsAverage == 0 {
		tour.RatingsAverage = models.DefaultRatingsAverage
	}
	tour.CreatedAt = time.Now()
	m.tours[tour.ID] = &tour
	m.order = append(m.order, tour.ID)
	cp := tour
	return &cp, nil
}

func (m *memTours) Update(_ context.Context, id string, upd repo.TourUpdate) (*models.Tour, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tours[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	if upd.Name != nil {
		t.Name = *upd.Name
	}
	if upd.Slug != nil {
		t.Slug = *upd.Slug
	}
	if upd.Price != nil {
		t.Price = *upd.Price
	}
	if upd.PriceDiscount != nil {
		t.PriceDiscount = upd.PriceDiscount
	}
	if upd.ImageCover != nil {
		t.ImageCover = *upd.ImageCover
	}
	if upd.Images != nil {
		t.Images = *upd.Images
	}
	cp := *t
	return &cp, nil
}

func (m *memTours) UpdateRatings(_ context.Context, id string, quantity int, average float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tours[id]
	if !ok {
		return repo.ErrNotFound
	}
	t.RatingsQuantity = quantity
	t.RatingsAverage = models.RoundRating(average)
	return nil
}

func (m *memTours) Delete(_ context.Context, id string) error {
	if err := repo.ValidateID("id", id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tours[id]; !ok {
		return repo.ErrNotFound
	}
	delete(m.tours, id)
	return nil
}

func (m *memTours) Stats(context.Context) ([]models.TourStats, error) {
	return []models.TourStats{}, nil
}

func (m *memTours) MonthlyPlan(context.Context, int) ([]models.MonthlyPlan, error) {
	return []models.MonthlyPlan{}, nil
}

// Within and Distances report every visible tour; distance math lives in SQL.
func (m *memTours) Within(context.Context, float64, float64, float64) ([]models.Tour, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visible(), nil
}

func (m *memTours) Distances(context.Context, float64, float64, float64) ([]models.TourDistance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.TourDistance{}
	for _, t := range m.visible() {
		out = append(out, models.TourDistance{ID: t.ID, Name: t.Name})
	}
	return out, nil
}

// memReviews is an in-memory services.ReviewStore. List honours the tour filter.
type memReviews struct {
	mu      sync.Mutex
	reviews []*models.Review
}

func (m *memReviews) List(_ context.Context, opts repo.QueryOptions) ([]models.Review, error) {
	tourID := ""
	for _, cond := range opts.Conditions {
		if cond.Field == "tour" && len(cond.Values) > 0 {
			tourID, _ = cond.Values[0].(string)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Review{}
	for _, r := range m.reviews {
		if tourID == "" || r.TourID == tourID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memReviews) ListByTour(ctx context.Context, tourID string) ([]models.Review, error) {
	return m.List(ctx, repo.QueryOptions{Conditions: []repo.Condition{{Field: "tour", Values: []any{tourID}}}})
}

func (m *memReviews) GetByID(_ context.Context, id string) (*models.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reviews {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (m *memReviews) Create(_ context.Context, p repo.CreateReviewParams) (*models.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reviews {
		if r.TourID == p.TourID && r.UserID == p.UserID {
			return nil, &repo.DuplicateError{Field: "review", Value: p.TourID}
		}
	}
	r := &models.Review{
		ID:        uuid.NewString(),
		Review:    p.Review,
		Rating:    p.Rating,
		CreatedAt: time.Now(),
		TourID:    p.TourID,
		UserID:    p.UserID,
	}
	m.reviews = append(m.reviews, r)
	cp := *r
	return &cp, nil
}

func (m *memReviews) Update(_ context.Context, id string, upd repo.ReviewUpdate) (*models.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reviews {
		if r.ID != id {
			continue
		}
		if upd.Review != nil {
			r.Review = *upd.Review
		}
		if upd.Rating != nil {
			r.Rating = *upd.Rating
		}
		cp := *r
		return &cp, nil
	}
	return nil, repo.ErrNotFound
}

func (m *memReviews) Delete(_ context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.reviews {
		if r.ID == id {
			m.reviews = append(m.reviews[:i], m.reviews[i+1:]...)
			return r.TourID, nil
		}
	}
	return "", repo.ErrNotFound
}

func (m *memReviews) Stats(_ context.Context, tourID string) (repo.RatingStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s repo.RatingStats
	sum := 0
	for _, r := range m.reviews {
		if r.TourID == tourID {
			s.Quantity++
			sum += r.Rating
		}
	}
	if s.Quantity > 0 {
		s.Average = float64(sum) / float64(s.Quantity)
	}
	return s, nil
}
