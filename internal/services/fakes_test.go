package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"natours/internal/mail"
	"natours/internal/models"
	"natours/internal/payments"
	"natours/internal/repo"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeUsers struct {
	mu    sync.Mutex
	byID  map[string]*models.User
	clear int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[string]*models.User{}}
}

func (f *fakeUsers) Create(_ context.Context, p repo.CreateUserParams) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email := strings.ToLower(p.Email)
	for _, u := range f.byID {
		if u.Email == email {
			return nil, &repo.DuplicateError{Field: "email", Value: email}
		}
	}
	u := &models.User{
		ID:           uuid.NewString(),
		Name:         p.Name,
		Email:        email,
		Photo:        models.DefaultPhoto,
		Role:         p.Role,
		PasswordHash: p.PasswordHash,
		Active:       true,
		CreatedAt:    time.Now(),
	}
	f.byID[u.ID] = u
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) active(match func(*models.User) bool) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Active && match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	if err := repo.ValidateID("id", id); err != nil {
		return nil, err
	}
	return f.active(func(u *models.User) bool { return u.ID == id })
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	email = strings.ToLower(email)
	return f.active(func(u *models.User) bool { return u.Email == email })
}

func (f *fakeUsers) GetByResetToken(_ context.Context, hash string, now time.Time) (*models.User, error) {
	return f.active(func(u *models.User) bool {
		return u.PasswordResetToken != nil && *u.PasswordResetToken == hash &&
			u.PasswordResetExpires != nil && u.PasswordResetExpires.After(now)
	})
}

func (f *fakeUsers) SetResetToken(_ context.Context, id string, hash *string, expires *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.PasswordResetToken = hash
	u.PasswordResetExpires = expires
	return nil
}

func (f *fakeUsers) ClearResetToken(ctx context.Context, id string) error {
	f.mu.Lock()
	f.clear++
	f.mu.Unlock()
	return f.SetResetToken(ctx, id, nil, nil)
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id, hash string, changedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok || !u.Active {
		return repo.ErrNotFound
	}
	u.PasswordHash = hash
	u.PasswordChangedAt = &changedAt
	u.PasswordResetToken = nil
	u.PasswordResetExpires = nil
	return nil
}

func (f *fakeUsers) Update(_ context.Context, id string, upd repo.UserUpdate) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok || !u.Active {
		return nil, repo.ErrNotFound
	}
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
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) Deactivate(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok || !u.Active {
		return repo.ErrNotFound
	}
	u.Active = false
	return nil
}

func (f *fakeUsers) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return repo.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeUsers) List(_ context.Context, _ repo.QueryOptions) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.User{}
	for _, u := range f.byID {
		if u.Active {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeUsers) ListByIDs(_ context.Context, ids []string) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.User{}
	for _, id := range ids {
		if u, ok := f.byID[id]; ok && u.Active {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeUsers) stored(id string) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *f.byID[id]
	return &cp
}

type sentMail struct {
	kind string
	to   mail.Recipient
	url  string
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (m *fakeMailer) SendWelcome(_ context.Context, to mail.Recipient, url string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{kind: "welcome", to: to, url: url})
	return nil
}

func (m *fakeMailer) SendPasswordReset(_ context.Context, to mail.Recipient, url string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{kind: "reset", to: to, url: url})
	return nil
}

type fakeTours struct {
	byID    map[string]*models.Tour
	ratings map[string][2]float64
	updates []repo.TourUpdate
	radius  float64
	mult    float64
}

func newFakeTours(tours ...*models.Tour) *fakeTours {
	f := &fakeTours{byID: map[string]*models.Tour{}, ratings: map[string][2]float64{}}
	for _, t := range tours {
		f.byID[t.ID] = t
	}
	return f
}

func (f *fakeTours) List(_ context.Context, _ repo.QueryOptions) ([]models.Tour, error) {
	out := []models.Tour{}
	for _, t := range f.byID {
		out = append(out, *t)
	}
	return out, nil
}

func (f *fakeTours) ListByIDs(_ context.Context, ids []string) ([]models.Tour, error) {
	out := []models.Tour{}
	for _, id := range ids {
		if t, ok := f.byID[id]; ok {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTours) GetByID(_ context.Context, id string) (*models.Tour, error) {
	t, ok := f.byID[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTours) GetBySlug(_ context.Context, slug string) (*models.Tour, error) {
	for _, t := range f.byID {
		if t.Slug == slug {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (f *fakeTours) Create(_ context.Context, t *models.Tour) (*models.Tour, error) {
	cp := *t
	cp.ID = uuid.NewString()
	f.byID[cp.ID] = &cp
	return &cp, nil
}

func (f *fakeTours) Update(_ context.Context, id string, upd repo.TourUpdate) (*models.Tour, error) {
	t, ok := f.byID[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	f.updates = append(f.updates, upd)
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
	cp := *t
	return &cp, nil
}

func (f *fakeTours) UpdateRatings(_ context.Context, id string, quantity int, average float64) error {
	f.ratings[id] = [2]float64{float64(quantity), average}
	return nil
}

func (f *fakeTours) Delete(_ context.Context, id string) error {
	if _, ok := f.byID[id]; !ok {
		return repo.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeTours) Stats(context.Context) ([]models.TourStats, error) {
	return []models.TourStats{}, nil
}

func (f *fakeTours) MonthlyPlan(_ context.Context, year int) ([]models.MonthlyPlan, error) {
	return []models.MonthlyPlan{{Month: 1, NumTourStarts: year % 10}}, nil
}

func (f *fakeTours) Within(_ context.Context, _, _, radius float64) ([]models.Tour, error) {
	f.radius = radius
	return []models.Tour{}, nil
}

func (f *fakeTours) Distances(_ context.Context, _, _, multiplier float64) ([]models.TourDistance, error) {
	f.mult = multiplier
	return []models.TourDistance{}, nil
}

type fakeReviews struct {
	byID map[string]*models.Review
}

func newFakeReviews() *fakeReviews {
	return &fakeReviews{byID: map[string]*models.Review{}}
}

func (f *fakeReviews) List(_ context.Context, _ repo.QueryOptions) ([]models.Review, error) {
	out := []models.Review{}
	for _, r := range f.byID {
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeReviews) ListByTour(_ context.Context, tourID string) ([]models.Review, error) {
	out := []models.Review{}
	for _, r := range f.byID {
		if r.TourID == tourID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeReviews) GetByID(_ context.Context, id string) (*models.Review, error) {
	r, ok := f.byID[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeReviews) Create(_ context.Context, p repo.CreateReviewParams) (*models.Review, error) {
	for _, r := range f.byID {
		if r.TourID == p.TourID && r.UserID == p.UserID {
			return nil, &repo.DuplicateError{Field: "review", Value: p.TourID}
		}
	}
	r := &models.Review{ID: uuid.NewString(), Review: p.Review, Rating: p.Rating, TourID: p.TourID, UserID: p.UserID}
	f.byID[r.ID] = r
	cp := *r
	return &cp, nil
}

func (f *fakeReviews) Update(_ context.Context, id string, upd repo.ReviewUpdate) (*models.Review, error) {
	r, ok := f.byID[id]
	if !ok {
		return nil, repo.ErrNotFound
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

func (f *fakeReviews) Delete(_ context.Context, id string) (string, error) {
	r, ok := f.byID[id]
	if !ok {
		return "", repo.ErrNotFound
	}
	delete(f.byID, id)
	return r.TourID, nil
}

func (f *fakeReviews) Stats(_ context.Context, tourID string) (repo.RatingStats, error) {
	var s repo.RatingStats
	total := 0
	for _, r := range f.byID {
		if r.TourID == tourID {
			s.Quantity++
			total += r.Rating
		}
	}
	if s.Quantity > 0 {
		s.Average = float64(total) / float64(s.Quantity)
	}
	return s, nil
}

type fakeBookings struct {
	byID map[string]*models.Booking
}

func newFakeBookings() *fakeBookings {
	return &fakeBookings{byID: map[string]*models.Booking{}}
}

func (f *fakeBookings) Create(_ context.Context, b *models.Booking) (*models.Booking, error) {
	cp := *b
	cp.ID = uuid.NewString()
	f.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeBookings) GetByID(_ context.Context, id string) (*models.Booking, error) {
	b, ok := f.byID[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBookings) List(_ context.Context, _ repo.QueryOptions) ([]models.Booking, error) {
	out := []models.Booking{}
	for _, b := range f.byID {
		out = append(out, *b)
	}
	return out, nil
}

func (f *fakeBookings) ListByUser(_ context.Context, userID string) ([]models.Booking, error) {
	out := []models.Booking{}
	for _, b := range f.byID {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeBookings) Update(_ context.Context, id string, upd repo.BookingUpdate) (*models.Booking, error) {
	b, ok := f.byID[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	if upd.Paid != nil {
		b.Paid = *upd.Paid
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBookings) Delete(_ context.Context, id string) error {
	if _, ok := f.byID[id]; !ok {
		return repo.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

type fakeCheckout struct {
	req payments.CheckoutRequest
	err error
}

func (f *fakeCheckout) CreateCheckoutSession(_ context.Context, req payments.CheckoutRequest) (*payments.Session, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &payments.Session{ID: "cs_test_1", URL: "https://checkout.example/cs_test_1"}, nil
}

var errBoom = errors.New("boom")
