package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"natours/internal/models"
	"natours/internal/payments"
	"natours/internal/repo"
	"natours/internal/utils"
)

type BookingStore interface {
	Create(ctx context.Context, b *models.Booking) (*models.Booking, error)
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	List(ctx context.Context, opts repo.QueryOptions) ([]models.Booking, error)
	ListByUser(ctx context.Context, userID string) ([]models.Booking, error)
	Update(ctx context.Context, id string, upd repo.BookingUpdate) (*models.Booking, error)
	Delete(ctx context.Context, id string) error
}

type CheckoutProvider interface {
	CreateCheckoutSession(ctx context.Context, req payments.CheckoutRequest) (*payments.Session, error)
}

type BookingTours interface {
	GetByID(ctx context.Context, id string) (*models.Tour, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Tour, error)
}

type BookingService struct {
	bookings BookingStore
	tours    BookingTours
	checkout CheckoutProvider
}

func NewBookingService(bookings BookingStore, tours BookingTours, checkout CheckoutProvider) *BookingService {
	return &BookingService{bookings: bookings, tours: tours, checkout: checkout}
}

// CheckoutSession starts a hosted payment for tourID. origin is the scheme and
// host the customer is sent back to.
func (s *BookingService) CheckoutSession(ctx context.Context, user *models.User, tourID, origin string) (*payments.Session, error) {
	tour, err := s.tours.GetByID(ctx, tourID)
	if err != nil {
		return nil, err
	}

	success := url.Values{
		"tour":  {tour.ID},
		"user":  {user.ID},
		"price": {strconv.FormatFloat(tour.Price, 'f', -1, 64)},
	}
	req := payments.CheckoutRequest{
		TourID:        tour.ID,
		TourName:      tour.Name,
		TourSummary:   tour.Summary,
		Price:         tour.Price,
		CustomerEmail: user.Email,
		SuccessURL:    origin + "/?" + success.Encode(),
		CancelURL:     origin + "/tour/" + tour.Slug,
	}
	if tour.ImageCover != "" {
		req.ImageURL = origin + "/img/tours/" + tour.ImageCover
	}

	sess, err := s.checkout.CreateCheckoutSession(ctx, req)
	if err != nil {
		return nil, utils.Upstream(http.StatusBadGateway, "There was an error creating the checkout session. Try again later!", err)
	}
	return sess, nil
}

// CreateFromCheckout records the booking carried by a checkout success URL.
// The URL is unsigned, so the caller is not checked against userID.
func (s *BookingService) CreateFromCheckout(ctx context.Context, tourID, userID, price string) (*models.Booking, error) {
	p, err := strconv.ParseFloat(price, 64)
	if err != nil || p < 0 {
		return nil, utils.BadRequest(fmt.Sprintf("Invalid price: %s.", price))
	}
	return s.bookings.Create(ctx, &models.Booking{TourID: tourID, UserID: userID, Price: p, Paid: true})
}

// BookedTours lists the tours userID has booked.
func (s *BookingService) BookedTours(ctx context.Context, userID string) ([]models.Tour, error) {
	bookings, err := s.bookings.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(bookings))
	ids := make([]string, 0, len(bookings))
	for _, b := range bookings {
		if !seen[b.TourID] {
			seen[b.TourID] = true
			ids = append(ids, b.TourID)
		}
	}
	return s.tours.ListByIDs(ctx, ids)
}

func (s *BookingService) Create(ctx context.Context, b *models.Booking) (*models.Booking, error) {
	return s.bookings.Create(ctx, b)
}

func (s *BookingService) Get(ctx context.Context, id string) (*models.Booking, error) {
	return s.bookings.GetByID(ctx, id)
}

func (s *BookingService) List(ctx context.Context, opts repo.QueryOptions) ([]models.Booking, error) {
	return s.bookings.List(ctx, opts)
}

func (s *BookingService) Update(ctx context.Context, id string, upd repo.BookingUpdate) (*models.Booking, error) {
	return s.bookings.Update(ctx, id, upd)
}

func (s *BookingService) Delete(ctx context.Context, id string) error {
	return s.bookings.Delete(ctx, id)
}
