package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"natours/internal/models"
)

var BookingSchema = Schema{
	Fields: map[string]FieldSpec{
		"id":        {Column: "id", Kind: KindID},
		"tour":      {Column: "tour_id", Kind: KindID, Multi: true},
		"user":      {Column: "user_id", Kind: KindID, Multi: true},
		"price":     {Column: "price", Kind: KindNumber, Multi: true},
		"paid":      {Column: "paid", Kind: KindBool},
		"createdAt": {Column: "created_at", Kind: KindTime},
	},
	DefaultSort: []SortField{{Field: "createdAt", Desc: true}},
}

// BookingRepo stores bookings through gorm.
type BookingRepo struct {
	db      *gorm.DB
	timeout time.Duration
}

// BookingUpdate holds the fields to change; nil means unchanged.
type BookingUpdate struct {
	TourID *string
	UserID *string
	Price  *float64
	Paid   *bool
}

func NewBookingRepo(db *gorm.DB, timeout time.Duration) *BookingRepo {
	return &BookingRepo{db: db, timeout: timeout}
}

func (r *BookingRepo) Create(ctx context.Context, b *models.Booking) (*models.Booking, error) {
	if err := ValidateID("tour", b.TourID); err != nil {
		return nil, err
	}
	if err := ValidateID("user", b.UserID); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	booking := *b
	booking.ID = ""
	if err := r.db.WithContext(ctx).Create(&booking).Error; err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("create booking: %w", err)
	}
	return &booking, nil
}

func (r *BookingRepo) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	if err := ValidateID("id", id); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var booking models.Booking
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return &booking, nil
}

func (r *BookingRepo) List(ctx context.Context, opts QueryOptions) ([]models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	q := r.db.WithContext(ctx).Model(&models.Booking{})
	for _, cond := range opts.Conditions {
		column := BookingSchema.Fields[cond.Field].Column
		if len(cond.Values) > 1 {
			q = q.Where(column+" IN ?", cond.Values)
			continue
		}
		q = q.Where(fmt.Sprintf("%s %s ?", column, operators[cond.Op]), cond.Values[0])
	}
	for _, s := range opts.Sort {
		dir := " ASC"
		if s.Desc {
			dir = " DESC"
		}
		q = q.Order(BookingSchema.Fields[s.Field].Column + dir)
	}

	bookings := []models.Booking{}
	if err := q.Offset(opts.Offset()).Limit(opts.limit()).Find(&bookings).Error; err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

// ListByUser returns every booking of userID, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID string) ([]models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	bookings := []models.Booking{}
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("list user bookings: %w", err)
	}
	return bookings, nil
}

func (r *BookingRepo) Update(ctx context.Context, id string, upd BookingUpdate) (*models.Booking, error) {
	if err := ValidateID("id", id); err != nil {
		return nil, err
	}

	changes := map[string]any{}
	if upd.TourID != nil {
		if err := ValidateID("tour", *upd.TourID); err != nil {
			return nil, err
		}
		changes["tour_id"] = *upd.TourID
	}
	if upd.UserID != nil {
		if err := ValidateID("user", *upd.UserID); err != nil {
			return nil, err
		}
		changes["user_id"] = *upd.UserID
	}
	if upd.Price != nil {
		changes["price"] = *upd.Price
	}
	if upd.Paid != nil {
		changes["paid"] = *upd.Paid
	}
	if len(changes) == 0 {
		return r.GetByID(ctx, id)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res := r.db.WithContext(ctx).Model(&models.Booking{}).Where("id = ?", id).Updates(changes)
	if res.Error != nil {
		if isForeignKeyViolation(res.Error) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update booking: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *BookingRepo) Delete(ctx context.Context, id string) error {
	if err := ValidateID("id", id); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Booking{})
	if res.Error != nil {
		return fmt.Errorf("delete booking: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
