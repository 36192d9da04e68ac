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

const userColumns = `id, name, email, photo, role, password_hash, password_changed_at,
		password_reset_token, password_reset_expires, active, created_at, updated_at`

var UserSchema = Schema{
	Fields: map[string]FieldSpec{
		"id":        {Column: "id", Kind: KindID},
		"name":      {Column: "name", Kind: KindText},
		"email":     {Column: "email", Kind: KindText},
		"photo":     {Column: "photo", Kind: KindText},
		"role":      {Column: "role", Kind: KindText, Multi: true},
		"createdAt": {Column: "created_at", Kind: KindTime},
	},
	DefaultSort: []SortField{{Field: "createdAt", Desc: true}},
}

type UserRepo struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

type CreateUserParams struct {
	Name         string
	Email        string
	Photo        string
	Role         models.Role
	PasswordHash string
}

// UserUpdate holds the fields to change; nil means unchanged.
type UserUpdate struct {
	Name  *string
	Email *string
	Photo *string
	Role  *models.Role
}

func NewUserRepo(pool *pgxpool.Pool, timeout time.Duration) *UserRepo {
	return &UserRepo{pool: pool, timeout: timeout}
}

func (r *UserRepo) Create(ctx context.Context, params CreateUserParams) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	email := normalizeEmail(params.Email)
	photo := params.Photo
	if photo == "" {
		photo = models.DefaultPhoto
	}
	role := params.Role
	if role == "" {
		role = models.RoleUser
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (name, email, photo, role, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		params.Name, email, photo, string(role), params.PasswordHash)

	user, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &DuplicateError{Field: "email", Value: email}
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if err := ValidateID("id", id); err != nil {
		return nil, err
	}
	return r.getOne(ctx, "get user by id", "id = $1", id)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, "get user by email", "email = $1", normalizeEmail(email))
}

// GetByResetToken finds the user holding an unexpired reset token digest.
func (r *UserRepo) GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	return r.getOne(ctx, "get user by reset token",
		"password_reset_token = $1 AND password_reset_expires > $2", tokenHash, now)
}

func (r *UserRepo) getOne(ctx context.Context, op, where string, args ...any) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE active AND `+where, args...)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

func (r *UserRepo) SetResetToken(ctx context.Context, userID string, tokenHash *string, expiresAt *time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		UPDATE users
		SET password_reset_token = $1, password_reset_expires = $2, updated_at = NOW()
		WHERE id = $3
	`, tokenHash, expiresAt, userID)
	if err != nil {
		return fmt.Errorf("update reset token: %w", err)
	}
	return nil
}

// ClearResetToken drops a pending reset token, e.g. after its email failed.
func (r *UserRepo) ClearResetToken(ctx context.Context, userID string) error {
	return r.SetResetToken(ctx, userID, nil, nil)
}

// UpdatePassword replaces the hash and clears any pending reset token.
func (r *UserRepo) UpdatePassword(ctx context.Context, userID, passwordHash string, changedAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd, err := r.pool.Exec(ctx, `
		UPDATE users
		SET password_hash = $1, password_changed_at = $2,
			password_reset_token = NULL, password_reset_expires = NULL, updated_at = NOW()
		WHERE id = $3 AND active
	`, passwordHash, changedAt, userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepo) Update(ctx context.Context, id string, upd UserUpdate) (*models.User, error) {
	if err := ValidateID("id", id); err != nil {
		return nil, err
	}

	sets := []string{"updated_at = NOW()"}
	args := []any{}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	var email string
	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Email != nil {
		email = normalizeEmail(*upd.Email)
		add("email", email)
	}
	if upd.Photo != nil {
		add("photo", *upd.Photo)
	}
	if upd.Role != nil {
		add("role", string(*upd.Role))
	}
	args = append(args, id)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE users
		SET %s
		WHERE id = $%d AND active
		RETURNING `+userColumns, strings.Join(sets, ", "), len(args)), args...)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, &DuplicateError{Field: "email", Value: email}
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// Deactivate soft-deletes the account; the row is kept.
func (r *UserRepo) Deactivate(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd, err := r.pool.Exec(ctx, `UPDATE users SET active = false, updated_at = NOW() WHERE id = $1 AND active`, id)
	if err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepo) Delete(ctx context.Context, id string) error {
	if err := ValidateID("id", id); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepo) List(ctx context.Context, opts QueryOptions) ([]models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	where, args := opts.Where(UserSchema, 1)
	query := fmt.Sprintf(`
		SELECT %s
		FROM users
		WHERE active
		%s
		%s
		%s
	`, userColumns, where, opts.OrderBy(UserSchema), opts.LimitOffset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	results := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		results = append(results, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return results, nil
}

// ListByIDs returns the active users among ids, e.g. the guides of a tour.
func (r *UserRepo) ListByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE active AND id = ANY($1::text[]::uuid[])
		ORDER BY name
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("list users by ids: %w", err)
	}
	defer rows.Close()

	results := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		results = append(results, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return results, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var (
		user models.User
		role string
	)
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Photo,
		&role,
		&user.PasswordHash,
		&user.PasswordChangedAt,
		&user.PasswordResetToken,
		&user.PasswordResetExpires,
		&user.Active,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	user.Role = models.Role(role)
	return &user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
