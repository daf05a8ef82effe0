package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

const userColumns = `id, username, email, phone_suffix, phone_number, profile_picture, about, otp_hash, otp_expiry, is_verified, is_online, last_seen, created_at`

// UserRepository abstracts user persistence.
type UserRepository interface {
	GetUser(ctx context.Context, userID int) (models.User, error)
	GetUsers(ctx context.Context, userIDs []int) ([]models.User, error)
	ListUsersExcept(ctx context.Context, userID int) ([]models.User, error)
	FindOrCreateByEmail(ctx context.Context, email string) (models.User, error)
	FindOrCreateByPhone(ctx context.Context, suffix, number string) (models.User, error)
	SetOTP(ctx context.Context, userID int, otpHash string, expiry time.Time) error
	MarkVerified(ctx context.Context, userID int) error
	UpdateProfile(ctx context.Context, userID int, username, about, profilePicture string) error
	SetPresence(ctx context.Context, userID int, online bool, lastSeen time.Time) error
}

// UserRepo is a sqlx-backed repository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetUser fetches a user by id.
func (r *UserRepo) GetUser(ctx context.Context, userID int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// GetUsers fetches multiple users in one query.
func (r *UserRepo) GetUsers(ctx context.Context, userIDs []int) ([]models.User, error) {
	if len(userIDs) == 0 {
		return []models.User{}, nil
	}
	query, args, err := sqlx.In(`SELECT `+userColumns+` FROM users WHERE id IN (?)`, userIDs)
	if err != nil {
		return nil, err
	}
	var users []models.User
	err = r.db.SelectContext(ctx, &users, r.db.Rebind(query), args...)
	return users, err
}

// ListUsersExcept returns every user other than userID.
func (r *UserRepo) ListUsersExcept(ctx context.Context, userID int) ([]models.User, error) {
	var users []models.User
	err := r.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users WHERE id<>$1 ORDER BY username ASC`, userID)
	return users, err
}

// FindOrCreateByEmail returns the user owning the email, creating the row on
// first contact.
func (r *UserRepo) FindOrCreateByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.User{}, err
	}
	err = r.db.GetContext(ctx, &user, `INSERT INTO users (email) VALUES ($1) RETURNING `+userColumns, email)
	return user, err
}

// FindOrCreateByPhone returns the user owning the phone number, creating the
// row on first contact.
func (r *UserRepo) FindOrCreateByPhone(ctx context.Context, suffix, number string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE phone_suffix=$1 AND phone_number=$2`, suffix, number)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.User{}, err
	}
	err = r.db.GetContext(ctx, &user, `INSERT INTO users (phone_suffix, phone_number) VALUES ($1, $2) RETURNING `+userColumns, suffix, number)
	return user, err
}

// SetOTP stores the hashed one-time code and its expiry.
func (r *UserRepo) SetOTP(ctx context.Context, userID int, otpHash string, expiry time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET otp_hash=$1, otp_expiry=$2 WHERE id=$3`, otpHash, expiry, userID)
	return err
}

// MarkVerified clears the pending code and flags the account verified.
func (r *UserRepo) MarkVerified(ctx context.Context, userID int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET is_verified=TRUE, otp_hash='', otp_expiry=NOW() WHERE id=$1`, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdateProfile updates the mutable display fields. Empty values leave the
// current column untouched.
func (r *UserRepo) UpdateProfile(ctx context.Context, userID int, username, about, profilePicture string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET
        username = CASE WHEN $1 <> '' THEN $1 ELSE username END,
        about = CASE WHEN $2 <> '' THEN $2 ELSE about END,
        profile_picture = CASE WHEN $3 <> '' THEN $3 ELSE profile_picture END
        WHERE id=$4`, username, about, profilePicture, userID)
	return err
}

// SetPresence writes the durable online flag and last-seen timestamp.
func (r *UserRepo) SetPresence(ctx context.Context, userID int, online bool, lastSeen time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET is_online=$1, last_seen=$2 WHERE id=$3`, online, lastSeen, userID)
	return err
}
