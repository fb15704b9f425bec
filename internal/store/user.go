package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/flatmate/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var phone sql.NullString
	err := scanner.Scan(&u.ID, &u.Email, &u.Name, &phone, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	u.Phone = stringPtr(phone)
	return &u, nil
}

const userCols = `id, email, name, phone, password_hash, created_at`

// Create inserts a user. It returns ErrDuplicate if the email is taken.
func (s *UserStore) Create(ctx context.Context, email, name string, phone *string, passwordHash string) (*model.User, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO users (email, name, phone, password_hash) VALUES (?, ?, ?, ?)`,
		email, name, nullString(phone), passwordHash,
	)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetByEmail matches the email exactly as stored.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}
