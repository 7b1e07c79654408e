package repositories

import (
	"context"
	"time"

	"github.com/BradenHooton/shopguard/internal/database"
	"github.com/BradenHooton/shopguard/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, password_hash, name, role, status, created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

// rowScanner interface for scanning user rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User

	err := scanner.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Name,
		&user.Role, &user.Status, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &user, nil
}

// GetByEmail looks up a user by normalized email; models.ErrNotFound when absent
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	return scanUserRow(r.pool.QueryRow(ctx, query, email))
}

// Create inserts a user; models.ErrConflict when the email is taken
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if user.Role == "" {
		user.Role = "customer"
	}

	if user.Status == "" {
		user.Status = "active"
	}

	query := `
		INSERT INTO users (id, email, password_hash, name, role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + userColumns

	return scanUserRow(r.pool.QueryRow(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.Name,
		user.Role, user.Status, user.CreatedAt, user.UpdatedAt,
	))
}
