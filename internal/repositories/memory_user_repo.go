package repositories

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/BradenHooton/shopguard/internal/models"
	"github.com/google/uuid"
)

// MemoryUserRepository keeps users in process. It backs the login flow
// when no Postgres database is configured.
type MemoryUserRepository struct {
	mu      sync.RWMutex
	byEmail map[string]*models.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{byEmail: make(map[string]*models.User)}
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *MemoryUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	key := strings.ToLower(user.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[key]; exists {
		return nil, models.ErrConflict
	}

	created := *user
	created.ID = uuid.New().String()
	created.Email = key
	created.CreatedAt = time.Now()
	created.UpdatedAt = created.CreatedAt
	if created.Role == "" {
		created.Role = "customer"
	}
	if created.Status == "" {
		created.Status = "active"
	}

	r.byEmail[key] = &created
	out := created
	return &out, nil
}
