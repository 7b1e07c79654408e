package integration

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AdminToken is the static bearer token the test server accepts on /admin routes
const AdminToken = "integration-admin-token"

// TestUser generates unique test user credentials
func TestUser(suffix string) (email, password string) {
	email = fmt.Sprintf("test-%s-%s@example.com", uuid.NewString()[:8], suffix)
	password = "TestPassword123!"
	return
}

// Epoch is the fake clock start shared by integration tests
var Epoch = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
