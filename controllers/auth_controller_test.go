package controllers

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace/config"
	"marketplace/models"
	"marketplace/repository"
)

type memUserRepo struct {
	byEmail map[string]*models.User
	nextID  int64
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byEmail: make(map[string]*models.User), nextID: 1}
}

func (m *memUserRepo) Create(_ context.Context, u *models.User) error {
	if _, exists := m.byEmail[u.Email]; exists {
		return fmt.Errorf("%w: email already registered", repository.ErrDuplicate)
	}
	u.ID = m.nextID
	m.nextID++
	m.byEmail[u.Email] = u
	return nil
}

func (m *memUserRepo) GetByID(_ context.Context, id int64) (*models.User, error) {
	for _, u := range m.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	u, ok := m.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (m *memUserRepo) ListVendors(context.Context) ([]models.User, error) {
	var out []models.User
	for _, u := range m.byEmail {
		if u.Role == models.RoleVendor {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *memUserRepo) Approve(ctx context.Context, id int64) (*models.User, error) {
	u, err := m.GetByID(ctx, id)
	if err != nil || u.Role != models.RoleVendor {
		return nil, repository.ErrNotFound
	}
	u.IsApproved = true
	return u, nil
}

func (m *memUserRepo) Delete(ctx context.Context, id int64) error {
	u, err := m.GetByID(ctx, id)
	if err != nil || u.Role != models.RoleVendor {
		return repository.ErrNotFound
	}
	delete(m.byEmail, u.Email)
	return nil
}

func authRouter(repo repository.UserRepository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{JWTSecret: "auth-test-secret", JWTExpiry: time.Hour}
	ac := NewAuthController(repo, cfg)

	r := gin.New()
	r.POST("/api/auth/register", ac.Register)
	r.POST("/api/auth/login", ac.Login)
	return r
}

const vendorRegistration = `{"name": "Vera", "email": "vera@shop.test", "password": "secret1", "role": "vendor"}`

func TestRegisterDuplicateEmail(t *testing.T) {
	r := authRouter(newMemUserRepo())

	w := postJSON(r, http.MethodPost, "/api/auth/register", vendorRegistration)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = postJSON(r, http.MethodPost, "/api/auth/register", vendorRegistration)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	r := authRouter(newMemUserRepo())
	w := postJSON(r, http.MethodPost, "/api/auth/register",
		`{"name": "X", "email": "x@test.example", "password": "secret1", "role": "superuser"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterStoresHashedPassword(t *testing.T) {
	repo := newMemUserRepo()
	r := authRouter(repo)

	w := postJSON(r, http.MethodPost, "/api/auth/register", vendorRegistration)
	require.Equal(t, http.StatusCreated, w.Code)

	u := repo.byEmail["vera@shop.test"]
	require.NotNil(t, u)
	assert.NotEqual(t, "secret1", u.PasswordHash)
	assert.NotEmpty(t, u.PasswordHash)
}

func TestLoginUnknownEmail(t *testing.T) {
	r := authRouter(newMemUserRepo())
	w := postJSON(r, http.MethodPost, "/api/auth/login",
		`{"email": "ghost@test.example", "password": "whatever"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// Vendor lifecycle: registration → login blocked until approval →
// approval → login succeeds.
func TestVendorApprovalGate(t *testing.T) {
	repo := newMemUserRepo()
	r := authRouter(repo)

	w := postJSON(r, http.MethodPost, "/api/auth/register", vendorRegistration)
	require.Equal(t, http.StatusCreated, w.Code)
	require.False(t, repo.byEmail["vera@shop.test"].IsApproved)

	login := `{"email": "vera@shop.test", "password": "secret1"}`

	w = postJSON(r, http.MethodPost, "/api/auth/login", login)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "not yet approved")

	_, err := repo.Approve(context.Background(), repo.byEmail["vera@shop.test"].ID)
	require.NoError(t, err)

	w = postJSON(r, http.MethodPost, "/api/auth/login", login)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "token")
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newMemUserRepo()
	r := authRouter(repo)

	w := postJSON(r, http.MethodPost, "/api/auth/register",
		`{"name": "Carl", "email": "carl@test.example", "password": "secret1"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = postJSON(r, http.MethodPost, "/api/auth/login",
		`{"email": "carl@test.example", "password": "wrong00"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid credentials")
}

func TestRegisterDefaultsToApprovedCustomer(t *testing.T) {
	repo := newMemUserRepo()
	r := authRouter(repo)

	w := postJSON(r, http.MethodPost, "/api/auth/register",
		`{"name": "Cara", "email": "cara@test.example", "password": "secret1"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	u := repo.byEmail["cara@test.example"]
	require.NotNil(t, u)
	assert.Equal(t, models.RoleCustomer, u.Role)
	assert.True(t, u.IsApproved)
}
