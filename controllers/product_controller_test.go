package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace/models"
	"marketplace/repository"
)

// memProductRepo is an in-memory stand-in for the SQL product repository.
// GetByID returns copies so handler mutations never alias stored rows.
type memProductRepo struct {
	products map[int64]*models.Product
	nextID   int64
}

func newMemProductRepo(products ...*models.Product) *memProductRepo {
	m := &memProductRepo{products: make(map[int64]*models.Product), nextID: 1}
	for _, p := range products {
		if p.ID == 0 {
			p.ID = m.nextID
		}
		if p.ID >= m.nextID {
			m.nextID = p.ID + 1
		}
		m.products[p.ID] = p
	}
	return m
}

func (m *memProductRepo) Create(_ context.Context, product *models.Product) error {
	product.ID = m.nextID
	m.nextID++
	cp := *product
	m.products[cp.ID] = &cp
	return nil
}

func (m *memProductRepo) GetByID(_ context.Context, id int64) (*models.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProductRepo) ListActive(context.Context) ([]models.Product, error) {
	var out []models.Product
	for _, p := range m.products {
		if p.IsActive {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memProductRepo) Update(_ context.Context, product *models.Product) error {
	if _, ok := m.products[product.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *product
	m.products[cp.ID] = &cp
	return nil
}

func (m *memProductRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.products[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.products, id)
	return nil
}

// staleReadRepo serves reads with an out-of-date stock value, the way a
// cache hit can while an order commit is still being invalidated.
type staleReadRepo struct {
	repository.ProductRepository
	stock int
}

func (s *staleReadRepo) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	p, err := s.ProductRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	cp := *p
	cp.Stock = s.stock
	return &cp, nil
}

func productRouter(products, store repository.ProductRepository, callerID int64, role models.Role, uploadDir string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	pc := NewProductController(products, store, uploadDir)

	r := gin.New()
	r.Use(asCaller(callerID, role))
	r.GET("/api/products", pc.GetAll)
	r.GET("/api/products/:id", pc.GetByID)
	r.PUT("/api/products/:id", pc.Update)
	r.DELETE("/api/products/:id", pc.Delete)
	return r
}

func postForm(r *gin.Engine, method, path, form string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUpdateProductKeepsLiveStock(t *testing.T) {
	store := newMemProductRepo(&models.Product{VendorID: 20, Name: "Keyboard", Price: 50, Stock: 4, IsActive: true})
	cached := &staleReadRepo{ProductRepository: store, stock: 10}
	r := productRouter(cached, store, 20, models.RoleVendor, t.TempDir())

	w := postForm(r, http.MethodPut, "/api/products/1", "name=Mechanical+Keyboard")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	p, err := store.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Mechanical Keyboard", p.Name)
	assert.Equal(t, 4, p.Stock)
}

func TestUpdateProductExplicitStock(t *testing.T) {
	store := newMemProductRepo(&models.Product{VendorID: 20, Name: "Keyboard", Price: 50, Stock: 4, IsActive: true})
	r := productRouter(store, store, 20, models.RoleVendor, t.TempDir())

	w := postForm(r, http.MethodPut, "/api/products/1", "stock=25")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	p, err := store.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 25, p.Stock)
}

func TestUpdateProductWrongVendor(t *testing.T) {
	store := newMemProductRepo(&models.Product{VendorID: 20, Name: "Keyboard", Price: 50, Stock: 4, IsActive: true})
	r := productRouter(store, store, 21, models.RoleVendor, t.TempDir())

	w := postForm(r, http.MethodPut, "/api/products/1", "name=Hijacked")
	assert.Equal(t, http.StatusForbidden, w.Code)

	p, err := store.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Keyboard", p.Name)
}

func TestDeleteProductWrongVendor(t *testing.T) {
	store := newMemProductRepo(&models.Product{VendorID: 20, Name: "Keyboard", Price: 50, Stock: 4, IsActive: true})
	r := productRouter(store, store, 21, models.RoleVendor, t.TempDir())

	w := postForm(r, http.MethodDelete, "/api/products/1", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	_, err := store.GetByID(context.Background(), 1)
	assert.NoError(t, err)
}
