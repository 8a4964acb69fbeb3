package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"marketplace/models"
	"marketplace/repository"
)

const (
	allProductsKey = "products:active"
	notFoundMarker = "notfound"
)

// CachedProductRepository is a read-through cache in front of the SQL
// product repository. Redis failures degrade to the database, never to
// an error.
type CachedProductRepository struct {
	realRepo repository.ProductRepository
	redis    *redis.Client
	ttl      time.Duration
}

func NewCachedProductRepository(realRepo repository.ProductRepository, rdb *redis.Client) *CachedProductRepository {
	return &CachedProductRepository{
		realRepo: realRepo,
		redis:    rdb,
		ttl:      5 * time.Minute,
	}
}

func productKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}

func (c *CachedProductRepository) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	key := productKey(id)

	data, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if string(data) == notFoundMarker {
			return nil, repository.ErrNotFound
		}
		var product models.Product
		if err := json.Unmarshal(data, &product); err != nil {
			log.Printf("Failed to unmarshal cached product (continuing with DB): %v", err)
			break
		}
		return &product, nil
	case errors.Is(err, redis.Nil):
	default:
		log.Printf("Redis error (continuing with DB): %v", err)
	}

	product, err := c.realRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			if setErr := c.redis.Set(ctx, key, notFoundMarker, time.Minute).Err(); setErr != nil {
				log.Printf("Failed to cache notfound: %v", setErr)
			}
		}
		return nil, err
	}

	if jsonData, err := json.Marshal(product); err == nil {
		if err := c.redis.Set(ctx, key, jsonData, c.ttl).Err(); err != nil {
			log.Printf("Failed to cache product: %v", err)
		}
	}
	return product, nil
}

func (c *CachedProductRepository) ListActive(ctx context.Context) ([]models.Product, error) {
	data, err := c.redis.Get(ctx, allProductsKey).Bytes()
	if err == nil {
		var products []models.Product
		if err := json.Unmarshal(data, &products); err == nil {
			return products, nil
		}
		log.Printf("Failed to unmarshal cached product list (continuing with DB)")
	} else if !errors.Is(err, redis.Nil) {
		log.Printf("Redis error (continuing with DB): %v", err)
	}

	products, err := c.realRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	if jsonData, err := json.Marshal(products); err == nil {
		if err := c.redis.Set(ctx, allProductsKey, jsonData, c.ttl).Err(); err != nil {
			log.Printf("Failed to cache product list: %v", err)
		}
	}
	return products, nil
}

func (c *CachedProductRepository) Create(ctx context.Context, product *models.Product) error {
	if err := c.realRepo.Create(ctx, product); err != nil {
		return err
	}
	c.InvalidateProduct(ctx, product.ID)
	return nil
}

func (c *CachedProductRepository) Update(ctx context.Context, product *models.Product) error {
	if err := c.realRepo.Update(ctx, product); err != nil {
		return err
	}
	c.InvalidateProduct(ctx, product.ID)
	return nil
}

func (c *CachedProductRepository) Delete(ctx context.Context, id int64) error {
	if err := c.realRepo.Delete(ctx, id); err != nil {
		return err
	}
	c.InvalidateProduct(ctx, id)
	return nil
}

// InvalidateProduct drops the cached entry and the list. Also called by
// the order handlers after stock changes, which bypass this repository.
func (c *CachedProductRepository) InvalidateProduct(ctx context.Context, id int64) {
	if err := c.redis.Del(ctx, productKey(id), allProductsKey).Err(); err != nil {
		log.Printf("Failed to invalidate product cache %d: %v", id, err)
	}
}
