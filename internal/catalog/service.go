package catalog

import (
	"context"
	"errors"
	"fmt"
)

// Reader is the repo surface the service consumes.
type Reader interface {
	ProductsByID(ctx context.Context, ids []int64) (map[int64]Product, error)
	Product(ctx context.Context, id int64) (Product, error)
	List(ctx context.Context, limit, offset int) ([]Product, error)
	Count(ctx context.Context) (int64, error)
}

// Service layers a read-through cache over the catalog repo.
type Service struct {
	repo  Reader
	cache *Cache
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Repo  Reader
	Cache *Cache
}

// NewService constructs the catalog service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Repo == nil {
		return nil, errors.New("catalog: repo is required")
	}
	return &Service{repo: cfg.Repo, cache: cfg.Cache}, nil
}

// Get returns a single product, served from cache when possible.
func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	key := cacheKey(id)
	var cached Product
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	product, err := s.repo.Product(ctx, id)
	if err != nil {
		return Product{}, err
	}
	_ = s.cache.SetJSON(ctx, key, product)
	return product, nil
}

// List returns a page of products and the total catalog size.
func (s *Service) List(ctx context.Context, page, perPage int) ([]Product, int64, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	products, err := s.repo.List(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// ProductsByID exposes uncached bulk reads for the pricing engine. Pricing
// always reads fresh rows so a quote never reflects a stale discount.
func (s *Service) ProductsByID(ctx context.Context, ids []int64) (map[int64]Product, error) {
	return s.repo.ProductsByID(ctx, ids)
}

func cacheKey(id int64) string {
	return fmt.Sprintf("catalog:product:%d", id)
}
