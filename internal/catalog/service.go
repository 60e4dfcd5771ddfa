// Package catalog is the read-only storefront view of products.
package catalog

import (
	"context"
	"strings"

	"github.com/trinislearning/hit339/internal/domain"
	"github.com/trinislearning/hit339/internal/repository"
	"golang.org/x/sync/singleflight"
)

type ProductLister interface {
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
}

type Service struct {
	repo ProductLister
	sfg  singleflight.Group // Collapses identical concurrent searches into one query
}

func NewService(repo ProductLister) *Service {
	return &Service{repo: repo}
}

// List returns products matching the filter ordered by name. Category must match
// exactly; Query is a case-insensitive substring of the name.
func (s *Service) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	filter.Query = strings.TrimSpace(filter.Query)
	filter.Category = strings.TrimSpace(filter.Category)

	key := filter.Category + "\x00" + strings.ToLower(filter.Query)
	// the shared query outlives any single caller; each caller still honours its own ctx
	ch := s.sfg.DoChan(key, func() (interface{}, error) {
		return s.repo.ListProducts(context.WithoutCancel(ctx), filter)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		return nil, res.Err
	}

	// callers sharing a flight get the same slice; hand each its own copy
	shared, _ := res.Val.([]*domain.Product)
	products := make([]*domain.Product, len(shared))
	for i, p := range shared {
		cp := *p
		products[i] = &cp
	}
	return products, nil
}

// Details returns repository.ErrProductNotFound for unknown ids.
func (s *Service) Details(ctx context.Context, id int64) (*domain.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

var _ ProductLister = (repository.ProductRepository)(nil)
