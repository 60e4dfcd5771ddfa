package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/trinislearning/hit339/internal/domain"
	"github.com/trinislearning/hit339/internal/logger"
	"github.com/trinislearning/hit339/internal/repository"
)

const (
	DefaultOwnerEmail    = "owner@easygames.local"
	DefaultOwnerPassword = "Owner#123"
)

type SeedConfig struct {
	OwnerEmail    string
	OwnerPassword string
	// ProductsFile is a JSON array of products. Missing or unreadable files fall
	// back to a small built-in catalog.
	ProductsFile string
}

type seedProduct struct {
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	ImageURL    string          `json:"imageUrl"`
	Description string          `json:"description"`
}

var fallbackProducts = []seedProduct{
	{
		Name:        "Harry Potter and the Philosopher's Stone",
		Category:    domain.CategoryBook,
		Price:       decimal.RequireFromString("22.99"),
		Stock:       50,
		ImageURL:    "https://via.placeholder.com/900x650?text=Book",
		Description: "Classic fantasy novel.",
	},
	{
		Name:        "Catan Board Game",
		Category:    domain.CategoryGame,
		Price:       decimal.RequireFromString("41.99"),
		Stock:       25,
		ImageURL:    "https://via.placeholder.com/900x650?text=Game",
		Description: "Strategy board game.",
	},
	{
		Name:        "Lego Race Car",
		Category:    domain.CategoryToy,
		Price:       decimal.RequireFromString("49.99"),
		Stock:       15,
		ImageURL:    "https://via.placeholder.com/900x650?text=Toy",
		Description: "Buildable toy car.",
	},
}

// Seed ensures the owner account exists and adds catalog products whose names
// are not present yet. It is safe to run on every start.
func (s *Service) Seed(ctx context.Context, products repository.ProductRepository, cfg SeedConfig) error {
	log := logger.FromContext(ctx, s.log)

	if cfg.OwnerEmail == "" {
		cfg.OwnerEmail = DefaultOwnerEmail
	}
	if cfg.OwnerPassword == "" {
		cfg.OwnerPassword = DefaultOwnerPassword
	}

	_, err := s.users.GetUserByEmail(ctx, cfg.OwnerEmail)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		owner, err := s.createUser(ctx, cfg.OwnerEmail, cfg.OwnerPassword, "Site Owner", domain.RoleOwner)
		if err != nil {
			return fmt.Errorf("failed to create owner: %w", err)
		}
		log.WithField("user_id", owner.ID).Info("owner account created")
	case err != nil:
		return fmt.Errorf("failed to look up owner: %w", err)
	}

	desired := s.loadSeedProducts(ctx, cfg.ProductsFile)
	if len(desired) == 0 {
		desired = fallbackProducts
	}

	existing, err := products.ListProducts(ctx, domain.ProductFilter{})
	if err != nil {
		return fmt.Errorf("failed to list products: %w", err)
	}
	names := make(map[string]bool, len(existing))
	for _, p := range existing {
		names[strings.ToLower(p.Name)] = true
	}

	added := 0
	for _, sp := range desired {
		name := strings.TrimSpace(sp.Name)
		if name == "" || names[strings.ToLower(name)] {
			continue
		}
		p := &domain.Product{
			Name:        name,
			Category:    sp.Category,
			Price:       sp.Price,
			Stock:       sp.Stock,
			ImageURL:    sp.ImageURL,
			Description: sp.Description,
		}
		if err := products.CreateProduct(ctx, p); err != nil {
			return fmt.Errorf("failed to seed product %q: %w", name, err)
		}
		names[strings.ToLower(name)] = true
		added++
	}

	if added > 0 {
		log.WithField("count", added).Info("seeded products")
	}
	return nil
}

func (s *Service) loadSeedProducts(ctx context.Context, path string) []seedProduct {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.FromContext(ctx, s.log).WithError(err).Warn("cannot read seed products")
		}
		return nil
	}

	var products []seedProduct
	if err := json.Unmarshal(data, &products); err != nil {
		logger.FromContext(ctx, s.log).WithError(err).Warn("ignoring malformed seed products")
		return nil
	}
	return products
}
