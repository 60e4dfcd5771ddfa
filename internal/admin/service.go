// Package admin implements the owner's product management.
package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/trinislearning/hit339/internal/domain"
	"github.com/trinislearning/hit339/internal/logger"
	"github.com/trinislearning/hit339/internal/repository"
)

type Service struct {
	repo          repository.ProductRepository
	images        ImageStore
	maxImageBytes int64
	log           logrus.FieldLogger
}

func NewService(repo repository.ProductRepository, images ImageStore, maxImageBytes int64, log logrus.FieldLogger) *Service {
	if maxImageBytes <= 0 {
		maxImageBytes = DefaultMaxImageBytes
	}
	return &Service{
		repo:          repo,
		images:        images,
		maxImageBytes: maxImageBytes,
		log:           log,
	}
}

// List returns every product ordered by name.
func (s *Service) List(ctx context.Context) ([]*domain.Product, error) {
	return s.repo.ListProducts(ctx, domain.ProductFilter{})
}

func (s *Service) Details(ctx context.Context, id int64) (*domain.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// Create validates the input and the optional image before writing anything.
func (s *Service) Create(ctx context.Context, in ProductInput, img *Upload) (*domain.Product, error) {
	in.normalize()
	if errs := s.validate(in, img); len(errs) > 0 {
		return nil, errs
	}

	p := &domain.Product{ImageURL: in.ImageURL}
	in.apply(p)

	if img != nil {
		url, err := s.images.Save(ctx, img.Content, img.Ext())
		if err != nil {
			return nil, err
		}
		p.ImageURL = url
	}

	if err := s.repo.CreateProduct(ctx, p); err != nil {
		if img != nil {
			s.discardImage(ctx, p.ImageURL)
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return p, nil
}

// Update replaces the product's fields. Without a new image the current image is kept;
// with one, the previous locally stored file is removed once the record is saved.
func (s *Service) Update(ctx context.Context, id int64, in ProductInput, img *Upload) (*domain.Product, error) {
	in.normalize()
	in.ImageURL = ""
	if errs := s.validate(in, img); len(errs) > 0 {
		return nil, errs
	}

	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	p := *existing
	in.apply(&p)

	if img != nil {
		url, err := s.images.Save(ctx, img.Content, img.Ext())
		if err != nil {
			return nil, err
		}
		p.ImageURL = url
	}

	if err := s.repo.UpdateProduct(ctx, &p); err != nil {
		if img != nil {
			s.discardImage(ctx, p.ImageURL)
		}
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	if img != nil && existing.ImageURL != "" {
		s.discardImage(ctx, existing.ImageURL)
	}
	return &p, nil
}

// Delete removes the product and then its locally stored image.
func (s *Service) Delete(ctx context.Context, id int64) error {
	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}

	if existing.ImageURL != "" {
		s.discardImage(ctx, existing.ImageURL)
	}
	return nil
}

func (s *Service) validate(in ProductInput, img *Upload) ValidationErrors {
	errs := in.Validate(nil)
	if img == nil {
		return errs
	}

	switch err := ValidateImage(img, s.maxImageBytes); {
	case errors.Is(err, ErrUnsupportedImage):
		errs.Add("image", "Only .jpg, .jpeg, .png, .gif, .webp are allowed.")
	case errors.Is(err, ErrImageTooLarge):
		errs.Add("image", fmt.Sprintf("Image too large (max %dMB).", s.maxImageBytes>>20))
	}
	return errs
}

// discardImage failures leave an orphaned file behind; the product data is already consistent.
func (s *Service) discardImage(ctx context.Context, url string) {
	if err := s.images.Delete(ctx, url); err != nil {
		logger.FromContext(ctx, s.log).WithError(err).WithField("image_url", url).Warn("failed to delete product image")
	}
}
