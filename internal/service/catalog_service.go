package service

import (
	"context"
	"time"

	"ecommerce-api/internal/domain"
	"ecommerce-api/internal/repository"
)

// ProductUpdate carries a partial product change. Nil fields are left
// untouched.
type ProductUpdate struct {
	Name       *string
	Price      *float64
	CategoryID *int64
}

// ProductService defines the interface for product business logic
type ProductService interface {
	List(ctx context.Context) ([]*domain.Product, error)
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	Create(ctx context.Context, name string, price float64, categoryID *int64) (*domain.Product, error)
	Update(ctx context.Context, id int64, update ProductUpdate) (*domain.Product, error)
	Delete(ctx context.Context, id int64) error
}

type productService struct {
	productRepo repository.ProductRepository
}

// NewProductService creates a new instance of ProductService
func NewProductService(productRepo repository.ProductRepository) ProductService {
	return &productService{productRepo: productRepo}
}

func (s *productService) List(ctx context.Context) ([]*domain.Product, error) {
	return s.productRepo.List(ctx)
}

func (s *productService) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	return s.productRepo.FindByID(ctx, id)
}

func (s *productService) Create(ctx context.Context, name string, price float64, categoryID *int64) (*domain.Product, error) {
	now := time.Now()
	product := &domain.Product{
		Name:       name,
		Price:      price,
		CategoryID: categoryID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, err
	}

	return product, nil
}

func (s *productService) Update(ctx context.Context, id int64, update ProductUpdate) (*domain.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		product.Name = *update.Name
	}
	if update.Price != nil {
		product.Price = *update.Price
	}
	if update.CategoryID != nil {
		product.CategoryID = update.CategoryID
	}
	product.UpdatedAt = time.Now()

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, err
	}

	return product, nil
}

func (s *productService) Delete(ctx context.Context, id int64) error {
	return s.productRepo.Delete(ctx, id)
}

// CategoryService defines the interface for category business logic
type CategoryService interface {
	List(ctx context.Context) ([]*domain.Category, error)
	GetByID(ctx context.Context, id int64) (*domain.Category, error)
	Create(ctx context.Context, name string) (*domain.Category, error)
	Update(ctx context.Context, id int64, name *string) (*domain.Category, error)
	Delete(ctx context.Context, id int64) error
}

type categoryService struct {
	categoryRepo repository.CategoryRepository
}

// NewCategoryService creates a new instance of CategoryService
func NewCategoryService(categoryRepo repository.CategoryRepository) CategoryService {
	return &categoryService{categoryRepo: categoryRepo}
}

func (s *categoryService) List(ctx context.Context) ([]*domain.Category, error) {
	return s.categoryRepo.List(ctx)
}

func (s *categoryService) GetByID(ctx context.Context, id int64) (*domain.Category, error) {
	return s.categoryRepo.FindByID(ctx, id)
}

func (s *categoryService) Create(ctx context.Context, name string) (*domain.Category, error) {
	category := &domain.Category{
		Name:      name,
		CreatedAt: time.Now(),
	}

	if err := s.categoryRepo.Create(ctx, category); err != nil {
		return nil, err
	}

	return category, nil
}

func (s *categoryService) Update(ctx context.Context, id int64, name *string) (*domain.Category, error) {
	category, err := s.categoryRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if name != nil {
		category.Name = *name
	}

	if err := s.categoryRepo.Update(ctx, category); err != nil {
		return nil, err
	}

	return category, nil
}

func (s *categoryService) Delete(ctx context.Context, id int64) error {
	return s.categoryRepo.Delete(ctx, id)
}
