package app

import (
	"context"
	"time"

	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/cache"
	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/clock"
	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type ProductRepository interface {
	CreateProduct(ctx context.Context, product domain.Product) error
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
	GetProductStock(ctx context.Context, productID string) (int, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	SumActiveHolds(ctx context.Context, productID string, now time.Time) (int, error)
}

const productInfoTTL = 5 * time.Minute

// ProductService serves the catalog and the live availability figure. Static
// fields (name, price) go through a short-lived cache; stock and the reserved
// sum are read fresh on every call.
type ProductService struct {
	repo   ProductRepository
	clock  clock.Clock
	cache  cache.Cache
	logger zerolog.Logger
}

func NewProductService(repo ProductRepository, clk clock.Clock, opts ...ProductServiceOption) *ProductService {
	svc := &ProductService{
		repo:   repo,
		clock:  clk,
		cache:  cache.Noop{},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type ProductServiceOption func(*ProductService)

func WithProductCache(c cache.Cache) ProductServiceOption {
	return func(s *ProductService) {
		if c != nil {
			s.cache = c
		}
	}
}

func WithProductLogger(l zerolog.Logger) ProductServiceOption {
	return func(s *ProductService) { s.logger = l }
}

type CreateProductInput struct {
	Name       string
	PriceCents int64
	Stock      int
}

func (s *ProductService) CreateProduct(ctx context.Context, in CreateProductInput) (domain.Product, error) {
	if in.Name == "" {
		return domain.Product{}, domain.ErrProductNameRequired
	}
	if in.PriceCents < 0 {
		return domain.Product{}, domain.ErrInvalidPrice
	}
	if in.Stock < 0 {
		return domain.Product{}, domain.ErrInvalidStock
	}

	product := domain.Product{
		ID:         uuid.NewString(),
		Name:       in.Name,
		PriceCents: in.PriceCents,
		Stock:      in.Stock,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

func (s *ProductService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

// ProductView is the storefront projection: static fields plus the live
// availability figure, clamped at zero for display.
type ProductView struct {
	ID             string
	Name           string
	PriceCents     int64
	AvailableStock int
}

func (s *ProductService) GetProduct(ctx context.Context, productID string) (ProductView, error) {
	if productID == "" {
		return ProductView{}, domain.ErrInvalidID
	}
	now := s.clock.Now()

	info, stock, err := s.productInfo(ctx, productID)
	if err != nil {
		return ProductView{}, err
	}

	reserved, err := s.repo.SumActiveHolds(ctx, productID, now)
	if err != nil {
		return ProductView{}, err
	}

	return ProductView{
		ID:             info.ID,
		Name:           info.Name,
		PriceCents:     info.PriceCents,
		AvailableStock: domain.AvailableStock(stock, reserved),
	}, nil
}

// GetAvailability computes the live availability figure with no cache in the
// path at all.
func (s *ProductService) GetAvailability(ctx context.Context, productID string) (int, error) {
	if productID == "" {
		return 0, domain.ErrInvalidID
	}
	now := s.clock.Now()

	stock, err := s.repo.GetProductStock(ctx, productID)
	if err != nil {
		return 0, err
	}
	reserved, err := s.repo.SumActiveHolds(ctx, productID, now)
	if err != nil {
		return 0, err
	}
	return domain.AvailableStock(stock, reserved), nil
}

// productInfo resolves static fields through the cache and always reads
// committed stock from the store: stock mutates at settlement and must never
// be served from a stale entry.
func (s *ProductService) productInfo(ctx context.Context, productID string) (cache.ProductInfo, int, error) {
	cached, err := s.cache.GetProductInfo(ctx, productID)
	if err != nil {
		s.logger.Warn().Err(err).Str("product_id", productID).Msg("product info cache read failed")
		cached = nil
	}
	if cached != nil {
		stock, err := s.repo.GetProductStock(ctx, productID)
		if err != nil {
			return cache.ProductInfo{}, 0, err
		}
		return *cached, stock, nil
	}

	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return cache.ProductInfo{}, 0, err
	}
	info := cache.ProductInfo{
		ID:         product.ID,
		Name:       product.Name,
		PriceCents: product.PriceCents,
	}
	if err := s.cache.SetProductInfo(ctx, info, productInfoTTL); err != nil {
		s.logger.Warn().Err(err).Str("product_id", productID).Msg("product info cache write failed")
	}
	return info, product.Stock, nil
}
