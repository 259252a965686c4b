package catalog

import (
	"context"
)

// RepositoryPort abstracts repository usage for service and for other
// modules that only need lookups.
type RepositoryPort interface {
	GetProduct(ctx context.Context, id int64) (Product, error)
	GetProducts(ctx context.Context, ids []int64) (map[int64]Product, error)
	ListProducts(ctx context.Context, limit, offset int) ([]Product, int, error)
	GetLocation(ctx context.Context, id int64) (Location, error)
	ListLocations(ctx context.Context, kind LocationKind) ([]Location, error)
	Warehouse(ctx context.Context) (Location, error)
}

// Service serves catalog reads. The catalog itself is maintained elsewhere;
// the fulfillment engine only ever consumes it.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) GetProducts(ctx context.Context, ids []int64) (map[int64]Product, error) {
	return s.repo.GetProducts(ctx, ids)
}

func (s *Service) ListProducts(ctx context.Context, limit, offset int) ([]Product, int, error) {
	return s.repo.ListProducts(ctx, limit, offset)
}

func (s *Service) GetLocation(ctx context.Context, id int64) (Location, error) {
	return s.repo.GetLocation(ctx, id)
}

func (s *Service) ListLocations(ctx context.Context, kind LocationKind) ([]Location, error) {
	return s.repo.ListLocations(ctx, kind)
}

func (s *Service) Warehouse(ctx context.Context) (Location, error) {
	return s.repo.Warehouse(ctx)
}
