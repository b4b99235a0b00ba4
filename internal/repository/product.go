// Package repository reads product records from the product datastore. The
// datastore is maintained by the ingestion pipeline; this service only reads.
package repository

import (
	"context"
	"strings"
	"sync"

	"github.com/foodanalyzer/food-analyzer/internal/domain"
)

// ProductRepository looks up one product record by code and language.
// A missing record is reported as domain.ErrProductNotFound, not a nil
// product.
type ProductRepository interface {
	GetByCode(ctx context.Context, code, language string) (*domain.Product, error)
}

// InMemoryProductRepository serves products from a map. Used in tests and in
// local development without a database.
type InMemoryProductRepository struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
}

func NewInMemoryProductRepository() *InMemoryProductRepository {
	return &InMemoryProductRepository{
		products: make(map[string]*domain.Product),
	}
}

func (r *InMemoryProductRepository) GetByCode(ctx context.Context, code, language string) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[productKey(code, language)]
	if !ok {
		return nil, domain.ErrProductNotFound
	}

	copied := *p
	return &copied, nil
}

func (r *InMemoryProductRepository) Put(p *domain.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *p
	r.products[productKey(p.Code, p.Language)] = &copied
}

func productKey(code, language string) string {
	return code + "|" + strings.ToLower(language)
}
