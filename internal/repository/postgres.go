package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/foodanalyzer/food-analyzer/internal/domain"
)

// PostgresProductRepository reads product records from Postgres. Nutriments
// are stored as jsonb; allergen and label tags as text arrays.
type PostgresProductRepository struct {
	db *sql.DB
}

func NewPostgresProductRepository(db *sql.DB) *PostgresProductRepository {
	return &PostgresProductRepository{db: db}
}

func (r *PostgresProductRepository) GetByCode(ctx context.Context, code, language string) (*domain.Product, error) {
	query := `
		SELECT product_code, language, product_name, ingredients, additives,
		       allergens_tags, nutriments, labels_tags, categories,
		       nutriscore_grade, nova_group
		FROM products
		WHERE product_code = $1 AND language = $2
	`

	var p domain.Product
	var name, ingredients, additives, categories, nutriScore sql.NullString
	var novaGroup sql.NullInt64
	var allergens, labels pq.StringArray
	var nutriments []byte

	err := r.db.QueryRowContext(ctx, query, code, language).Scan(
		&p.Code,
		&p.Language,
		&name,
		&ingredients,
		&additives,
		&allergens,
		&nutriments,
		&labels,
		&categories,
		&nutriScore,
		&novaGroup,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}

	p.Name = name.String
	p.Ingredients = ingredients.String
	p.Additives = additives.String
	p.Categories = categories.String
	p.NutriScore = nutriScore.String
	p.NovaGroup = int(novaGroup.Int64)
	p.Allergens = []string(allergens)
	p.Labels = []string(labels)

	if len(nutriments) > 0 {
		if err := json.Unmarshal(nutriments, &p.Nutriments); err != nil {
			return nil, fmt.Errorf("decode nutriments: %w", err)
		}
	}

	return &p, nil
}

func (r *PostgresProductRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
