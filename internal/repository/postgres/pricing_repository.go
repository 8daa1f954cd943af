package postgres

import (
	"context"
	"fmt"

	"github.com/agenttrace/spanengine/internal/domain"
	"github.com/agenttrace/spanengine/internal/pkg/database"
)

// PricesTableDDL creates the model price table
const PricesTableDDL = `
	CREATE TABLE IF NOT EXISTS llm_prices (
		model                 TEXT PRIMARY KEY,
		provider              TEXT NOT NULL DEFAULT '',
		input_price_per_1k    DOUBLE PRECISION NOT NULL DEFAULT 0,
		output_price_per_1k   DOUBLE PRECISION NOT NULL DEFAULT 0,
		updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// PricingRepository reads and writes the llm_prices table
type PricingRepository struct {
	db *database.PostgresDB
}

// NewPricingRepository creates a new pricing repository
func NewPricingRepository(db *database.PostgresDB) *PricingRepository {
	return &PricingRepository{db: db}
}

// EnsureSchema creates the price table if needed
func (r *PricingRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Pool.Exec(ctx, PricesTableDDL); err != nil {
		return fmt.Errorf("failed to create llm_prices: %w", err)
	}
	return nil
}

// ListPrices returns every stored model price
func (r *PricingRepository) ListPrices(ctx context.Context) ([]domain.ModelPricing, error) {
	query := `
		SELECT model, provider, input_price_per_1k, output_price_per_1k
		FROM llm_prices
		ORDER BY model
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list prices: %w", err)
	}
	defer rows.Close()

	var prices []domain.ModelPricing
	for rows.Next() {
		var p domain.ModelPricing
		if err := rows.Scan(&p.Model, &p.Provider, &p.InputPricePer1K, &p.OutputPricePer1K); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list prices: %w", err)
	}

	return prices, nil
}

// Upsert stores the price of a model, replacing any previous one
func (r *PricingRepository) Upsert(ctx context.Context, price domain.ModelPricing) error {
	query := `
		INSERT INTO llm_prices (model, provider, input_price_per_1k, output_price_per_1k, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (model) DO UPDATE SET
			provider = EXCLUDED.provider,
			input_price_per_1k = EXCLUDED.input_price_per_1k,
			output_price_per_1k = EXCLUDED.output_price_per_1k,
			updated_at = now()
	`

	if _, err := r.db.Pool.Exec(ctx, query, price.Model, price.Provider, price.InputPricePer1K, price.OutputPricePer1K); err != nil {
		return fmt.Errorf("failed to upsert price: %w", err)
	}
	return nil
}

// Delete removes the price of a model
func (r *PricingRepository) Delete(ctx context.Context, model string) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM llm_prices WHERE model = $1`, model); err != nil {
		return fmt.Errorf("failed to delete price: %w", err)
	}
	return nil
}
