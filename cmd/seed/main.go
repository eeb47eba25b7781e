// Command seed applies the schema and loads a sample catalogue so the API can
// be exercised locally. It reads the same environment as the API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"online-shop/internal/config"
	"online-shop/internal/database"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type seedProduct struct {
	Title        string  `yaml:"title"`
	Description  string  `yaml:"description"`
	Price        string  `yaml:"price"`
	SalePrice    *string `yaml:"sale_price"`
	Stock        int     `yaml:"stock"`
	FreeDelivery bool    `yaml:"free_delivery"`
}

type seedCategory struct {
	Title    string        `yaml:"title"`
	Products []seedProduct `yaml:"products"`
}

type seedUser struct {
	Email    string `yaml:"email"`
	FullName string `yaml:"full_name"`
	Phone    string `yaml:"phone"`
}

type catalogue struct {
	Users      []seedUser     `yaml:"users"`
	Categories []seedCategory `yaml:"categories"`
}

var defaultCatalogue = catalogue{
	Users: []seedUser{
		{Email: "customer@example.com", FullName: "Sample Customer", Phone: "+70000000000"},
	},
	Categories: []seedCategory{
		{Title: "Kitchen", Products: []seedProduct{
			{Title: "Cup", Description: "Ceramic cup", Price: "150", Stock: 40},
			{Title: "Kettle", Description: "Electric kettle", Price: "2500", Stock: 8, FreeDelivery: true},
		}},
		{Title: "Home", Products: []seedProduct{
			{Title: "Lamp", Description: "Desk lamp", Price: "900", SalePrice: strPtr("750"), Stock: 12},
			{Title: "Chair", Description: "Wooden chair", Price: "1000", Stock: 5},
		}},
	},
}

func strPtr(s string) *string { return &s }

func main() {
	file := flag.String("file", "", "YAML catalogue to load instead of the built-in sample")
	flag.Parse()

	if err := run(*file); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(file string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := config.NewLogger(cfg.Logger)

	data := defaultCatalogue
	if file != "" {
		raw, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		data = catalogue{}
		if err := yaml.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("failed to parse %s: %w", file, err)
		}
	}

	ctx := context.Background()
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	products, err := load(ctx, pool, data)
	if err != nil {
		return err
	}

	logger.Info().
		Int("users", len(data.Users)).
		Int("categories", len(data.Categories)).
		Int("products", products).
		Msg("catalogue seeded")
	return nil
}

func load(ctx context.Context, pool *pgxpool.Pool, data catalogue) (int, error) {
	count := 0
	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		for _, u := range data.Users {
			if _, err := tx.Exec(ctx,
				`INSERT INTO users (email, full_name, phone) VALUES ($1, $2, $3) ON CONFLICT (email) DO NOTHING`,
				u.Email, u.FullName, u.Phone,
			); err != nil {
				return fmt.Errorf("failed to insert user %s: %w", u.Email, err)
			}
		}

		for _, c := range data.Categories {
			var categoryID int64
			if err := tx.QueryRow(ctx,
				`INSERT INTO categories (title) VALUES ($1) RETURNING id`, c.Title,
			).Scan(&categoryID); err != nil {
				return fmt.Errorf("failed to insert category %s: %w", c.Title, err)
			}

			for _, p := range c.Products {
				price, err := decimal.NewFromString(p.Price)
				if err != nil {
					return fmt.Errorf("invalid price for %s: %w", p.Title, err)
				}
				var salePrice *decimal.Decimal
				if p.SalePrice != nil {
					sp, err := decimal.NewFromString(*p.SalePrice)
					if err != nil {
						return fmt.Errorf("invalid sale price for %s: %w", p.Title, err)
					}
					salePrice = &sp
				}

				if _, err := tx.Exec(ctx, `
					INSERT INTO products (category_id, title, description, price, sale_price, stock, free_delivery)
					VALUES ($1, $2, $3, $4, $5, $6, $7)`,
					categoryID, p.Title, p.Description, price, salePrice, p.Stock, p.FreeDelivery,
				); err != nil {
					return fmt.Errorf("failed to insert product %s: %w", p.Title, err)
				}
				count++
			}
		}
		return nil
	})
	return count, err
}
