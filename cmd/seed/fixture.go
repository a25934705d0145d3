package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

type catalogFixture struct {
	Products []productFixture `yaml:"products"`
}

type productFixture struct {
	Name        string   `yaml:"name"`
	Price       string   `yaml:"price"`
	Category    string   `yaml:"category"`
	Color       string   `yaml:"color"`
	Sizes       []string `yaml:"sizes"`
	ImageURL    string   `yaml:"imageUrl"`
	Images      []string `yaml:"images"`
	Description string   `yaml:"description"`
	AIHint      string   `yaml:"aiHint"`
}

func loadCatalog(path string) ([]models.Product, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog fixture: %w", err)
	}
	return parseCatalog(raw)
}

func parseCatalog(raw []byte) ([]models.Product, error) {
	var fixture catalogFixture
	if err := yaml.Unmarshal(raw, &fixture); err != nil {
		return nil, fmt.Errorf("decode catalog fixture: %w", err)
	}

	out := make([]models.Product, 0, len(fixture.Products))
	for i, p := range fixture.Products {
		product, err := p.toModel()
		if err != nil {
			return nil, fmt.Errorf("product %d (%q): %w", i, p.Name, err)
		}
		out = append(out, product)
	}
	return out, nil
}

func (p productFixture) toModel() (models.Product, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return models.Product{}, fmt.Errorf("name is required")
	}
	price, err := decimal.NewFromString(strings.TrimSpace(p.Price))
	if err != nil {
		return models.Product{}, fmt.Errorf("invalid price: %w", err)
	}
	if !price.IsPositive() {
		return models.Product{}, fmt.Errorf("price must be positive")
	}
	if len(p.Sizes) == 0 {
		return models.Product{}, fmt.Errorf("at least one size is required")
	}

	images := p.Images
	if len(images) == 0 && p.ImageURL != "" {
		images = []string{p.ImageURL}
	}
	imageURL := p.ImageURL
	if imageURL == "" && len(images) > 0 {
		imageURL = images[0]
	}

	return models.Product{
		Name:        name,
		Price:       price.Round(2),
		Category:    strings.TrimSpace(p.Category),
		Color:       strings.TrimSpace(p.Color),
		Sizes:       p.Sizes,
		ImageURL:    imageURL,
		Images:      images,
		Description: p.Description,
		AIHint:      p.AIHint,
	}, nil
}
