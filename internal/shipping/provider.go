package shipping

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	domain "github.com/clovermart/api/internal/domain"
)

// ErrMethodNotFound indicates no shipping method carries the requested ID.
var ErrMethodNotFound = errors.New("shipping: method not found")

// ErrEmptyTable indicates the rate table defines no methods.
var ErrEmptyTable = errors.New("shipping: rate table defines no methods")

type tableDocument struct {
	Methods []methodDocument `yaml:"methods"`
}

type methodDocument struct {
	ID    string         `yaml:"id"`
	Name  string         `yaml:"name"`
	Zones []zoneDocument `yaml:"zones"`
}

type zoneDocument struct {
	Name      string   `yaml:"name"`
	Countries []string `yaml:"countries"`
	Rate      int64    `yaml:"rate"`
}

// TableProvider serves shipping methods from a rate table loaded once at
// startup. Lookups are read-only after construction.
type TableProvider struct {
	methods map[string]domain.ShippingMethod
}

// NewTableProvider parses a YAML rate table and validates every method entry.
func NewTableProvider(data []byte) (*TableProvider, error) {
	var doc tableDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("shipping: parse rate table: %w", err)
	}
	if len(doc.Methods) == 0 {
		return nil, ErrEmptyTable
	}

	methods := make(map[string]domain.ShippingMethod, len(doc.Methods))
	for _, entry := range doc.Methods {
		id := strings.ToLower(strings.TrimSpace(entry.ID))
		if id == "" {
			return nil, errors.New("shipping: method id is required")
		}
		if _, exists := methods[id]; exists {
			return nil, fmt.Errorf("shipping: duplicate method %q", id)
		}
		if len(entry.Zones) == 0 {
			return nil, fmt.Errorf("shipping: method %q defines no zones", id)
		}

		zones := make([]domain.ShippingZone, 0, len(entry.Zones))
		for _, zone := range entry.Zones {
			if zone.Rate < 0 {
				return nil, fmt.Errorf("shipping: method %q has a negative rate", id)
			}
			countries := make([]string, 0, len(zone.Countries))
			for _, country := range zone.Countries {
				trimmed := strings.ToUpper(strings.TrimSpace(country))
				if trimmed == "" {
					continue
				}
				countries = append(countries, trimmed)
			}
			zones = append(zones, domain.ShippingZone{
				Name:      strings.TrimSpace(zone.Name),
				Countries: countries,
				Rate:      zone.Rate,
			})
		}

		methods[id] = domain.ShippingMethod{
			ID:    id,
			Name:  strings.TrimSpace(entry.Name),
			Zones: zones,
		}
	}

	return &TableProvider{methods: methods}, nil
}

// NewTableProviderFromFile loads the rate table from disk.
func NewTableProviderFromFile(path string) (*TableProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("shipping: read rate table: %w", err)
	}
	return NewTableProvider(data)
}

// GetMethod resolves a shipping method by its case-insensitive ID.
func (p *TableProvider) GetMethod(_ context.Context, methodID string) (domain.ShippingMethod, error) {
	if p == nil || len(p.methods) == 0 {
		return domain.ShippingMethod{}, ErrEmptyTable
	}
	method, ok := p.methods[strings.ToLower(strings.TrimSpace(methodID))]
	if !ok {
		return domain.ShippingMethod{}, fmt.Errorf("%w: %s", ErrMethodNotFound, methodID)
	}
	return method, nil
}
