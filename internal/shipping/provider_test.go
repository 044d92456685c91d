package shipping

import (
	"context"
	"errors"
	"testing"
)

const sampleTable = `
methods:
  - id: standard
    name: Standard
    zones:
      - name: domestic
        countries: [us]
        rate: 500
      - name: international
        countries: [gb, de, jp]
        rate: 1500
  - id: express
    name: Express
    zones:
      - name: domestic
        countries: [US]
        rate: 1500
`

func TestGetMethodResolvesZoneRates(t *testing.T) {
	provider, err := NewTableProvider([]byte(sampleTable))
	if err != nil {
		t.Fatalf("NewTableProvider: %v", err)
	}

	method, err := provider.GetMethod(context.Background(), "Standard")
	if err != nil {
		t.Fatalf("GetMethod: %v", err)
	}
	if method.ID != "standard" {
		t.Fatalf("unexpected method id %q", method.ID)
	}

	rate, ok := method.RateFor("jp")
	if !ok || rate != 1500 {
		t.Fatalf("RateFor(jp) = %d, %v", rate, ok)
	}

	// Unknown destinations fall back to the first zone.
	rate, ok = method.RateFor("FR")
	if !ok || rate != 500 {
		t.Fatalf("RateFor(FR) = %d, %v", rate, ok)
	}
}

func TestGetMethodUnknownID(t *testing.T) {
	provider, err := NewTableProvider([]byte(sampleTable))
	if err != nil {
		t.Fatalf("NewTableProvider: %v", err)
	}

	if _, err := provider.GetMethod(context.Background(), "drone"); !errors.Is(err, ErrMethodNotFound) {
		t.Fatalf("expected ErrMethodNotFound, got %v", err)
	}
}

func TestNewTableProviderRejectsBadTables(t *testing.T) {
	cases := map[string]string{
		"empty":         `methods: []`,
		"missing id":    "methods:\n  - name: NoID\n    zones:\n      - countries: [US]\n        rate: 100\n",
		"no zones":      "methods:\n  - id: bare\n    name: Bare\n",
		"negative rate": "methods:\n  - id: neg\n    zones:\n      - countries: [US]\n        rate: -5\n",
		"duplicate":     "methods:\n  - id: a\n    zones:\n      - countries: [US]\n        rate: 1\n  - id: a\n    zones:\n      - countries: [US]\n        rate: 2\n",
	}
	for name, table := range cases {
		if _, err := NewTableProvider([]byte(table)); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestNewTableProviderFromFile(t *testing.T) {
	provider, err := NewTableProviderFromFile("testdata/shipping.yaml")
	if err != nil {
		t.Fatalf("NewTableProviderFromFile: %v", err)
	}

	if _, err := provider.GetMethod(context.Background(), "standard"); err != nil {
		t.Fatalf("GetMethod(standard): %v", err)
	}
}
