package catalog

import (
	"testing"
)

const sampleSeed = `
sales:
  site_wide_enabled: true
  site_wide_percent: "10"
  categories:
    Apparel: "20"
products:
  - name: "Team Hoodie"
    description: "Heavyweight hoodie with the triple barrel crest"
    category: "Apparel"
    price: 65.00
    sizes:
      S: 4
      M: 6
      L: 0
    featured: true
    images: ["/uploads/hoodie-front.jpg"]
  - name: "Die-cut Sticker"
    category: "Stickers"
    price: "5.00"
    sale_percent: "0"
    stock: 120
events:
  - name: "Grassroots Drift Day"
    date: 2026-06-14T09:00:00Z
    location: "Shannonville Motorsport Park"
    ticket_price: "40"
parts:
  - name: "S13 Knuckle Set"
    price: "450.00"
    car_model: "240SX"
    year: "1993"
    condition: used
    stock: 1
`

func TestParser_Parse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{
			name:    "valid catalog",
			yaml:    sampleSeed,
			wantErr: false,
		},
		{
			name:    "invalid yaml",
			yaml:    "invalid: yaml: content:",
			wantErr: true,
		},
	}

	parser := NewParser()

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			seed, err := parser.ParseFromString(tt.yaml)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(seed.Products) != 2 {
				t.Fatalf("expected 2 products, got %d", len(seed.Products))
			}
			if seed.Products[0].Price != "65.00" {
				t.Fatalf("expected literal price 65.00, got %q", seed.Products[0].Price)
			}
			if seed.Products[0].Sizes["M"] != 6 {
				t.Fatalf("expected 6 medium hoodies, got %d", seed.Products[0].Sizes["M"])
			}
			if seed.Products[1].SalePercent == nil || *seed.Products[1].SalePercent != "0" {
				t.Fatalf("expected explicit zero sale percent, got %v", seed.Products[1].SalePercent)
			}
			if len(seed.Events) != 1 || seed.Events[0].Date.IsZero() {
				t.Fatalf("expected one dated event, got %+v", seed.Events)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	t.Parallel()

	amount, err := ParseAmount("")
	if err != nil || !amount.IsZero() {
		t.Fatalf("ParseAmount(\"\") = %s, %v; want 0, nil", amount, err)
	}
	if _, err := ParseAmount("ten dollars"); err == nil {
		t.Fatal("expected error for non-numeric amount")
	}
}
