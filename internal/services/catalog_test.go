package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/triplebarrelracing/storefront/internal/catalog"
	"github.com/triplebarrelracing/storefront/internal/logging"
	"github.com/triplebarrelracing/storefront/internal/models"
)

func newTestCatalog() (*CatalogService, *testShop) {
	shop := newTestShop()
	return NewCatalogService(memoryProducts{shop.store}, shop.sales, logging.Discard()), shop
}

func TestCatalogService_ListProductsUsesOneSnapshot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	service, shop := newTestCatalog()
	if _, err := shop.sales.Update(ctx, saleInput(true, "10", map[string]string{"Stickers": "50"})); err != nil {
		t.Fatalf("update sales: %v", err)
	}
	shop.addProduct(&models.Product{Name: "A Hoodie", Category: "Apparel", BasePrice: dec("60.00"), Stock: 1})
	shop.addProduct(&models.Product{Name: "B Sticker", Category: "Stickers", BasePrice: dec("4.00"), Stock: 0})

	products, err := service.ListProducts(ctx, models.ProductFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("got %d products", len(products))
	}

	hoodie, sticker := products[0], products[1]
	if !hoodie.EffectivePrice.Equal(dec("54")) || hoodie.DiscountSource != catalog.SourceSiteWide || !hoodie.InStock {
		t.Fatalf("unexpected hoodie view: %+v", hoodie.PriceView)
	}
	if !sticker.EffectivePrice.Equal(dec("2")) || sticker.DiscountSource != catalog.SourceCategory || sticker.InStock {
		t.Fatalf("unexpected sticker view: %+v", sticker.PriceView)
	}

	encoded, err := json.Marshal(hoodie)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(encoded, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"id", "name", "price", "effective_price", "on_sale", "in_stock"} {
		if _, ok := fields[key]; !ok {
			t.Fatalf("priced product JSON missing %q: %s", key, encoded)
		}
	}
}

func TestCatalogService_PriceEventsNeverDiscounted(t *testing.T) {
	t.Parallel()

	service, _ := newTestCatalog()
	priced := service.PriceEvents([]*models.Event{{Name: "Spring Series", TicketPrice: dec("25.00")}})
	if len(priced) != 1 || !priced[0].EffectivePrice.Equal(dec("25")) || priced[0].OnSale {
		t.Fatalf("unexpected event pricing: %+v", priced)
	}
}

func TestCatalogService_UpdateProductPatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		start  *models.Product
		patch  string
		verify func(t *testing.T, p *models.Product)
	}{
		{
			name:  "absent fields are untouched",
			start: &models.Product{Name: "Cap", Category: "Apparel", BasePrice: dec("25.00"), SalePercent: decPtr("10"), Stock: 4},
			patch: `{"name":"Trucker Cap"}`,
			verify: func(t *testing.T, p *models.Product) {
				if p.Name != "Trucker Cap" || p.SalePercent == nil || !p.SalePercent.Equal(dec("10")) || p.Stock != 4 {
					t.Fatalf("unexpected product: %+v", p)
				}
			},
		},
		{
			name:  "null sale percent clears the override",
			start: &models.Product{Name: "Cap", Category: "Apparel", BasePrice: dec("25.00"), SalePercent: decPtr("10"), Stock: 4},
			patch: `{"sale_percent":null}`,
			verify: func(t *testing.T, p *models.Product) {
				if p.SalePercent != nil {
					t.Fatalf("sale percent = %s, want nil", p.SalePercent)
				}
			},
		},
		{
			name:  "sizes switch to sized stock",
			start: &models.Product{Name: "Tee", Category: "Apparel", BasePrice: dec("30.00"), Stock: 9},
			patch: `{"sizes":{"S":2,"M":3}}`,
			verify: func(t *testing.T, p *models.Product) {
				if p.StockModel() != models.StockSized || p.Stock != 0 || p.Sizes["M"] != 3 {
					t.Fatalf("unexpected stock: %d %v", p.Stock, p.Sizes)
				}
			},
		},
		{
			name:  "null sizes switch back to flat stock",
			start: &models.Product{Name: "Tee", Category: "Apparel", BasePrice: dec("30.00"), Sizes: map[string]int{"S": 2}},
			patch: `{"sizes":null,"stock":7}`,
			verify: func(t *testing.T, p *models.Product) {
				if p.StockModel() != models.StockFlat || p.Stock != 7 || p.Sizes != nil {
					t.Fatalf("unexpected stock: %d %v", p.Stock, p.Sizes)
				}
			},
		},
		{
			name:  "flat stock ignored while sized",
			start: &models.Product{Name: "Tee", Category: "Apparel", BasePrice: dec("30.00"), Sizes: map[string]int{"S": 2}},
			patch: `{"stock":7}`,
			verify: func(t *testing.T, p *models.Product) {
				if p.Stock != 0 || p.Sizes["S"] != 2 {
					t.Fatalf("unexpected stock: %d %v", p.Stock, p.Sizes)
				}
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			service, shop := newTestCatalog()
			product := shop.addProduct(tt.start)

			var patch ProductPatch
			if err := json.Unmarshal([]byte(tt.patch), &patch); err != nil {
				t.Fatalf("decode patch: %v", err)
			}
			if _, err := service.UpdateProduct(context.Background(), product.ID, &patch); err != nil {
				t.Fatalf("update: %v", err)
			}
			tt.verify(t, shop.store.product(product.ID))
		})
	}
}

func TestCatalogService_ValidationErrors(t *testing.T) {
	t.Parallel()

	service, shop := newTestCatalog()
	ctx := context.Background()

	tests := []struct {
		name      string
		product   *models.Product
		wantField string
	}{
		{name: "missing name", product: &models.Product{Category: "Apparel", BasePrice: dec("1.00")}, wantField: "name"},
		{name: "zero price", product: &models.Product{Name: "X", Category: "Apparel", BasePrice: dec("0")}, wantField: "price"},
		{name: "percent above 100", product: &models.Product{Name: "X", Category: "Apparel", BasePrice: dec("1.00"), SalePercent: decPtr("101")}, wantField: "sale_percent"},
		{name: "negative stock", product: &models.Product{Name: "X", Category: "Apparel", BasePrice: dec("1.00"), Stock: -1}, wantField: "stock"},
	}

	for _, tt := range tests {
		_, err := service.CreateProduct(ctx, tt.product)
		var validationErr *ValidationError
		if !errors.As(err, &validationErr) || validationErr.Field != tt.wantField {
			t.Fatalf("%s: error = %v, want validation error on %s", tt.name, err, tt.wantField)
		}
	}

	products, err := memoryProducts{shop.store}.List(ctx, models.ProductFilter{})
	if err != nil || len(products) != 0 {
		t.Fatalf("invalid products were stored: %d, %v", len(products), err)
	}

	if err := service.DeleteProduct(ctx, shop.addProduct(&models.Product{Name: "Y", Category: "A", BasePrice: dec("1")}).ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
}
