package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/triplebarrelracing/storefront/internal/models"
	"github.com/triplebarrelracing/storefront/internal/stripe"
)

func saleInput(siteWide bool, sitePct string, categories map[string]string) UpdateSaleSettingsInput {
	input := UpdateSaleSettingsInput{
		SiteWideEnabled: siteWide,
		SiteWidePercent: dec(sitePct),
		CategoryPercent: map[string]decimal.Decimal{},
	}
	for category, pct := range categories {
		input.CategoryPercent[category] = dec(pct)
	}
	return input
}

func TestCreateOrder_SnapshotsEffectivePrice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		salePercent *decimal.Decimal
		wantPrice   string
		wantSource  string
	}{
		{name: "category beats site-wide", wantPrice: "80", wantSource: "category"},
		{name: "item override beats category", salePercent: decPtr("10"), wantPrice: "90", wantSource: "item"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			shop := newTestShop()
			if _, err := shop.sales.Update(ctx, saleInput(true, "50", map[string]string{"Apparel": "20"})); err != nil {
				t.Fatalf("update sales: %v", err)
			}
			product := shop.addProduct(&models.Product{
				Name: "Team Hoodie", Category: "Apparel", BasePrice: dec("100.00"), SalePercent: tt.salePercent, Stock: 5,
			})

			order, err := shop.checkout.CreateOrder(ctx, CreateOrderInput{
				CustomerName: "Jess Rider", CustomerEmail: "Jess@Example.com", ProductID: product.ID,
			})
			if err != nil {
				t.Fatalf("create order: %v", err)
			}
			if !order.Item.UnitPrice.Equal(dec(tt.wantPrice)) {
				t.Fatalf("unit price = %s, want %s", order.Item.UnitPrice, tt.wantPrice)
			}
			if order.Item.DiscountSource != tt.wantSource {
				t.Fatalf("discount source = %q, want %q", order.Item.DiscountSource, tt.wantSource)
			}
			if order.Status != models.StatusPending || order.Email != "jess@example.com" || order.Name != "Jess Rider" {
				t.Fatalf("unexpected order: %+v", order)
			}
			if order.SaleVersion != 1 {
				t.Fatalf("sale version = %d, want 1", order.SaleVersion)
			}
			if got := shop.store.product(product.ID).Stock; got != 5 {
				t.Fatalf("stock changed at order creation: %d", got)
			}
		})
	}
}

func TestCreateOrder_Rejections(t *testing.T) {
	t.Parallel()

	shop := newTestShop()
	flat := shop.addProduct(&models.Product{Name: "Sticker", Category: "Stickers", BasePrice: dec("5.00"), Stock: 0})
	sized := shop.addProduct(&models.Product{Name: "Tee", Category: "Apparel", BasePrice: dec("30.00"), Sizes: map[string]int{"M": 1, "L": 0}})
	free := shop.addProduct(&models.Product{Name: "Pit Pass Lanyard", Category: "Accessories", BasePrice: dec("12.00"), SalePercent: decPtr("100"), Stock: 4})
	cheap := shop.addProduct(&models.Product{Name: "Mini Decal", Category: "Stickers", BasePrice: dec("0.40"), Stock: 4})

	tests := []struct {
		name      string
		input     CreateOrderInput
		wantErr   error
		wantField string
	}{
		{name: "missing name", input: CreateOrderInput{CustomerEmail: "a@b.co", ProductID: flat.ID}, wantField: "customer_name"},
		{name: "bad email", input: CreateOrderInput{CustomerName: "A", CustomerEmail: "nope", ProductID: flat.ID}, wantField: "customer_email"},
		{name: "unknown product", input: CreateOrderInput{CustomerName: "A", CustomerEmail: "a@b.co", ProductID: uuid.New()}, wantErr: ErrNotFound},
		{name: "flat sold out", input: CreateOrderInput{CustomerName: "A", CustomerEmail: "a@b.co", ProductID: flat.ID}, wantErr: ErrOutOfStock},
		{name: "size required", input: CreateOrderInput{CustomerName: "A", CustomerEmail: "a@b.co", ProductID: sized.ID}, wantField: "size"},
		{name: "unknown size", input: CreateOrderInput{CustomerName: "A", CustomerEmail: "a@b.co", ProductID: sized.ID, Size: "XXL"}, wantField: "size"},
		{name: "size sold out", input: CreateOrderInput{CustomerName: "A", CustomerEmail: "a@b.co", ProductID: sized.ID, Size: "L"}, wantErr: ErrOutOfStock},
		{name: "full discount is not chargeable", input: CreateOrderInput{CustomerName: "A", CustomerEmail: "a@b.co", ProductID: free.ID}, wantField: "product_id"},
		{name: "below minimum charge", input: CreateOrderInput{CustomerName: "A", CustomerEmail: "a@b.co", ProductID: cheap.ID}, wantField: "product_id"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := shop.checkout.CreateOrder(context.Background(), tt.input)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantField != "" {
				var validationErr *ValidationError
				if !errors.As(err, &validationErr) || validationErr.Field != tt.wantField {
					t.Fatalf("error = %v, want validation error on %s", err, tt.wantField)
				}
			}
		})
	}
}

func TestCapturePayment_ChargesSnapshotAfterSaleChange(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	shop := newTestShop()
	if _, err := shop.sales.Update(ctx, saleInput(false, "0", map[string]string{"Apparel": "20"})); err != nil {
		t.Fatalf("update sales: %v", err)
	}
	product := shop.addProduct(&models.Product{Name: "Cap", Category: "Apparel", BasePrice: dec("100.00"), Stock: 2})

	order, err := shop.checkout.CreateOrder(ctx, CreateOrderInput{CustomerName: "A", CustomerEmail: "a@b.co", ProductID: product.ID})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if _, err := shop.sales.Update(ctx, saleInput(false, "0", nil)); err != nil {
		t.Fatalf("remove sale: %v", err)
	}

	confirmation, err := shop.checkout.CapturePayment(ctx, order.ID, "pm_card_visa")
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if !confirmation.Amount.Equal(dec("80")) {
		t.Fatalf("captured amount = %s, want 80", confirmation.Amount)
	}
	if amounts := shop.gateway.chargedAmounts(); len(amounts) != 1 || !amounts[0].Equal(dec("80")) {
		t.Fatalf("charged amounts = %v, want [80]", amounts)
	}

	stored := shop.store.order(order.ID)
	if stored.Status != models.StatusPaid || stored.PaymentID != confirmation.PaymentID {
		t.Fatalf("unexpected stored order: %+v", stored)
	}
	if got := shop.store.product(product.ID).Stock; got != 1 {
		t.Fatalf("stock = %d, want 1", got)
	}
	if receipts, _, _ := shop.notifier.counts(); receipts != 1 {
		t.Fatalf("receipts sent = %d, want 1", receipts)
	}
}

func TestCapturePayment_SecondCaptureIsRejected(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	shop := newTestShop()
	product := shop.addProduct(&models.Product{Name: "Decal", Category: "Stickers", BasePrice: dec("8.00"), Stock: 10})
	order, err := shop.checkout.CreateOrder(ctx, CreateOrderInput{CustomerName: "A", CustomerEmail: "a@b.co", ProductID: product.ID})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if _, err := shop.checkout.CapturePayment(ctx, order.ID, "pm_card_visa"); err != nil {
		t.Fatalf("first capture: %v", err)
	}
	if _, err := shop.checkout.CapturePayment(ctx, order.ID, "pm_card_visa"); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("second capture error = %v, want ErrAlreadyResolved", err)
	}
	if calls := shop.gateway.calls.Load(); calls != 1 {
		t.Fatalf("gateway calls = %d, want 1", calls)
	}
	if got := shop.store.product(product.ID).Stock; got != 9 {
		t.Fatalf("stock = %d, want 9", got)
	}
}

func TestCapturePayment_ConcurrentCapturesChargeOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	shop := newTestShop()
	product := shop.addProduct(&models.Product{Name: "Decal", Category: "Stickers", BasePrice: dec("8.00"), Stock: 10})
	order, err := shop.checkout.CreateOrder(ctx, CreateOrderInput{CustomerName: "A", CustomerEmail: "a@b.co", ProductID: product.ID})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		resolved  int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := shop.checkout.CapturePayment(ctx, order.ID, "pm_card_visa")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrAlreadyResolved):
				resolved++
			default:
				t.Errorf("unexpected capture error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || resolved != attempts-1 {
		t.Fatalf("successes = %d, already resolved = %d", successes, resolved)
	}
	if calls := shop.gateway.calls.Load(); calls != 1 {
		t.Fatalf("gateway calls = %d, want 1", calls)
	}
}

func TestCapturePayment_LastUnitRace(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		product *models.Product
		size    string
		stock   func(*models.Product) int
	}{
		{
			name:    "flat stock",
			product: &models.Product{Name: "Signed Helmet", Category: "Collectibles", BasePrice: dec("250.00"), Stock: 1},
			stock:   func(p *models.Product) int { return p.Stock },
		},
		{
			name:    "sized stock",
			product: &models.Product{Name: "Race Jacket", Category: "Apparel", BasePrice: dec("120.00"), Sizes: map[string]int{"M": 1, "L": 3}},
			size:    "M",
			stock:   func(p *models.Product) int { return p.Sizes["M"] },
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			shop := newTestShop()
			product := shop.addProduct(tt.product)

			var orderIDs []uuid.UUID
			for _, email := range []string{"first@example.com", "second@example.com"} {
				order, err := shop.checkout.CreateOrder(ctx, CreateOrderInput{
					CustomerName: "Buyer", CustomerEmail: email, ProductID: product.ID, Size: tt.size,
				})
				if err != nil {
					t.Fatalf("create order: %v", err)
				}
				orderIDs = append(orderIDs, order.ID)
			}

			shop.gateway.release = make(chan struct{})
			errs := make([]error, len(orderIDs))
			var wg sync.WaitGroup
			for i, id := range orderIDs {
				wg.Add(1)
				go func(i int, id uuid.UUID) {
					defer wg.Done()
					_, errs[i] = shop.checkout.CapturePayment(ctx, id, "pm_card_visa")
				}(i, id)
			}
			for shop.gateway.calls.Load() < int64(len(orderIDs)) {
				time.Sleep(time.Millisecond)
			}
			close(shop.gateway.release)
			wg.Wait()

			var paid, gaps int
			for i, err := range errs {
				stored := shop.store.order(orderIDs[i])
				if err == nil {
					paid++
					if stored.Status != models.StatusPaid {
						t.Fatalf("successful capture left order %s", stored.Status)
					}
					continue
				}
				var gap *ReconciliationGap
				if !errors.As(err, &gap) || !errors.Is(err, ErrOutOfStock) {
					t.Fatalf("losing capture error = %v, want reconciliation gap wrapping out of stock", err)
				}
				gaps++
				if stored.Status != models.StatusFailed || stored.FailureReason != reasonOutOfStockAfterCharge {
					t.Fatalf("losing order = %s/%s", stored.Status, stored.FailureReason)
				}
				if stored.PaymentID == "" || stored.ReconciliationNote == "" {
					t.Fatalf("losing order missing reconciliation details: %+v", stored)
				}
			}
			if paid != 1 || gaps != 1 {
				t.Fatalf("paid = %d, gaps = %d, want 1 and 1", paid, gaps)
			}
			if got := tt.stock(shop.store.product(product.ID)); got != 0 {
				t.Fatalf("stock = %d, want 0", got)
			}
			if _, _, alerts := shop.notifier.counts(); alerts != 1 {
				t.Fatalf("reconciliation alerts = %d, want 1", alerts)
			}
		})
	}
}

func TestCapturePayment_Declined(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	shop := newTestShop()
	shop.gateway.err = &stripe.ChargeError{Kind: stripe.FailureDeclined, Code: "card_declined", Message: "Your card was declined."}
	product := shop.addProduct(&models.Product{Name: "Decal", Category: "Stickers", BasePrice: dec("8.00"), Stock: 3})
	order, err := shop.checkout.CreateOrder(ctx, CreateOrderInput{CustomerName: "A", CustomerEmail: "a@b.co", ProductID: product.ID})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	_, err = shop.checkout.CapturePayment(ctx, order.ID, "pm_card_chargeDeclined")
	var paymentErr *PaymentError
	if !errors.As(err, &paymentErr) {
		t.Fatalf("error = %v, want PaymentError", err)
	}
	if paymentErr.Reason != "declined:card_declined" {
		t.Fatalf("reason = %q", paymentErr.Reason)
	}

	stored := shop.store.order(order.ID)
	if stored.Status != models.StatusFailed || stored.FailureReason != "declined:card_declined" {
		t.Fatalf("unexpected order state: %s/%s", stored.Status, stored.FailureReason)
	}
	if got := shop.store.product(product.ID).Stock; got != 3 {
		t.Fatalf("stock = %d, want 3", got)
	}
	if _, err := shop.checkout.CapturePayment(ctx, order.ID, "pm_card_visa"); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("retry after decline error = %v, want ErrAlreadyResolved", err)
	}
}

func TestCapturePayment_TimeoutMarksFailed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	shop := newTestShop()
	shop.checkout.paymentTimeout = 50 * time.Millisecond
	shop.gateway.release = make(chan struct{})
	product := shop.addProduct(&models.Product{Name: "Decal", Category: "Stickers", BasePrice: dec("8.00"), Stock: 3})
	order, err := shop.checkout.CreateOrder(ctx, CreateOrderInput{CustomerName: "A", CustomerEmail: "a@b.co", ProductID: product.ID})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	_, err = shop.checkout.CapturePayment(ctx, order.ID, "pm_card_visa")
	var paymentErr *PaymentError
	if !errors.As(err, &paymentErr) {
		t.Fatalf("error = %v, want PaymentError", err)
	}
	if paymentErr.Code != string(stripe.FailureTimeout) || paymentErr.Reason != string(stripe.FailureTimeout) {
		t.Fatalf("code/reason = %q/%q, want timeout", paymentErr.Code, paymentErr.Reason)
	}

	stored := shop.store.order(order.ID)
	if stored.Status != models.StatusFailed || stored.FailureReason != string(stripe.FailureTimeout) {
		t.Fatalf("order left %s/%s after gateway timeout", stored.Status, stored.FailureReason)
	}
	if got := shop.store.product(product.ID).Stock; got != 3 {
		t.Fatalf("stock = %d, want 3", got)
	}
	if _, err := shop.checkout.CapturePayment(ctx, order.ID, "pm_card_visa"); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("retry after timeout error = %v, want ErrAlreadyResolved", err)
	}
	if calls := shop.gateway.calls.Load(); calls != 1 {
		t.Fatalf("gateway calls = %d, want 1", calls)
	}
}

func TestCapturePayment_RequiresToken(t *testing.T) {
	t.Parallel()

	shop := newTestShop()
	_, err := shop.checkout.CapturePayment(context.Background(), uuid.New(), "  ")
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) || validationErr.Field != "payment_token" {
		t.Fatalf("error = %v, want payment_token validation error", err)
	}
	if shop.gateway.calls.Load() != 0 {
		t.Fatal("gateway called without a token")
	}
}
