package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/triplebarrelracing/storefront/internal/db"
	"github.com/triplebarrelracing/storefront/internal/inventory"
	"github.com/triplebarrelracing/storefront/internal/logging"
	"github.com/triplebarrelracing/storefront/internal/models"
	"github.com/triplebarrelracing/storefront/internal/stripe"
)

// memoryStore mirrors the conditional updates of the Postgres stores. One
// mutex guards products and orders so MarkPaid is atomic across both.
type memoryStore struct {
	mu        sync.Mutex
	products  map[uuid.UUID]*models.Product
	orders    map[uuid.UUID]*models.Order
	inquiries map[uuid.UUID]*models.Inquiry
	settings  *models.SaleSettings
	now       func() time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		products:  map[uuid.UUID]*models.Product{},
		orders:    map[uuid.UUID]*models.Order{},
		inquiries: map[uuid.UUID]*models.Inquiry{},
		now:       time.Now,
	}
}

func cloneProduct(p *models.Product) *models.Product {
	out := *p
	if p.Sizes != nil {
		out.Sizes = make(map[string]int, len(p.Sizes))
		for k, v := range p.Sizes {
			out.Sizes[k] = v
		}
	}
	if p.SalePercent != nil {
		pct := *p.SalePercent
		out.SalePercent = &pct
	}
	out.ImageURLs = append([]string(nil), p.ImageURLs...)
	return &out
}

func cloneOrder(o *models.Order) *models.Order {
	out := *o
	return &out
}

func (s *memoryStore) product(id uuid.UUID) *models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[id]; ok {
		return cloneProduct(p)
	}
	return nil
}

func (s *memoryStore) order(id uuid.UUID) *models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orders[id]; ok {
		return cloneOrder(o)
	}
	return nil
}

func (s *memoryStore) setOrder(order *models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = cloneOrder(order)
}

type memoryProducts struct{ *memoryStore }

func (s memoryProducts) Create(_ context.Context, product *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	product.CreatedAt = s.now()
	product.UpdatedAt = product.CreatedAt
	s.products[product.ID] = cloneProduct(product)
	return nil
}

func (s memoryProducts) Update(_ context.Context, product *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[product.ID]; !ok {
		return fmt.Errorf("product: %w", db.ErrNotFound)
	}
	product.UpdatedAt = s.now()
	s.products[product.ID] = cloneProduct(product)
	return nil
}

func (s memoryProducts) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return fmt.Errorf("product: %w", db.ErrNotFound)
	}
	delete(s.products, id)
	return nil
}

func (s memoryProducts) GetByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	if p := s.product(id); p != nil {
		return p, nil
	}
	return nil, fmt.Errorf("product: %w", db.ErrNotFound)
}

func (s memoryProducts) List(_ context.Context, filter models.ProductFilter) ([]*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Product
	for _, p := range s.products {
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.FeaturedOnly && !p.Featured {
			continue
		}
		out = append(out, cloneProduct(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type memorySales struct{ *memoryStore }

func (s memorySales) Get(context.Context) (*models.SaleSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings == nil {
		return nil, fmt.Errorf("sale settings: %w", db.ErrNotFound)
	}
	out := *s.settings
	out.CategoryPercent = make(map[string]decimal.Decimal, len(s.settings.CategoryPercent))
	for k, v := range s.settings.CategoryPercent {
		out.CategoryPercent[k] = v
	}
	return &out, nil
}

func (s memorySales) Update(_ context.Context, settings *models.SaleSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings != nil {
		settings.Version = s.settings.Version + 1
	} else {
		settings.Version = 1
	}
	settings.UpdatedAt = s.now()
	stored := *settings
	s.settings = &stored
	return nil
}

type memoryOrders struct{ *memoryStore }

func (s memoryOrders) Create(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	order.CreatedAt = s.now()
	order.UpdatedAt = order.CreatedAt
	s.orders[order.ID] = cloneOrder(order)
	return nil
}

func (s memoryOrders) GetByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	if o := s.order(id); o != nil {
		return o, nil
	}
	return nil, fmt.Errorf("order: %w", db.ErrNotFound)
}

func (s memoryOrders) List(_ context.Context, limit int) ([]*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s memoryOrders) ClaimCapture(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != models.StatusPending || o.Claimed() {
		return fmt.Errorf("%w: expected unclaimed pending", db.ErrInvalidStatusTransition)
	}
	o.CaptureStartedAt = s.now()
	return nil
}

func (s memoryOrders) MarkPaid(_ context.Context, id uuid.UUID, paymentID string, stock inventory.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != models.StatusPending {
		return fmt.Errorf("%w: expected pending", db.ErrInvalidStatusTransition)
	}
	p, ok := s.products[stock.ProductID]
	if !ok {
		return fmt.Errorf("product: %w", db.ErrNotFound)
	}
	if stock.Size == "" {
		if p.Sizes != nil || p.Stock < stock.Quantity {
			return inventory.ErrOutOfStock
		}
		p.Stock -= stock.Quantity
	} else {
		count, ok := p.Sizes[stock.Size]
		if !ok || count < stock.Quantity {
			return inventory.ErrOutOfStock
		}
		p.Sizes[stock.Size] = count - stock.Quantity
	}

	o.Status = models.StatusPaid
	o.PaymentID = paymentID
	o.FailureReason = ""
	o.PaidAt = s.now()
	return nil
}

func (s memoryOrders) MarkFailed(_ context.Context, id uuid.UUID, failure models.PaymentFailure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != models.StatusPending {
		return fmt.Errorf("%w: expected pending", db.ErrInvalidStatusTransition)
	}
	o.Status = models.StatusFailed
	o.FailureReason = failure.Reason
	if failure.PaymentID != "" {
		o.PaymentID = failure.PaymentID
	}
	if failure.ReconciliationNote != "" {
		o.ReconciliationNote = failure.ReconciliationNote
	}
	o.FailedAt = s.now()
	return nil
}

func (s memoryOrders) FlagReconciliationGap(_ context.Context, id uuid.UUID, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return fmt.Errorf("order: %w", db.ErrNotFound)
	}
	o.ReconciliationNote = note
	return nil
}

func (s memoryOrders) UpdateFulfillment(_ context.Context, id uuid.UUID, status models.FulfillmentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return fmt.Errorf("order: %w", db.ErrNotFound)
	}
	o.FulfillmentStatus = status
	return nil
}

func (s memoryOrders) ExpireStalePending(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, o := range s.orders {
		if o.Status == models.StatusPending && !o.Claimed() && o.CreatedAt.Before(cutoff) {
			o.Status = models.StatusFailed
			o.FailureReason = "expired"
			n++
		}
	}
	return n, nil
}

func (s memoryOrders) ExpireAbandonedCaptures(_ context.Context, cutoff time.Time, note string) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uuid.UUID
	for _, o := range s.orders {
		if o.Status == models.StatusPending && o.Claimed() && o.CaptureStartedAt.Before(cutoff) {
			o.Status = models.StatusFailed
			o.FailureReason = "capture_abandoned"
			o.ReconciliationNote = note
			o.FailedAt = s.now()
			ids = append(ids, o.ID)
		}
	}
	return ids, nil
}

type memoryInquiries struct{ *memoryStore }

func (s memoryInquiries) Create(_ context.Context, inquiry *models.Inquiry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inquiry.ID = uuid.New()
	inquiry.CreatedAt = s.now()
	inquiry.UpdatedAt = inquiry.CreatedAt
	stored := *inquiry
	s.inquiries[inquiry.ID] = &stored
	return nil
}

func (s memoryInquiries) GetByID(_ context.Context, id uuid.UUID) (*models.Inquiry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inquiry, ok := s.inquiries[id]
	if !ok {
		return nil, fmt.Errorf("inquiry: %w", db.ErrNotFound)
	}
	out := *inquiry
	return &out, nil
}

func (s memoryInquiries) List(_ context.Context, limit int) ([]*models.Inquiry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Inquiry, 0, len(s.inquiries))
	for _, inquiry := range s.inquiries {
		copied := *inquiry
		out = append(out, &copied)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s memoryInquiries) UpdateStatus(_ context.Context, id uuid.UUID, status models.InquiryStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inquiry, ok := s.inquiries[id]
	if !ok {
		return fmt.Errorf("inquiry: %w", db.ErrNotFound)
	}
	inquiry.Status = status
	return nil
}

func (s memoryInquiries) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inquiries[id]; !ok {
		return fmt.Errorf("inquiry: %w", db.ErrNotFound)
	}
	delete(s.inquiries, id)
	return nil
}

// memoryDocuments stores content as JSON like the JSONB document table.
type memoryDocuments[T any, PT db.Document[T]] struct {
	mu   sync.Mutex
	kind string
	docs map[uuid.UUID][]byte
}

func newMemoryDocuments[T any, PT db.Document[T]](kind string) *memoryDocuments[T, PT] {
	return &memoryDocuments[T, PT]{kind: kind, docs: map[uuid.UUID][]byte{}}
}

func (s *memoryDocuments[T, PT]) Kind() string {
	return s.kind
}

func (s *memoryDocuments[T, PT]) Create(_ context.Context, doc PT) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	doc.SetMeta(uuid.New(), now, now)
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	s.docs[doc.DocumentID()] = raw
	return nil
}

func (s *memoryDocuments[T, PT]) Get(_ context.Context, id uuid.UUID) (PT, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", s.kind, db.ErrNotFound)
	}
	doc := PT(new(T))
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *memoryDocuments[T, PT]) List(ctx context.Context) ([]PT, error) {
	s.mu.Lock()
	ids := make([]uuid.UUID, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	out := make([]PT, 0, len(ids))
	for _, id := range ids {
		doc, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func (s *memoryDocuments[T, PT]) Replace(_ context.Context, id uuid.UUID, doc PT) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return fmt.Errorf("%s: %w", s.kind, db.ErrNotFound)
	}
	doc.SetMeta(id, time.Now().UTC(), time.Now().UTC())
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	s.docs[id] = raw
	return nil
}

func (s *memoryDocuments[T, PT]) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return fmt.Errorf("%s: %w", s.kind, db.ErrNotFound)
	}
	delete(s.docs, id)
	return nil
}

// fakeGateway approves every charge unless err is set. release, when set,
// holds each charge until it is closed.
type fakeGateway struct {
	calls   atomic.Int64
	mu      sync.Mutex
	amounts []decimal.Decimal
	err     error
	release chan struct{}
}

func (g *fakeGateway) Charge(ctx context.Context, req stripe.ChargeRequest) (*stripe.Charge, error) {
	n := g.calls.Add(1)
	g.mu.Lock()
	g.amounts = append(g.amounts, req.Amount)
	g.mu.Unlock()

	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, &stripe.ChargeError{Kind: stripe.FailureTimeout, Message: "timed out", Err: ctx.Err()}
		}
	}
	if g.err != nil {
		return nil, g.err
	}
	cents, err := stripe.ToCents(req.Amount)
	if err != nil {
		return nil, err
	}
	return &stripe.Charge{PaymentID: fmt.Sprintf("pi_test_%d", n), AmountCents: cents, Currency: req.Currency}, nil
}

func (g *fakeGateway) chargedAmounts() []decimal.Decimal {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]decimal.Decimal(nil), g.amounts...)
}

type recordingNotifier struct {
	mu        sync.Mutex
	receipts  []uuid.UUID
	inquiries []*models.Inquiry
	gaps      []*ReconciliationGap
}

func (n *recordingNotifier) SendReceipt(_ context.Context, order *models.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.receipts = append(n.receipts, order.ID)
	return nil
}

func (n *recordingNotifier) NotifyInquiry(_ context.Context, inquiry *models.Inquiry) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.inquiries = append(n.inquiries, inquiry)
	return nil
}

func (n *recordingNotifier) AlertReconciliation(_ context.Context, gap *ReconciliationGap) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.gaps = append(n.gaps, gap)
	return nil
}

func (n *recordingNotifier) counts() (receipts, inquiries, gaps int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.receipts), len(n.inquiries), len(n.gaps)
}

// testShop wires the checkout path over one memoryStore.
type testShop struct {
	store    *memoryStore
	sales    *SaleService
	checkout *CheckoutService
	gateway  *fakeGateway
	notifier *recordingNotifier
}

func newTestShop() *testShop {
	store := newMemoryStore()
	gateway := &fakeGateway{}
	notifier := &recordingNotifier{}
	logger := logging.Discard()
	sales := NewSaleService(memorySales{store}, nil, logger)

	return &testShop{
		store:    store,
		sales:    sales,
		gateway:  gateway,
		notifier: notifier,
		checkout: NewCheckoutService(memoryProducts{store}, memoryOrders{store}, sales, gateway, notifier, CheckoutConfig{PaymentTimeout: time.Second}, logger),
	}
}

func (s *testShop) addProduct(p *models.Product) *models.Product {
	if err := (memoryProducts{s.store}).Create(context.Background(), p); err != nil {
		panic(err)
	}
	return p
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}
