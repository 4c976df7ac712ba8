package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/triplebarrelracing/storefront/internal/email"
	"github.com/triplebarrelracing/storefront/internal/models"
)

// Notifier sends transactional mail. Every call is best effort: callers log
// failures and carry on.
type Notifier interface {
	SendReceipt(ctx context.Context, order *models.Order) error
	NotifyInquiry(ctx context.Context, inquiry *models.Inquiry) error
	AlertReconciliation(ctx context.Context, gap *ReconciliationGap) error
}

type EmailNotifierConfig struct {
	// AdminEmail receives inquiry notices and reconciliation alerts.
	AdminEmail string
	BaseURL    string
}

type EmailNotifier struct {
	provider email.Provider
	renderer *email.Renderer
	cfg      EmailNotifierConfig
	now      func() time.Time
}

func NewEmailNotifier(provider email.Provider, renderer *email.Renderer, cfg EmailNotifierConfig) (*EmailNotifier, error) {
	if provider == nil {
		return nil, fmt.Errorf("email provider is required")
	}
	if renderer == nil {
		var err error
		renderer, err = email.NewRenderer()
		if err != nil {
			return nil, err
		}
	}
	return &EmailNotifier{provider: provider, renderer: renderer, cfg: cfg, now: time.Now}, nil
}

func (n *EmailNotifier) SendReceipt(ctx context.Context, order *models.Order) error {
	msg, err := n.renderer.Receipt(email.ReceiptData{
		CustomerName:  order.Name,
		CustomerEmail: order.Email,
		OrderID:       order.ID.String(),
		ProductName:   order.Item.ProductName,
		Size:          order.Item.Size,
		UnitPrice:     order.Item.UnitPrice.StringFixed(2),
		Total:         order.Amount().StringFixed(2),
		Currency:      order.Currency,
		PaymentID:     order.PaymentID,
		StoreURL:      n.cfg.BaseURL,
	})
	if err != nil {
		return err
	}
	return n.provider.SendEmail(ctx, msg)
}

func (n *EmailNotifier) NotifyInquiry(ctx context.Context, inquiry *models.Inquiry) error {
	if n.cfg.AdminEmail == "" {
		return nil
	}

	data := email.InquiryNoticeData{
		To:          n.cfg.AdminEmail,
		InquiryType: string(inquiry.Type),
		Name:        inquiry.Name,
		Email:       inquiry.Email,
		Phone:       inquiry.Phone,
		Message:     inquiry.Message,
		EventName:   inquiry.EventName,
	}
	if inquiry.Item != nil {
		data.ItemName = inquiry.Item.Name
		data.ItemSize = inquiry.Item.Size
		data.ItemPrice = inquiry.Item.Price.StringFixed(2)
	}
	if n.cfg.BaseURL != "" {
		data.AdminURL = strings.TrimRight(n.cfg.BaseURL, "/") + "/admin/inquiries"
	}

	msg, err := n.renderer.InquiryNotice(data)
	if err != nil {
		return err
	}
	return n.provider.SendEmail(ctx, msg)
}

func (n *EmailNotifier) AlertReconciliation(ctx context.Context, gap *ReconciliationGap) error {
	if n.cfg.AdminEmail == "" {
		return nil
	}

	msg, err := n.renderer.ReconciliationAlert(email.ReconciliationAlertData{
		To:          n.cfg.AdminEmail,
		OrderID:     gap.OrderID.String(),
		PaymentID:   gap.PaymentID,
		Amount:      gap.Amount.StringFixed(2),
		Currency:    gap.Currency,
		ProductName: gap.Product,
		Size:        gap.Size,
		Reason:      fmt.Sprint(gap.Cause),
		OccurredAt:  n.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return n.provider.SendEmail(ctx, msg)
}

type noopNotifier struct{}

func (noopNotifier) SendReceipt(context.Context, *models.Order) error { return nil }

func (noopNotifier) NotifyInquiry(context.Context, *models.Inquiry) error { return nil }

func (noopNotifier) AlertReconciliation(context.Context, *ReconciliationGap) error { return nil }
