package email

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

const storeName = "Triple Barrel Racing"

// ReceiptData fills the customer receipt sent after a successful payment.
type ReceiptData struct {
	CustomerName  string
	CustomerEmail string
	OrderID       string
	ProductName   string
	Size          string
	UnitPrice     string
	Total         string
	Currency      string
	PaymentID     string
	StoreURL      string
}

// InquiryNoticeData fills the staff notification for a new inquiry.
type InquiryNoticeData struct {
	To          string
	InquiryType string
	Name        string
	Email       string
	Phone       string
	Message     string
	ItemName    string
	ItemSize    string
	ItemPrice   string
	EventName   string
	AdminURL    string
}

// ReconciliationAlertData fills the operator alert for a charge that could
// not be matched with stock.
type ReconciliationAlertData struct {
	To          string
	OrderID     string
	PaymentID   string
	Amount      string
	Currency    string
	ProductName string
	Size        string
	Reason      string
	OccurredAt  string
}

type compiled struct {
	subject *texttemplate.Template
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

// Renderer renders the built-in transactional templates.
type Renderer struct {
	templates map[string]compiled
}

func NewRenderer() (*Renderer, error) {
	sources := map[string][3]string{
		"receipt":              {receiptSubject, receiptText, receiptHTML},
		"inquiry_notice":       {inquirySubject, inquiryText, inquiryHTML},
		"reconciliation_alert": {alertSubject, alertText, alertHTML},
	}

	r := &Renderer{templates: make(map[string]compiled, len(sources))}
	for name, src := range sources {
		subject, err := texttemplate.New(name + "_subject").Parse(src[0])
		if err != nil {
			return nil, fmt.Errorf("failed to parse subject template %s: %w", name, err)
		}
		text, err := texttemplate.New(name + "_text").Parse(src[1])
		if err != nil {
			return nil, fmt.Errorf("failed to parse text template %s: %w", name, err)
		}
		html, err := htmltemplate.New(name + "_html").Parse(src[2])
		if err != nil {
			return nil, fmt.Errorf("failed to parse HTML template %s: %w", name, err)
		}
		r.templates[name] = compiled{subject: subject, text: text, html: html}
	}
	return r, nil
}

func (r *Renderer) Receipt(data ReceiptData) (*Email, error) {
	return r.render("receipt", data.CustomerEmail, "", data)
}

func (r *Renderer) InquiryNotice(data InquiryNoticeData) (*Email, error) {
	return r.render("inquiry_notice", data.To, data.Email, data)
}

func (r *Renderer) ReconciliationAlert(data ReconciliationAlertData) (*Email, error) {
	return r.render("reconciliation_alert", data.To, "", data)
}

func (r *Renderer) render(name, to, replyTo string, data any) (*Email, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return nil, fmt.Errorf("unknown email template %q", name)
	}

	var subject, text, html bytes.Buffer
	if err := tmpl.subject.Execute(&subject, data); err != nil {
		return nil, fmt.Errorf("failed to render subject: %w", err)
	}
	if err := tmpl.text.Execute(&text, data); err != nil {
		return nil, fmt.Errorf("failed to render text template: %w", err)
	}
	if err := tmpl.html.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("failed to render HTML template: %w", err)
	}

	return &Email{
		To:      to,
		ReplyTo: replyTo,
		Subject: subject.String(),
		Text:    text.String(),
		HTML:    html.String(),
		Tag:     name,
	}, nil
}

const receiptSubject = `Order confirmed - ` + storeName

const receiptText = `Thanks for your order, {{.CustomerName}}!

Order: {{.OrderID}}
Item: {{.ProductName}}{{if .Size}} ({{.Size}}){{end}}
Price: {{.UnitPrice}} {{.Currency}}
Total charged: {{.Total}} {{.Currency}}
Payment reference: {{.PaymentID}}

We'll be in touch when your order ships.
{{if .StoreURL}}{{.StoreURL}}{{end}}
`

const receiptHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Order confirmed</title>
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #111; max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background: #111; color: #f5c400; padding: 20px; text-align: center; border-radius: 8px 8px 0 0; }
    .content { background: #f9fafb; padding: 20px; border: 1px solid #e5e7eb; }
    .total { font-size: 20px; font-weight: bold; }
    .footer { text-align: center; padding: 20px; color: #6b7280; font-size: 14px; }
  </style>
</head>
<body>
  <div class="header">
    <h1>Order confirmed</h1>
    <p>Thanks for supporting the team, {{.CustomerName}}!</p>
  </div>
  <div class="content">
    <p><strong>Order:</strong> {{.OrderID}}</p>
    <p><strong>Item:</strong> {{.ProductName}}{{if .Size}} ({{.Size}}){{end}}</p>
    <p><strong>Price:</strong> {{.UnitPrice}} {{.Currency}}</p>
    <p class="total">Total charged: {{.Total}} {{.Currency}}</p>
    <p><strong>Payment reference:</strong> {{.PaymentID}}</p>
  </div>
  <div class="footer">
    <p>{{if .StoreURL}}<a href="{{.StoreURL}}">` + storeName + `</a>{{else}}` + storeName + `{{end}}</p>
  </div>
</body>
</html>
`

const inquirySubject = `New {{.InquiryType}} inquiry from {{.Name}}`

const inquiryText = `New {{.InquiryType}} inquiry

From: {{.Name}} <{{.Email}}>{{if .Phone}}
Phone: {{.Phone}}{{end}}{{if .ItemName}}
Item: {{.ItemName}}{{if .ItemSize}} ({{.ItemSize}}){{end}}{{if .ItemPrice}} - {{.ItemPrice}} CAD{{end}}{{end}}{{if .EventName}}
Event: {{.EventName}}{{end}}

{{.Message}}
{{if .AdminURL}}
Manage inquiries: {{.AdminURL}}{{end}}
`

const inquiryHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>New inquiry</title>
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #111; max-width: 600px; margin: 0 auto; padding: 20px; }
    .message { white-space: pre-wrap; background: #f9fafb; border: 1px solid #e5e7eb; padding: 16px; border-radius: 6px; }
  </style>
</head>
<body>
  <h2>New {{.InquiryType}} inquiry</h2>
  <p><strong>From:</strong> {{.Name}} &lt;{{.Email}}&gt;</p>
  {{if .Phone}}<p><strong>Phone:</strong> {{.Phone}}</p>{{end}}
  {{if .ItemName}}<p><strong>Item:</strong> {{.ItemName}}{{if .ItemSize}} ({{.ItemSize}}){{end}}{{if .ItemPrice}} - {{.ItemPrice}} CAD{{end}}</p>{{end}}
  {{if .EventName}}<p><strong>Event:</strong> {{.EventName}}</p>{{end}}
  <div class="message">{{.Message}}</div>
  {{if .AdminURL}}<p><a href="{{.AdminURL}}">Manage inquiries</a></p>{{end}}
</body>
</html>
`

const alertSubject = `[ACTION REQUIRED] Payment captured without stock for order {{.OrderID}}`

const alertText = `A payment was captured but inventory could not be decremented.

Order: {{.OrderID}}
Payment: {{.PaymentID}}
Amount: {{.Amount}} {{.Currency}}
Item: {{.ProductName}}{{if .Size}} ({{.Size}}){{end}}
Reason: {{.Reason}}
At: {{.OccurredAt}}

Contact the customer and either source the item or refund the payment manually.
`

const alertHTML = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Reconciliation required</title></head>
<body style="font-family: sans-serif; line-height: 1.6;">
  <h2 style="color: #b91c1c;">Payment captured without stock</h2>
  <table>
    <tr><td><strong>Order</strong></td><td>{{.OrderID}}</td></tr>
    <tr><td><strong>Payment</strong></td><td>{{.PaymentID}}</td></tr>
    <tr><td><strong>Amount</strong></td><td>{{.Amount}} {{.Currency}}</td></tr>
    <tr><td><strong>Item</strong></td><td>{{.ProductName}}{{if .Size}} ({{.Size}}){{end}}</td></tr>
    <tr><td><strong>Reason</strong></td><td>{{.Reason}}</td></tr>
    <tr><td><strong>At</strong></td><td>{{.OccurredAt}}</td></tr>
  </table>
  <p>Contact the customer and either source the item or refund the payment manually.</p>
</body>
</html>
`
