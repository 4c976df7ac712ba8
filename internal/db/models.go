package db

import "github.com/triplebarrelracing/storefront/internal/models"

type Product = models.Product
type Order = models.Order
type Inquiry = models.Inquiry
type SaleSettings = models.SaleSettings
type PaymentStatus = models.PaymentStatus

const (
	StatusPending = models.StatusPending
	StatusPaid    = models.StatusPaid
	StatusFailed  = models.StatusFailed
)
