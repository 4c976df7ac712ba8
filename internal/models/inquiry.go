package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InquiryType string

const (
	InquiryGeneral InquiryType = "general"
	InquiryOrder   InquiryType = "order"
	InquiryParts   InquiryType = "parts"
	InquiryTicket  InquiryType = "ticket"
)

func (t InquiryType) Valid() bool {
	switch t {
	case InquiryGeneral, InquiryOrder, InquiryParts, InquiryTicket:
		return true
	}
	return false
}

type InquiryStatus string

const (
	InquiryPending    InquiryStatus = "pending"
	InquiryContacted  InquiryStatus = "contacted"
	InquiryProcessing InquiryStatus = "processing"
	InquiryShipped    InquiryStatus = "shipped"
	InquiryCompleted  InquiryStatus = "completed"
	InquiryCancelled  InquiryStatus = "cancelled"
)

var inquiryStatuses = map[InquiryStatus]struct{}{
	InquiryPending:    {},
	InquiryContacted:  {},
	InquiryProcessing: {},
	InquiryShipped:    {},
	InquiryCompleted:  {},
	InquiryCancelled:  {},
}

func (s InquiryStatus) Valid() bool {
	_, ok := inquiryStatuses[s]
	return ok
}

type ItemKind string

const (
	ItemProduct ItemKind = "product"
	ItemPart    ItemKind = "part"
	ItemEvent   ItemKind = "event"
)

// ItemSnapshot records what an inquiry referenced at submission time.
type ItemSnapshot struct {
	Kind  ItemKind        `json:"kind"`
	ID    uuid.UUID       `json:"id"`
	Name  string          `json:"name"`
	Size  string          `json:"size,omitempty"`
	Price decimal.Decimal `json:"price"`
}

// Inquiry is a human-handled request. Messages to a driver are general
// inquiries with DriverID set.
type Inquiry struct {
	ID        uuid.UUID     `json:"id"`
	Type      InquiryType   `json:"inquiry_type"`
	Contact
	Message   string        `json:"message"`
	Item      *ItemSnapshot `json:"item,omitempty"`
	EventID   *uuid.UUID    `json:"event_id,omitempty"`
	EventName string        `json:"event_name,omitempty"`
	DriverID  *uuid.UUID    `json:"driver_id,omitempty"`
	Status    InquiryStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
