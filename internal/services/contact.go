package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/triplebarrelracing/storefront/internal/models"
)

const (
	maxContactNameLength  = 200
	maxContactPhoneLength = 40
)

// contactFields names the request fields a contact was read from, so
// validation errors point at what the client actually sent.
type contactFields struct {
	name, email, phone string
}

var (
	orderContactFields   = contactFields{name: "customer_name", email: "customer_email", phone: "customer_phone"}
	inquiryContactFields = contactFields{name: "name", email: "email", phone: "phone"}
)

// normalizeContact trims every field, requires a name and a plausible email,
// and lowercases the email.
func normalizeContact(raw models.Contact, fields contactFields) (models.Contact, error) {
	name := strings.TrimSpace(raw.Name)
	if name == "" {
		return models.Contact{}, invalid(fields.name, "is required")
	}
	if len(name) > maxContactNameLength {
		return models.Contact{}, invalid(fields.name, fmt.Sprintf("must be at most %d characters", maxContactNameLength))
	}
	email, err := normalizeEmail(raw.Email)
	if err != nil {
		return models.Contact{}, invalid(fields.email, err.Error())
	}
	phone := strings.TrimSpace(raw.Phone)
	if len(phone) > maxContactPhoneLength {
		return models.Contact{}, invalid(fields.phone, fmt.Sprintf("must be at most %d characters", maxContactPhoneLength))
	}
	return models.Contact{Name: name, Email: email, Phone: phone}, nil
}

// normalizeEmail checks the address is plausible and lowercases it.
func normalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("is required")
	}
	if err := contentValidator.Var(raw, "email,max=254"); err != nil {
		return "", errors.New("must be a valid email address")
	}
	return strings.ToLower(raw), nil
}
