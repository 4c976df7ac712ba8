package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/triplebarrelracing/storefront/internal/crypto"
	"github.com/triplebarrelracing/storefront/internal/models"
)

const inquiryColumns = `id, inquiry_type, name, email, phone, message, item, event_id, event_name, driver_id, status, created_at, updated_at`

// InquiryStore persists customer inquiries. Phone numbers are sealed with
// the row id as binding.
type InquiryStore struct {
	pool   *pgxpool.Pool
	cipher crypto.FieldCipher
}

func NewInquiryStore(pool *pgxpool.Pool, cipher crypto.FieldCipher) *InquiryStore {
	if cipher == nil {
		cipher = crypto.Plaintext{}
	}
	return &InquiryStore{pool: pool, cipher: cipher}
}

func (s *InquiryStore) Create(ctx context.Context, inquiry *Inquiry) error {
	if inquiry.ID == uuid.Nil {
		inquiry.ID = uuid.New()
	}

	phone, err := s.cipher.Seal(inquiry.Phone, inquiry.ID[:])
	if err != nil {
		return fmt.Errorf("seal phone: %w", err)
	}

	var item []byte
	if inquiry.Item != nil {
		item, err = json.Marshal(inquiry.Item)
		if err != nil {
			return err
		}
	}

	return s.pool.QueryRow(ctx, `
		INSERT INTO inquiries (id, inquiry_type, name, email, phone, message, item, event_id, event_name, driver_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`, inquiry.ID, string(inquiry.Type), inquiry.Name, inquiry.Email, nullText(phone),
		inquiry.Message, item, inquiry.EventID, nullText(inquiry.EventName), inquiry.DriverID, string(inquiry.Status),
	).Scan(&inquiry.CreatedAt, &inquiry.UpdatedAt)
}

func (s *InquiryStore) GetByID(ctx context.Context, id uuid.UUID) (*Inquiry, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+inquiryColumns+` FROM inquiries WHERE id = $1`, id)
	inquiry, err := s.scan(row)
	if err != nil {
		return nil, notFound(err, "inquiry")
	}
	return inquiry, nil
}

func (s *InquiryStore) List(ctx context.Context, limit int) ([]*Inquiry, error) {
	limitInt32, err := intToInt32(limit, "limit")
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `SELECT `+inquiryColumns+` FROM inquiries ORDER BY created_at DESC LIMIT $1`, limitInt32)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var inquiries []*Inquiry
	for rows.Next() {
		inquiry, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		inquiries = append(inquiries, inquiry)
	}
	return inquiries, rows.Err()
}

func (s *InquiryStore) UpdateStatus(ctx context.Context, id uuid.UUID, status models.InquiryStatus) error {
	tag, err := s.pool.Exec(ctx, `UPDATE inquiries SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("inquiry: %w", ErrNotFound)
	}
	return nil
}

func (s *InquiryStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM inquiries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("inquiry: %w", ErrNotFound)
	}
	return nil
}

func (s *InquiryStore) scan(row pgx.Row) (*Inquiry, error) {
	var (
		inquiry     Inquiry
		inquiryType string
		status      string
		phone       pgtype.Text
		item        []byte
		eventID     pgtype.UUID
		eventName   pgtype.Text
		driverID    pgtype.UUID
	)
	if err := row.Scan(
		&inquiry.ID, &inquiryType, &inquiry.Name, &inquiry.Email, &phone,
		&inquiry.Message, &item, &eventID, &eventName, &driverID, &status, &inquiry.CreatedAt, &inquiry.UpdatedAt,
	); err != nil {
		return nil, err
	}

	inquiry.Type = models.InquiryType(inquiryType)
	inquiry.Status = models.InquiryStatus(status)
	inquiry.EventID = optionalUUID(eventID)
	inquiry.EventName = eventName.String
	inquiry.DriverID = optionalUUID(driverID)
	if item != nil {
		inquiry.Item = &models.ItemSnapshot{}
		if err := json.Unmarshal(item, inquiry.Item); err != nil {
			return nil, fmt.Errorf("decode inquiry item: %w", err)
		}
	}
	if phone.Valid {
		opened, err := s.cipher.Open(phone.String, inquiry.ID[:])
		if err != nil {
			return nil, fmt.Errorf("open phone: %w", err)
		}
		inquiry.Phone = opened
	}
	return &inquiry, nil
}

func optionalUUID(v pgtype.UUID) *uuid.UUID {
	if !v.Valid {
		return nil
	}
	id := uuid.UUID(v.Bytes)
	return &id
}
