package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Document is implemented by pointer types of the content models.
type Document[T any] interface {
	*T
	SetMeta(id uuid.UUID, createdAt, updatedAt time.Time)
	DocumentID() uuid.UUID
}

// DocumentStore keeps one kind of site content as JSONB documents.
type DocumentStore[T any, PT Document[T]] struct {
	pool *pgxpool.Pool
	kind string
}

func NewDocumentStore[T any, PT Document[T]](pool *pgxpool.Pool, kind string) *DocumentStore[T, PT] {
	return &DocumentStore[T, PT]{pool: pool, kind: kind}
}

func (s *DocumentStore[T, PT]) Kind() string {
	return s.kind
}

func (s *DocumentStore[T, PT]) Create(ctx context.Context, doc PT) error {
	id := doc.DocumentID()
	if id == uuid.Nil {
		id = uuid.New()
	}
	now := time.Now().UTC()
	doc.SetMeta(id, now, now)

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.kind, err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO content_documents (kind, id, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
	`, s.kind, id, data, now)
	return err
}

func (s *DocumentStore[T, PT]) Get(ctx context.Context, id uuid.UUID) (PT, error) {
	var (
		data      []byte
		createdAt time.Time
		updatedAt time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT data, created_at, updated_at FROM content_documents WHERE kind = $1 AND id = $2
	`, s.kind, id).Scan(&data, &createdAt, &updatedAt)
	if err != nil {
		return nil, notFound(err, s.kind)
	}
	return s.decode(id, data, createdAt, updatedAt)
}

func (s *DocumentStore[T, PT]) List(ctx context.Context) ([]PT, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, data, created_at, updated_at FROM content_documents
		WHERE kind = $1 ORDER BY created_at DESC
	`, s.kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []PT
	for rows.Next() {
		var (
			id        uuid.UUID
			data      []byte
			createdAt time.Time
			updatedAt time.Time
		)
		if err := rows.Scan(&id, &data, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		doc, err := s.decode(id, data, createdAt, updatedAt)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Replace overwrites the stored document with doc, keeping its creation time.
func (s *DocumentStore[T, PT]) Replace(ctx context.Context, id uuid.UUID, doc PT) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.kind, err)
	}

	var createdAt, updatedAt time.Time
	err = s.pool.QueryRow(ctx, `
		UPDATE content_documents SET data = $3, updated_at = NOW()
		WHERE kind = $1 AND id = $2
		RETURNING created_at, updated_at
	`, s.kind, id, data).Scan(&createdAt, &updatedAt)
	if err != nil {
		return notFound(err, s.kind)
	}
	doc.SetMeta(id, createdAt, updatedAt)
	return nil
}

func (s *DocumentStore[T, PT]) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM content_documents WHERE kind = $1 AND id = $2`, s.kind, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", s.kind, ErrNotFound)
	}
	return nil
}

func (s *DocumentStore[T, PT]) decode(id uuid.UUID, data []byte, createdAt, updatedAt time.Time) (PT, error) {
	doc := PT(new(T))
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", s.kind, id, err)
	}
	doc.SetMeta(id, createdAt, updatedAt)
	return doc, nil
}
