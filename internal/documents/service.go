package documents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/etudehq/etude-auth/internal/database"
	apperrors "github.com/etudehq/etude-auth/internal/errors"
)

var (
	ErrDocumentNotFound = apperrors.NotFoundError("document not found", nil)
)

type Document struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content,omitempty"`
	Type       string    `json:"type"`
	OwnerEmail string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// Service is the document store behind the scope-protected resource API.
type Service struct {
	DB *database.Database
}

func NewService(db *database.Database) Service {
	return Service{
		DB: db,
	}
}

// ListDocuments returns document metadata without content.
func (s *Service) ListDocuments(ctx context.Context) ([]Document, error) {
	ctx, cancel := s.DB.WithQueryTimeout(ctx)
	defer cancel()

	query := `SELECT id, title, doc_type, owner_email, created_at FROM documents ORDER BY created_at DESC`
	rows, err := s.DB.Query(ctx, query)
	if err != nil {
		return nil, apperrors.StoreUnavailableError("failed to list documents", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Type, &doc.OwnerEmail, &doc.CreatedAt); err != nil {
			return nil, apperrors.StoreUnavailableError("failed to scan document", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.StoreUnavailableError("failed to list documents", err)
	}

	return docs, nil
}

func (s *Service) GetDocumentByID(ctx context.Context, id int64) (Document, error) {
	ctx, cancel := s.DB.WithQueryTimeout(ctx)
	defer cancel()

	var doc Document

	query := `SELECT id, title, content, doc_type, owner_email, created_at FROM documents WHERE id = $1`
	row := s.DB.QueryRow(ctx, query, id)
	if err := row.Scan(&doc.ID, &doc.Title, &doc.Content, &doc.Type, &doc.OwnerEmail, &doc.CreatedAt); err != nil {
		if errors.Is(err, database.ErrNoRows) {
			return Document{}, ErrDocumentNotFound
		}
		return Document{}, apperrors.StoreUnavailableError("failed to get document", err)
	}

	return doc, nil
}

func (s *Service) CreateDocument(ctx context.Context, doc Document) (Document, error) {
	if doc.Title == "" {
		return Document{}, apperrors.ValidationError("document title cannot be empty", nil)
	}
	if doc.Type == "" {
		doc.Type = "document"
	}

	ctx, cancel := s.DB.WithQueryTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO documents (title, content, doc_type, owner_email)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	if err := s.DB.QueryRow(ctx, query,
		doc.Title,
		doc.Content,
		doc.Type,
		doc.OwnerEmail,
	).Scan(&doc.ID, &doc.CreatedAt); err != nil {
		return Document{}, fmt.Errorf("failed to save document: %w", err)
	}

	return doc, nil
}
