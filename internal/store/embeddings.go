package store

import (
	"time"

	"gorm.io/gorm"

	"spiralmem/internal/errs"
)

// UpsertEmbedding writes or replaces the single embedding for
// (contentID, contentType, model). Re-index replaces (spec.md §3).
func (s *Store) UpsertEmbedding(contentID string, contentType EmbeddingContentType, model string, dimensions int, vector VectorBlob) (*VectorEmbedding, error) {
	return s.upsertEmbedding(s.db, contentID, contentType, model, dimensions, vector)
}

// UpsertEmbeddingTx is UpsertEmbedding run against an in-flight
// transaction.
func (s *Store) UpsertEmbeddingTx(tx *gorm.DB, contentID string, contentType EmbeddingContentType, model string, dimensions int, vector VectorBlob) (*VectorEmbedding, error) {
	return s.upsertEmbedding(tx, contentID, contentType, model, dimensions, vector)
}

func (s *Store) upsertEmbedding(db *gorm.DB, contentID string, contentType EmbeddingContentType, model string, dimensions int, vector VectorBlob) (*VectorEmbedding, error) {
	id := EmbeddingID(contentID, contentType, model)
	e := &VectorEmbedding{
		ID:          id,
		ContentID:   contentID,
		ContentType: contentType,
		Model:       model,
		Dimensions:  dimensions,
		Vector:      vector,
		CreatedAt:   time.Now().UTC(),
	}
	err := db.Save(e).Error
	if err != nil {
		return nil, &errs.StoreError{Op: "upsert embedding", Err: err}
	}
	return e, nil
}

// FindEmbeddingsByModel loads every embedding row for a given model,
// used to seed vector search's in-memory similarity scan.
func (s *Store) FindEmbeddingsByModel(model string) ([]VectorEmbedding, error) {
	var embeddings []VectorEmbedding
	if err := s.db.Where("model = ?", model).Find(&embeddings).Error; err != nil {
		return nil, &errs.StoreError{Op: "find embeddings by model", Err: err}
	}
	return embeddings, nil
}

// FindEmbedding looks up a single embedding by its composite key.
func (s *Store) FindEmbedding(contentID string, contentType EmbeddingContentType, model string) (*VectorEmbedding, error) {
	var e VectorEmbedding
	err := s.db.First(&e, "id = ?", EmbeddingID(contentID, contentType, model)).Error
	if err == gorm.ErrRecordNotFound {
		return nil, &errs.NotFound{Entity: "embedding", ID: contentID}
	}
	if err != nil {
		return nil, &errs.StoreError{Op: "find embedding", Err: err}
	}
	return &e, nil
}
