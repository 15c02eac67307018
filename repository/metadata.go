package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// PendingEmailKey is the metadata key holding the email awaiting verification
const PendingEmailKey = "pending_verification_email"

// Metadata is a small client side key value store that survives restarts
type Metadata interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}

type metadata struct {
	db bun.IDB
}

var _ Metadata = (*metadata)(nil)

// NewMetadataRepository returns the bun backed Metadata store
func NewMetadataRepository(db bun.IDB) Metadata {
	return &metadata{db: db}
}

// Get returns nil without error for a missing key
func (r *metadata) Get(ctx context.Context, key string) ([]byte, error) {
	record := &MetadataRecord{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.key = ?", key).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata[%s]: %w", key, err)
	}
	return record.Value, nil
}

func (r *metadata) Set(ctx context.Context, key string, value []byte) error {
	_, err := r.db.NewInsert().
		Model(&MetadataRecord{Key: key, Value: value, UpdatedAt: time.Now()}).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set metadata[%s]: %w", key, err)
	}
	return nil
}

func (r *metadata) Delete(ctx context.Context, key string) error {
	_, err := r.db.NewDelete().
		Model((*MetadataRecord)(nil)).
		Where("key = ?", key).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete metadata[%s]: %w", key, err)
	}
	return nil
}

func (r *metadata) List(ctx context.Context) (map[string][]byte, error) {
	var records []MetadataRecord
	if err := r.db.NewSelect().Model(&records).Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to list metadata: %w", err)
	}

	out := make(map[string][]byte, len(records))
	for _, rec := range records {
		out[rec.Key] = rec.Value
	}
	return out, nil
}

func (r *metadata) Clear(ctx context.Context) error {
	_, err := r.db.NewDelete().
		Model((*MetadataRecord)(nil)).
		Where("1 = 1").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}
	return nil
}

// PendingEmailStore persists the pending verification email in Metadata.
// It satisfies authflow.PendingEmailStore.
type PendingEmailStore struct {
	meta Metadata
}

// NewPendingEmailStore wraps meta
func NewPendingEmailStore(meta Metadata) *PendingEmailStore {
	return &PendingEmailStore{meta: meta}
}

func (s *PendingEmailStore) SavePendingEmail(ctx context.Context, email string) error {
	return s.meta.Set(ctx, PendingEmailKey, []byte(email))
}

func (s *PendingEmailStore) PendingEmail(ctx context.Context) (string, error) {
	raw, err := s.meta.Get(ctx, PendingEmailKey)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (s *PendingEmailStore) ClearPendingEmail(ctx context.Context) error {
	return s.meta.Delete(ctx, PendingEmailKey)
}
