package repository

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// VerificationTokens stores email confirmation tokens
type VerificationTokens interface {
	Issue(ctx context.Context, userID uuid.UUID, email string, ttl time.Duration) (*VerificationToken, error)
	FindTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*VerificationToken, error)
	ConsumeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) error
	Latest(ctx context.Context, userID uuid.UUID) (*VerificationToken, error)
}

type verificationTokens struct {
	db  *bun.DB
	now func() time.Time
}

var _ VerificationTokens = (*verificationTokens)(nil)

// NewVerificationTokensRepository returns the bun backed token repository
func NewVerificationTokensRepository(db *bun.DB) VerificationTokens {
	return &verificationTokens{db: db, now: time.Now}
}

func (r *verificationTokens) Issue(ctx context.Context, userID uuid.UUID, email string, ttl time.Duration) (*VerificationToken, error) {
	now := r.now()
	token := &VerificationToken{
		ID:        uuid.New(),
		UserID:    userID,
		Email:     email,
		ExpiresAt: now.Add(ttl),
		CreatedAt: &now,
	}

	if _, err := r.db.NewInsert().Model(token).Exec(ctx); err != nil {
		return nil, err
	}
	return token, nil
}

func (r *verificationTokens) FindTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*VerificationToken, error) {
	token := &VerificationToken{}
	err := tx.NewSelect().
		Model(token).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"token": id.String()})
		}
		return nil, err
	}
	return token, nil
}

func (r *verificationTokens) ConsumeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) error {
	_, err := tx.NewUpdate().
		Model((*VerificationToken)(nil)).
		Set("consumed_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// Latest returns the most recently issued token for userID
func (r *verificationTokens) Latest(ctx context.Context, userID uuid.UUID) (*VerificationToken, error) {
	token := &VerificationToken{}
	err := r.db.NewSelect().
		Model(token).
		Where("?TableAlias.user_id = ?", userID).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"user_id": userID.String()})
		}
		return nil, err
	}
	return token, nil
}
