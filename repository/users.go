package repository

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users stores account credentials
type Users interface {
	repository.Repository[*UserRecord]

	Register(ctx context.Context, user *UserRecord) (*UserRecord, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *UserRecord) (*UserRecord, error)
	FindByEmail(ctx context.Context, email string) (*UserRecord, error)
	FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*UserRecord, error)
	FindByID(ctx context.Context, id uuid.UUID) (*UserRecord, error)
	FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*UserRecord, error)
	MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) (bool, error)
	TrackSuccessfulLogin(ctx context.Context, id uuid.UUID) error
}

type users struct {
	repository.Repository[*UserRecord]
	db *bun.DB
}

var _ Users = (*users)(nil)

// NewUsersRepository returns the bun backed Users repository
func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*UserRecord](db, repository.ModelHandlers[*UserRecord]{
		NewRecord: func() *UserRecord { return &UserRecord{} },
		GetID: func(u *UserRecord) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *UserRecord, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (u *users) Register(ctx context.Context, user *UserRecord) (*UserRecord, error) {
	return u.RegisterTx(ctx, u.db, user)
}

// RegisterTx inserts a new account with a normalized email
func (u *users) RegisterTx(ctx context.Context, tx bun.IDB, user *UserRecord) (*UserRecord, error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	return u.Repository.CreateTx(ctx, tx, user)
}

func (u *users) FindByEmail(ctx context.Context, email string) (*UserRecord, error) {
	return u.FindByEmailTx(ctx, u.db, email)
}

func (u *users) FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*UserRecord, error) {
	return u.Repository.GetByIdentifierTx(ctx, tx, strings.ToLower(strings.TrimSpace(email)))
}

func (u *users) FindByID(ctx context.Context, id uuid.UUID) (*UserRecord, error) {
	return u.FindByIDTx(ctx, u.db, id)
}

func (u *users) FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*UserRecord, error) {
	record := &UserRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"id": id.String()})
		}
		return nil, err
	}
	return record, nil
}

// MarkEmailVerifiedTx flips the verified flag. It reports false when the
// account was already verified.
func (u *users) MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) (bool, error) {
	res, err := tx.NewUpdate().
		Model((*UserRecord)(nil)).
		Set("is_email_verified = ?", true).
		Set("verified_at = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("is_email_verified = ?", false).
		Exec(ctx)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (u *users) TrackSuccessfulLogin(ctx context.Context, id uuid.UUID) error {
	_, err := u.db.NewUpdate().
		Model((*UserRecord)(nil)).
		Set("loggedin_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	return err
}
