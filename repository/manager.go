package repository

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// Manager exposes all repositories
type Manager interface {
	repository.Validator
	repository.TransactionManager
	DB() *bun.DB
	Users() Users
	Profiles() Profiles
	VerificationTokens() VerificationTokens
	Metadata() Metadata
}

type mngr struct {
	db       *bun.DB
	users    Users
	profiles Profiles
	tokens   VerificationTokens
	metadata Metadata
}

// NewManager wires every repository over db
func NewManager(db *bun.DB) Manager {
	return &mngr{
		db:       db,
		users:    NewUsersRepository(db),
		profiles: NewProfilesRepository(db),
		tokens:   NewVerificationTokensRepository(db),
		metadata: NewMetadataRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("repository db should be initialized")
	}

	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.profiles == nil {
		return errors.New("repository profiles should be initialized")
	}

	if m.tokens == nil {
		return errors.New("repository verification tokens should be initialized")
	}

	if m.metadata == nil {
		return errors.New("repository metadata should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) DB() *bun.DB {
	return m.db
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Profiles() Profiles {
	return m.profiles
}

func (m mngr) VerificationTokens() VerificationTokens {
	return m.tokens
}

func (m mngr) Metadata() Metadata {
	return m.metadata
}
