package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ProfileChanges is a partial update of the general profile fields.
// Nil fields are left untouched.
type ProfileChanges struct {
	OnboardingStep *string
	Username       *string
	DisplayName    *string
	AvatarURL      *string
	DealBreakers   []string
}

// ProfileSnapshot is a profile with its interest sets
type ProfileSnapshot struct {
	ProfileRecord
	Interests    []string
	SubInterests []string
}

// Profiles stores onboarding progress and interest selections
type Profiles interface {
	CreateTx(ctx context.Context, tx bun.IDB, profile *ProfileRecord) error
	Get(ctx context.Context, userID uuid.UUID) (*ProfileSnapshot, error)
	Update(ctx context.Context, userID uuid.UUID, changes ProfileChanges) error
	ReplaceInterests(ctx context.Context, userID uuid.UUID, interests []string) error
	ReplaceSubInterests(ctx context.Context, userID uuid.UUID, subInterests []string) error
}

type profiles struct {
	db  *bun.DB
	now func() time.Time
}

var _ Profiles = (*profiles)(nil)

// NewProfilesRepository returns the bun backed Profiles repository
func NewProfilesRepository(db *bun.DB) Profiles {
	return &profiles{db: db, now: time.Now}
}

func (p *profiles) CreateTx(ctx context.Context, tx bun.IDB, profile *ProfileRecord) error {
	_, err := tx.NewInsert().
		Model(profile).
		On("CONFLICT (user_id) DO NOTHING").
		Exec(ctx)
	return err
}

func (p *profiles) Get(ctx context.Context, userID uuid.UUID) (*ProfileSnapshot, error) {
	snapshot := &ProfileSnapshot{}
	err := p.db.NewSelect().
		Model(&snapshot.ProfileRecord).
		Where("?TableAlias.user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"user_id": userID.String()})
		}
		return nil, err
	}

	var interests []InterestRecord
	if err := p.db.NewSelect().
		Model(&interests).
		Where("user_id = ?", userID).
		Order("position ASC").
		Scan(ctx); err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	for _, in := range interests {
		snapshot.Interests = append(snapshot.Interests, in.InterestID)
	}

	var subs []SubInterestRecord
	if err := p.db.NewSelect().
		Model(&subs).
		Where("user_id = ?", userID).
		Order("position ASC").
		Scan(ctx); err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	for _, sub := range subs {
		snapshot.SubInterests = append(snapshot.SubInterests, sub.SubInterestID)
	}

	return snapshot, nil
}

func (p *profiles) Update(ctx context.Context, userID uuid.UUID, changes ProfileChanges) error {
	q := p.db.NewUpdate().
		Model((*ProfileRecord)(nil)).
		Set("updated_at = ?", p.now())

	if changes.OnboardingStep != nil {
		q = q.Set("onboarding_step = ?", *changes.OnboardingStep)
	}
	if changes.Username != nil {
		q = q.Set("username = ?", *changes.Username)
	}
	if changes.DisplayName != nil {
		q = q.Set("display_name = ?", *changes.DisplayName)
	}
	if changes.AvatarURL != nil {
		q = q.Set("avatar_url = ?", *changes.AvatarURL)
	}
	if changes.DealBreakers != nil {
		encoded, err := json.Marshal(changes.DealBreakers)
		if err != nil {
			return err
		}
		q = q.Set("deal_breakers = ?", string(encoded))
	}

	res, err := q.Where("user_id = ?", userID).Exec(ctx)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"user_id": userID.String()})
	}
	return nil
}

// ReplaceInterests swaps the whole interest set inside one transaction
func (p *profiles) ReplaceInterests(ctx context.Context, userID uuid.UUID, interests []string) error {
	return p.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*InterestRecord)(nil)).
			Where("user_id = ?", userID).
			Exec(ctx); err != nil {
			return err
		}

		if len(interests) == 0 {
			return nil
		}

		rows := make([]InterestRecord, 0, len(interests))
		for i, id := range interests {
			rows = append(rows, InterestRecord{UserID: userID, InterestID: id, Position: i})
		}
		_, err := tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
}

// ReplaceSubInterests swaps the whole sub interest set inside one transaction
func (p *profiles) ReplaceSubInterests(ctx context.Context, userID uuid.UUID, subInterests []string) error {
	return p.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*SubInterestRecord)(nil)).
			Where("user_id = ?", userID).
			Exec(ctx); err != nil {
			return err
		}

		if len(subInterests) == 0 {
			return nil
		}

		rows := make([]SubInterestRecord, 0, len(subInterests))
		for i, id := range subInterests {
			rows = append(rows, SubInterestRecord{UserID: userID, SubInterestID: id, Position: i})
		}
		_, err := tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
}
