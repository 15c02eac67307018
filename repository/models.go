package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRecord is the credentials row of an account
type UserRecord struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	EmailVerified bool       `bun:"is_email_verified,notnull,default:false" json:"is_email_verified"`
	VerifiedAt    *time.Time `bun:"verified_at,nullzero" json:"verified_at,omitempty"`
	LoggedInAt    *time.Time `bun:"loggedin_at,nullzero" json:"loggedin_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// ProfileRecord holds onboarding progress and the general profile fields
type ProfileRecord struct {
	bun.BaseModel  `bun:"table:profiles,alias:prf"`
	UserID         uuid.UUID  `bun:"user_id,pk,type:uuid" json:"user_id"`
	OnboardingStep string     `bun:"onboarding_step,notnull" json:"onboarding_step"`
	Username       string     `bun:"username" json:"username,omitempty"`
	DisplayName    string     `bun:"display_name" json:"display_name,omitempty"`
	AvatarURL      string     `bun:"avatar_url" json:"avatar_url,omitempty"`
	DealBreakers   []string   `bun:"deal_breakers,type:jsonb" json:"deal_breakers,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// InterestRecord links a user to a top level interest
type InterestRecord struct {
	bun.BaseModel `bun:"table:user_interests,alias:uin"`
	UserID        uuid.UUID  `bun:"user_id,pk,type:uuid"`
	InterestID    string     `bun:"interest_id,pk"`
	Position      int        `bun:"position,notnull"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp"`
}

// SubInterestRecord links a user to a sub category
type SubInterestRecord struct {
	bun.BaseModel `bun:"table:user_sub_interests,alias:usi"`
	UserID        uuid.UUID  `bun:"user_id,pk,type:uuid"`
	SubInterestID string     `bun:"sub_interest_id,pk"`
	Position      int        `bun:"position,notnull"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp"`
}

// VerificationToken is a single use email confirmation token
type VerificationToken struct {
	bun.BaseModel `bun:"table:verification_tokens,alias:vtk"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id"`
	Email         string     `bun:"email,notnull" json:"email"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at"`
	ConsumedAt    *time.Time `bun:"consumed_at,nullzero" json:"consumed_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Expired reports whether the token can no longer be used at now
func (t *VerificationToken) Expired(now time.Time) bool {
	return t == nil || !now.Before(t.ExpiresAt)
}

// MetadataRecord is a client side key value entry
type MetadataRecord struct {
	bun.BaseModel `bun:"table:client_metadata,alias:cmd"`
	Key           string    `bun:"key,pk"`
	Value         []byte    `bun:"value"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}
