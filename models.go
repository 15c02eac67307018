package authflow

import (
	"slices"
	"time"
)

// OnboardingStep identifies a registered onboarding step
type OnboardingStep = string

const (
	// StepInterests collects the top level interest categories
	StepInterests OnboardingStep = "interests"
	// StepSubcategories collects sub categories for the chosen interests
	StepSubcategories OnboardingStep = "subcategories"
	// StepDealBreakers collects the user's deal breakers
	StepDealBreakers OnboardingStep = "deal-breakers"
	// StepComplete is the terminal step
	StepComplete OnboardingStep = "complete"
)

// Session is an authenticated identity
type Session struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	AccessToken   string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Usable reports whether the session carries an access token. A fresh
// registration awaiting verification is not usable.
func (s *Session) Usable() bool {
	return s != nil && s.AccessToken != ""
}

// Profile is the onboarding and progress record for a Session
type Profile struct {
	UserID         string         `json:"user_id"`
	OnboardingStep OnboardingStep `json:"onboarding_step"`
	Interests      []string       `json:"interests,omitempty"`
	SubInterests   []string       `json:"sub_interests,omitempty"`
	DealBreakers   []string       `json:"deal_breakers,omitempty"`
	Username       string         `json:"username,omitempty"`
	DisplayName    string         `json:"display_name,omitempty"`
	AvatarURL      string         `json:"avatar_url,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// OnboardingComplete reports whether the profile reached the terminal step
func (p *Profile) OnboardingComplete() bool {
	return p != nil && p.OnboardingStep == StepComplete
}

// Clone returns a deep copy of the profile
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	out := *p
	out.Interests = slices.Clone(p.Interests)
	out.SubInterests = slices.Clone(p.SubInterests)
	out.DealBreakers = slices.Clone(p.DealBreakers)
	return &out
}

// User is the merged Session and Profile held by the Store
type User struct {
	Session
	Profile *Profile `json:"profile,omitempty"`
}

// Clone returns a deep copy of the user
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.Profile = u.Profile.Clone()
	return &out
}

// ProfileFields are the general profile fields written through a single
// backend endpoint. Nil pointers are left untouched.
type ProfileFields struct {
	OnboardingStep *OnboardingStep `json:"onboarding_step,omitempty"`
	Username       *string         `json:"username,omitempty"`
	DisplayName    *string         `json:"display_name,omitempty"`
	AvatarURL      *string         `json:"avatar_url,omitempty"`
	DealBreakers   []string        `json:"deal_breakers,omitempty"`
}

// Empty reports whether no field is set
func (f ProfileFields) Empty() bool {
	return f.OnboardingStep == nil &&
		f.Username == nil &&
		f.DisplayName == nil &&
		f.AvatarURL == nil &&
		f.DealBreakers == nil
}

// ProfileUpdate is the partial update accepted by Store.UpdateUser.
// Interests and SubInterests are written through their own endpoints; a nil
// slice means "not provided", an empty non-nil slice clears the set.
type ProfileUpdate struct {
	ProfileFields
	Interests    []string `json:"interests,omitempty"`
	SubInterests []string `json:"sub_interests,omitempty"`
}

// Ptr returns a pointer to v, handy to build ProfileFields
func Ptr[T any](v T) *T {
	return &v
}
