package authflow_test

import (
	"github.com/goliatone/go-authflow"
)

const testUserID = "3f1c9a52-6c1e-4c55-9d54-2b8a9f0e7a11"

func unverifiedUser() *authflow.User {
	return &authflow.User{
		Session: authflow.Session{ID: testUserID, Email: "new@test.com"},
		Profile: &authflow.Profile{UserID: testUserID, OnboardingStep: authflow.StepInterests},
	}
}

// verifiedUser returns a verified user whose profile has filled every step
// before step
func verifiedUser(step authflow.OnboardingStep) *authflow.User {
	u := &authflow.User{
		Session: authflow.Session{
			ID:            testUserID,
			Email:         "new@test.com",
			EmailVerified: true,
			AccessToken:   "token",
		},
		Profile: &authflow.Profile{UserID: testUserID, OnboardingStep: step},
	}

	switch step {
	case authflow.StepComplete:
		u.Profile.DealBreakers = []string{"loud-music"}
		fallthrough
	case authflow.StepDealBreakers:
		u.Profile.SubInterests = []string{"sushi"}
		fallthrough
	case authflow.StepSubcategories:
		u.Profile.Interests = []string{"food"}
	}
	return u
}

func settled(u *authflow.User) authflow.State {
	return authflow.State{User: u}
}
