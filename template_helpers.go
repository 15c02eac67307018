package authflow

import (
	"github.com/goliatone/go-router"
)

var TemplateUserKey = "current_user"

// TemplateHelpers returns helper functions for rendering auth aware pages
// such as the verification page and the onboarding steps.
//
// Usage:
//
//	renderer, err := template.NewRenderer(
//	    template.WithBaseDir("./templates"),
//	    template.WithGlobalData(authflow.TemplateHelpers()),
//	)
//
// In templates, you can then use:
//
//	{% if current_user|is_authenticated %}
//	{% if not current_user|is_verified %}
//	{% if current_user|onboarding_complete %}
func TemplateHelpers() map[string]any {
	routes := DefaultRoutes()
	return map[string]any{
		"is_authenticated":    isAuthenticated,
		"is_verified":         isVerified,
		"onboarding_complete": onboardingComplete,
		"routes": map[string]string{
			"home":         routes.GetHomeRoute(),
			"entry":        routes.GetEntryRoute(),
			"login":        routes.GetLoginRoute(),
			"register":     routes.GetRegisterRoute(),
			"verify_email": routes.GetVerifyEmailRoute(),
		},
	}
}

// TemplateHelpersWithState adds the current user and the onboarding
// progress derived from st. The next_step entry is the route the guard
// would send the user to, empty when onboarding does not apply.
func TemplateHelpersWithState(st State, guard *Guard) map[string]any {
	if guard == nil {
		guard = NewGuard()
	}

	helpers := TemplateHelpers()
	cfg := guard.Config()
	helpers["routes"] = map[string]string{
		"home":         cfg.GetHomeRoute(),
		"entry":        cfg.GetEntryRoute(),
		"login":        cfg.GetLoginRoute(),
		"register":     cfg.GetRegisterRoute(),
		"verify_email": cfg.GetVerifyEmailRoute(),
	}
	helpers["is_loading"] = st.IsLoading
	helpers["steps"] = guard.Registry().Paths()

	if st.User != nil {
		helpers[TemplateUserKey] = st.User
	}

	switch s := DeriveState(st, guard.Registry()).(type) {
	case OnboardingIncomplete:
		helpers["next_step"] = s.Step.Path
		helpers["step_index"] = guard.Registry().Index(s.Step.ID)
	case Unverified:
		helpers["next_step"] = cfg.GetVerifyEmailRoute()
	default:
		helpers["next_step"] = ""
	}

	if st.Error != nil {
		helpers["auth_error"] = st.Error.Message
	}

	return helpers
}

// TemplateHelpersWithRouter resolves the state from the router locals
// stored under key, see StateFromRouter.
func TemplateHelpersWithRouter(ctx router.Context, key string, guard *Guard) map[string]any {
	st, _ := StateFromRouter(ctx, key)
	return TemplateHelpersWithState(st, guard)
}

// GetTemplateUser extracts the user from the router locals for template usage
func GetTemplateUser(ctx router.Context, key string) (*User, bool) {
	st, ok := StateFromRouter(ctx, key)
	if !ok || st.User == nil {
		return nil, false
	}
	return st.User, true
}

func isAuthenticated(user any) bool {
	switch u := user.(type) {
	case *User:
		return u != nil
	case User:
		return u.ID != ""
	case map[string]any:
		// JSON converted user objects
		return len(u) > 0
	default:
		return false
	}
}

func isVerified(user any) bool {
	switch u := user.(type) {
	case *User:
		return u != nil && u.EmailVerified
	case User:
		return u.EmailVerified
	case map[string]any:
		v, _ := u["email_verified"].(bool)
		return v
	default:
		return false
	}
}

func onboardingComplete(user any) bool {
	switch u := user.(type) {
	case *User:
		return u != nil && u.Profile.OnboardingComplete()
	case User:
		return u.Profile.OnboardingComplete()
	case map[string]any:
		profile, _ := u["profile"].(map[string]any)
		step, _ := profile["onboarding_step"].(string)
		return step == StepComplete
	default:
		return false
	}
}
