package authflow

import (
	"fmt"
	"strings"
)

// StepPredicate is a pure function of the current session and profile.
// Predicates run on every route change and must not have side effects.
type StepPredicate func(s *Session, p *Profile) bool

// Step is a single registry entry
type Step struct {
	ID   OnboardingStep
	Path string
	// Produces names the profile fields the step is responsible for setting.
	Produces []string
	// Requires describes what must already be true to land on the step,
	// beyond every earlier step being satisfied.
	Requires StepPredicate
	// Satisfied reports whether the step's Produces fields are set.
	Satisfied StepPredicate
}

// StepRegistry is the ordered list of onboarding steps. The order is a
// total order and the registry is immutable after construction.
type StepRegistry struct {
	steps  []Step
	byID   map[OnboardingStep]int
	byPath map[string]int
}

// NewStepRegistry validates and indexes the given steps
func NewStepRegistry(steps ...Step) (*StepRegistry, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("step registry requires at least one step")
	}

	r := &StepRegistry{
		steps:  make([]Step, 0, len(steps)),
		byID:   make(map[OnboardingStep]int, len(steps)),
		byPath: make(map[string]int, len(steps)),
	}

	for i, step := range steps {
		if strings.TrimSpace(step.ID) == "" {
			return nil, fmt.Errorf("step %d has an empty id", i)
		}
		if !strings.HasPrefix(step.Path, "/") {
			return nil, fmt.Errorf("step %q path must be absolute, got %q", step.ID, step.Path)
		}
		if _, ok := r.byID[step.ID]; ok {
			return nil, fmt.Errorf("duplicated step id %q", step.ID)
		}
		if _, ok := r.byPath[step.Path]; ok {
			return nil, fmt.Errorf("duplicated step path %q", step.Path)
		}
		if step.Satisfied == nil {
			return nil, fmt.Errorf("step %q has no Satisfied predicate", step.ID)
		}
		if step.Requires == nil {
			step.Requires = func(*Session, *Profile) bool { return true }
		}

		r.byID[step.ID] = i
		r.byPath[step.Path] = i
		r.steps = append(r.steps, step)
	}

	return r, nil
}

// MustStepRegistry panics if the steps are invalid
func MustStepRegistry(steps ...Step) *StepRegistry {
	r, err := NewStepRegistry(steps...)
	if err != nil {
		panic(err)
	}
	return r
}

// DefaultSteps returns the onboarding flow of the web app
func DefaultSteps() []Step {
	return []Step{
		{
			ID:       StepInterests,
			Path:     "/interests",
			Produces: []string{"interests"},
			Requires: func(s *Session, _ *Profile) bool {
				return s != nil && s.EmailVerified
			},
			Satisfied: func(_ *Session, p *Profile) bool {
				return p != nil && len(p.Interests) > 0
			},
		},
		{
			ID:       StepSubcategories,
			Path:     "/subcategories",
			Produces: []string{"sub_interests"},
			Satisfied: func(_ *Session, p *Profile) bool {
				return p != nil && len(p.SubInterests) > 0
			},
		},
		{
			ID:       StepDealBreakers,
			Path:     "/deal-breakers",
			Produces: []string{"deal_breakers"},
			Satisfied: func(_ *Session, p *Profile) bool {
				return p != nil && (len(p.DealBreakers) > 0 || p.OnboardingComplete())
			},
		},
		{
			ID:       StepComplete,
			Path:     "/complete",
			Produces: []string{"onboarding_step"},
			Satisfied: func(_ *Session, p *Profile) bool {
				return p.OnboardingComplete()
			},
		},
	}
}

// DefaultStepRegistry returns the registry built from DefaultSteps
func DefaultStepRegistry() *StepRegistry {
	return MustStepRegistry(DefaultSteps()...)
}

// Steps returns a copy of the ordered steps
func (r *StepRegistry) Steps() []Step {
	out := make([]Step, len(r.steps))
	copy(out, r.steps)
	return out
}

// Len returns the number of registered steps
func (r *StepRegistry) Len() int {
	return len(r.steps)
}

// First returns the entry step of the flow
func (r *StepRegistry) First() Step {
	return r.steps[0]
}

// Terminal returns the last step of the flow
func (r *StepRegistry) Terminal() Step {
	return r.steps[len(r.steps)-1]
}

// Step finds a step by id
func (r *StepRegistry) Step(id OnboardingStep) (Step, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Step{}, false
	}
	return r.steps[i], true
}

// StepByPath finds a step by its route
func (r *StepRegistry) StepByPath(path string) (Step, bool) {
	i, ok := r.byPath[path]
	if !ok {
		return Step{}, false
	}
	return r.steps[i], true
}

// Index returns the position of id in the registry order, or -1
func (r *StepRegistry) Index(id OnboardingStep) int {
	i, ok := r.byID[id]
	if !ok {
		return -1
	}
	return i
}

// IsAfter reports whether a comes strictly after b. Unknown ids are never
// after a known one.
func (r *StepRegistry) IsAfter(a, b OnboardingStep) bool {
	return r.Index(a) > r.Index(b)
}

// Paths returns the route of every step in order
func (r *StepRegistry) Paths() []string {
	out := make([]string, 0, len(r.steps))
	for _, s := range r.steps {
		out = append(out, s.Path)
	}
	return out
}

// FirstIncomplete returns the earliest step whose Produces is not satisfied
func (r *StepRegistry) FirstIncomplete(s *Session, p *Profile) (Step, bool) {
	for _, step := range r.steps {
		if !step.Satisfied(s, p) {
			return step, true
		}
	}
	return Step{}, false
}

// EarliestUnsatisfiedBefore returns the earliest step ahead of id whose
// Produces is not satisfied. Landing on id must redirect there.
func (r *StepRegistry) EarliestUnsatisfiedBefore(id OnboardingStep, s *Session, p *Profile) (Step, bool) {
	limit := r.Index(id)
	for i := 0; i < limit; i++ {
		if !r.steps[i].Satisfied(s, p) {
			return r.steps[i], true
		}
	}
	return Step{}, false
}
