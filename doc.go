// Package authflow gates navigation of a consumer app on authentication,
// email verification, and a multi-step onboarding flow.
//
// Session lifecycle:
//   - SessionProvider wraps a raw Backend. It validates credentials locally,
//     normalizes emails, and classifies every backend failure into an
//     AuthError with a closed AuthErrorKind.
//   - Store is the single writer of the shared User record. Start loads the
//     current user and then applies backend change events in delivery order.
//     Login, Register, Logout and UpdateUser issue redirects through a
//     Navigator.
//
// Navigation:
//   - StepRegistry is the ordered list of onboarding steps. Each step names
//     the profile fields it produces and a Satisfied predicate over them.
//   - Guard.Decide is a pure function of (route, State) evaluated as an
//     ordered rule list. A RouteWatcher re-evaluates it on every route
//     change and store tick; OnboardingMiddleware applies the same rules to
//     server routes.
//
// Actions:
//   - EmailVerificationGuard blocks individual actions, not routes, until the
//     session email is verified and signals the UI to show a modal.
//
// Activity sinks:
//   - ActivitySink is a best-effort audit emitter for login, registration,
//     verification and profile events. Sink errors are logged, never returned.
package authflow
