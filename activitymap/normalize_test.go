package activitymap_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-authflow"
	"github.com/goliatone/go-authflow/activitymap"
)

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := authflow.ActivityEvent{
		EventType: authflow.ActivityEventLoginSuccess,
		UserID:    "user-100",
		Email:     "new@test.com",
		Redirect:  "/interests",
		Metadata: map[string]any{
			"client": "ios",
		},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	if out.ActorID != "user-100" {
		t.Fatalf("expected actor_id user-100, got %q", out.ActorID)
	}
	if out.Verb != string(authflow.ActivityEventLoginSuccess) {
		t.Fatalf("expected verb %q, got %q", authflow.ActivityEventLoginSuccess, out.Verb)
	}
	if out.ObjectType != "user" {
		t.Fatalf("expected object_type user, got %q", out.ObjectType)
	}
	if out.ObjectID != "user-100" {
		t.Fatalf("expected object_id user-100, got %q", out.ObjectID)
	}
	if out.Channel != "authflow" {
		t.Fatalf("expected channel authflow, got %q", out.Channel)
	}
	if !out.OccurredAt.Equal(ts) {
		t.Fatalf("expected occurred_at %v, got %v", ts, out.OccurredAt)
	}

	if out.Metadata["client"] != "ios" {
		t.Fatalf("expected metadata client ios, got %#v", out.Metadata["client"])
	}
	if out.Metadata[activitymap.MetadataKeyEmail] != "new@test.com" {
		t.Fatalf("expected metadata email, got %#v", out.Metadata[activitymap.MetadataKeyEmail])
	}
	if out.Metadata[activitymap.MetadataKeyRedirect] != "/interests" {
		t.Fatalf("expected metadata redirect /interests, got %#v", out.Metadata[activitymap.MetadataKeyRedirect])
	}
	if _, ok := out.Metadata[activitymap.MetadataKeyErrorKind]; ok {
		t.Fatalf("expected no error_kind for a successful event")
	}

	if len(event.Metadata) != 1 {
		t.Fatalf("expected source metadata to remain unchanged, got %+v", event.Metadata)
	}
}

func TestNormalizeFailureCarriesErrorKind(t *testing.T) {
	t.Parallel()

	out := activitymap.Normalize(authflow.ActivityEvent{
		EventType: authflow.ActivityEventLoginFailure,
		Email:     "someone@test.com",
		ErrorKind: authflow.KindInvalidCredentials,
	})

	if out.ActorID != "anonymous" {
		t.Fatalf("expected anonymous actor, got %q", out.ActorID)
	}
	if out.ObjectID != "" {
		t.Fatalf("expected empty object_id, got %q", out.ObjectID)
	}
	if out.Metadata[activitymap.MetadataKeyErrorKind] != string(authflow.KindInvalidCredentials) {
		t.Fatalf("expected error_kind, got %#v", out.Metadata[activitymap.MetadataKeyErrorKind])
	}
	if out.OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be set when input is zero")
	}
}

func TestNormalizeOptionOverrides(t *testing.T) {
	t.Parallel()

	event := authflow.ActivityEvent{
		EventType: authflow.ActivityEventRedirect,
		UserID:    "user-200",
		Redirect:  "/subcategories",
		Metadata: map[string]any{
			"step":                          "subcategories",
			activitymap.MetadataKeyRedirect: "existing",
		},
	}

	out := activitymap.Normalize(
		event,
		activitymap.WithDefaultChannel("onboarding"),
		activitymap.WithDefaultObjectType("profile"),
		activitymap.WithObjectIDResolver(func(e authflow.ActivityEvent) string {
			if v, ok := e.Metadata["step"].(string); ok {
				return v
			}
			return ""
		}),
	)

	if out.Channel != "onboarding" {
		t.Fatalf("expected channel onboarding, got %q", out.Channel)
	}
	if out.ObjectType != "profile" {
		t.Fatalf("expected object_type profile, got %q", out.ObjectType)
	}
	if out.ObjectID != "subcategories" {
		t.Fatalf("expected object_id subcategories, got %q", out.ObjectID)
	}
	if out.Metadata[activitymap.MetadataKeyRedirect] != "existing" {
		t.Fatalf("expected existing redirect preserved, got %#v", out.Metadata[activitymap.MetadataKeyRedirect])
	}
}

func TestNormalizeActorFallbackChain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		event  authflow.ActivityEvent
		opts   []activitymap.Option
		expect string
	}{
		{
			name:   "uses user id when present",
			event:  authflow.ActivityEvent{UserID: "user-2"},
			expect: "user-2",
		},
		{
			name:   "uses default fallback when user missing",
			event:  authflow.ActivityEvent{},
			expect: "anonymous",
		},
		{
			name:   "uses configured fallback when user missing",
			event:  authflow.ActivityEvent{UserID: "  "},
			opts:   []activitymap.Option{activitymap.WithActorFallback("guest")},
			expect: "guest",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			out := activitymap.Normalize(tc.event, tc.opts...)
			if out.ActorID != tc.expect {
				t.Fatalf("expected actor_id %q, got %q", tc.expect, out.ActorID)
			}
		})
	}
}

func TestSinkForwardsNormalizedRecords(t *testing.T) {
	t.Parallel()

	var got []activitymap.Normalized
	sink := activitymap.Sink(func(n activitymap.Normalized) error {
		got = append(got, n)
		return nil
	}, activitymap.WithDefaultChannel("audit"))

	err := sink.Record(context.Background(), authflow.ActivityEvent{
		EventType: authflow.ActivityEventLogout,
		UserID:    "user-9",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one record, got %d", len(got))
	}
	if got[0].Channel != "audit" || got[0].Verb != string(authflow.ActivityEventLogout) {
		t.Fatalf("unexpected record %+v", got[0])
	}
}
