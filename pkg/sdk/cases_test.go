package sdk_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KBTrotter/ent-triage-system/internal/triagetest"
	"github.com/KBTrotter/ent-triage-system/pkg/sdk"
)

func loggedIn(t *testing.T, srv *triagetest.Server, role sdk.Role) (*sdk.Session, sdk.User) {
	t.Helper()
	email := string(role) + "-" + uuid.NewString()[:8] + "@example.com"
	user := srv.AddUser("Test", string(role), email, testPassword, role)
	s := newSession(t, srv)
	_, err := s.Login(context.Background(), email, testPassword)
	require.NoError(t, err)
	return s, user
}

func TestCaseClient_ListAndGet(t *testing.T) {
	srv := triagetest.New(t)
	s, _ := loggedIn(t, srv, sdk.RolePhysician)
	a := srv.AddCase(sdk.TriageCase{FirstName: "Ann", LastName: "Lee", AIUrgency: sdk.UrgencyRoutine})
	b := srv.AddCase(sdk.TriageCase{FirstName: "Bob", LastName: "Ray", AIUrgency: sdk.UrgencyUrgent})
	client := sdk.NewCaseClient(s)

	cases, err := client.ListCases(context.Background())
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, a.ID, cases[0].ID)
	assert.Equal(t, b.ID, cases[1].ID)
	assert.Equal(t, sdk.StatusPending, cases[0].Status)

	got, err := client.GetCase(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bob Ray", got.PatientName())
	assert.Equal(t, sdk.UrgencyUrgent, got.EffectiveUrgency())

	_, err = client.GetCase(context.Background(), uuid.New())
	assert.ErrorIs(t, err, sdk.ErrNotFound)

	_, err = client.GetCase(context.Background(), uuid.Nil)
	assert.ErrorIs(t, err, sdk.ErrInvalidArgument)
}

func TestCaseClient_ListEmpty(t *testing.T) {
	srv := triagetest.New(t)
	s, _ := loggedIn(t, srv, sdk.RoleStaff)

	cases, err := sdk.NewCaseClient(s).ListCases(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, cases)
	assert.Empty(t, cases)
}

func TestCaseClient_RequiresAuthentication(t *testing.T) {
	srv := triagetest.New(t)
	s := newSession(t, srv)

	_, err := sdk.NewCaseClient(s).ListCases(context.Background())
	require.ErrorIs(t, err, sdk.ErrUnauthorized)
	assert.Equal(t, 1, srv.Calls("refresh"), "one renewal attempt without a cookie")
}

func TestCaseClient_CreateUpdateResolve(t *testing.T) {
	srv := triagetest.New(t)
	s, user := loggedIn(t, srv, sdk.RolePhysician)
	client := sdk.NewCaseClient(s)
	ctx := context.Background()

	confidence := 0.82
	created, err := client.CreateCase(ctx, sdk.CaseInput{
		PatientID:    uuid.New(),
		Transcript:   "Ear pain for three days",
		AIConfidence: &confidence,
		AISummary:    "Likely otitis media",
		AIUrgency:    sdk.UrgencySemiUrgent,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, sdk.StatusPending, created.Status)
	require.NotNil(t, created.CreatedBy)
	assert.Equal(t, user.ID, *created.CreatedBy)

	updated, err := client.UpdateCase(ctx, created.ID, sdk.Changes{"overrideUrgency": "urgent", "clinicianSummary": "Refer today"})
	require.NoError(t, err)
	assert.Equal(t, sdk.UrgencyUrgent, updated.EffectiveUrgency())
	assert.Equal(t, "Refer today", updated.EffectiveSummary())
	assert.Equal(t, "Ear pain for three days", updated.Transcript, "untouched fields are kept")

	_, err = client.UpdateCase(ctx, created.ID, sdk.Changes{"status": "resolved"})
	assert.ErrorIs(t, err, sdk.ErrForbidden)

	resolved, err := client.ResolveCase(ctx, created.ID, "  Referred to ENT clinic ")
	require.NoError(t, err)
	assert.True(t, resolved.IsResolved())
	assert.Equal(t, "Referred to ENT clinic", resolved.ResolutionReason)
	require.NotNil(t, resolved.ResolvedBy)
	assert.Equal(t, user.ID, *resolved.ResolvedBy)
	assert.Equal(t, user.Email, resolved.ResolvedByEmail)
	require.NotNil(t, resolved.ResolutionTimestamp)
	assert.False(t, resolved.ResolutionTimestamp.IsZero())
}
