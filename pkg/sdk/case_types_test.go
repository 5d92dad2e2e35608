package sdk

import (
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriageCase_EffectiveFields(t *testing.T) {
	tc := TriageCase{AIUrgency: UrgencyRoutine, AISummary: "ai"}
	assert.Equal(t, UrgencyRoutine, tc.EffectiveUrgency())
	assert.Equal(t, "ai", tc.EffectiveSummary())

	tc.OverrideUrgency = UrgencyUrgent
	tc.OverrideSummary = "override"
	assert.Equal(t, UrgencyUrgent, tc.EffectiveUrgency())
	assert.Equal(t, "override", tc.EffectiveSummary())
}

func TestUrgency_PriorityOrdering(t *testing.T) {
	cases := []TriageCase{
		{LastName: "routine", AIUrgency: UrgencyRoutine},
		{LastName: "unknown"},
		{LastName: "urgent", AIUrgency: UrgencyUrgent},
		{LastName: "override", AIUrgency: UrgencyRoutine, OverrideUrgency: UrgencySemiUrgent},
	}
	sort.SliceStable(cases, func(i, j int) bool {
		return cases[i].EffectiveUrgency().Priority() < cases[j].EffectiveUrgency().Priority()
	})

	names := make([]string, len(cases))
	for i, tc := range cases {
		names[i] = tc.LastName
	}
	assert.Equal(t, []string{"urgent", "override", "routine", "unknown"}, names)
	assert.Equal(t, "Semi-Urgent", UrgencySemiUrgent.Label())
	assert.False(t, Urgency("critical").Valid())
}

func TestTriageCase_Age(t *testing.T) {
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		dob    string
		want   int
		wantOK bool
	}{
		{dob: "1990-03-01", want: 34, wantOK: true},
		{dob: "1990-03-02", want: 33, wantOK: true},
		{dob: "2000-02-29", want: 24, wantOK: true},
		{dob: "", wantOK: false},
		{dob: "03/01/1990", wantOK: false},
		{dob: "2030-01-01", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.dob, func(t *testing.T) {
			age, ok := TriageCase{DOB: tt.dob}.Age(now)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, age)
			}
		})
	}
}

func TestTriageCase_PatientName(t *testing.T) {
	assert.Equal(t, "Ann Lee", TriageCase{FirstName: "Ann", LastName: "Lee"}.PatientName())
	assert.Equal(t, "Lee", TriageCase{LastName: "Lee"}.PatientName())
	assert.Equal(t, "Ann", TriageCase{FirstName: "Ann"}.PatientName())
}

func TestTriageCase_DecodesBackendPayload(t *testing.T) {
	payload := `{
		"caseID": "6f1c2b1e-8a53-4c5e-9d2f-0c2f6b0a9e11",
		"patientID": "0d8f3c4b-2a1e-4f6d-8b7c-5e9a1d2c3b4a",
		"firstName": "Ann",
		"lastName": "Lee",
		"DOB": "1985-07-14",
		"AIConfidence": 0.91,
		"AIUrgency": "semi-urgent",
		"overrideUrgency": null,
		"status": "resolved",
		"resolutionReason": "Booked",
		"resolutionTimestamp": "2025-01-02T10:11:12.123456",
		"resolvedBy": "9b7e6d5c-4b3a-4c2d-8e1f-0a9b8c7d6e5f",
		"dateCreated": "2025-01-01T08:00:00Z"
	}`

	var tc TriageCase
	require.NoError(t, json.Unmarshal([]byte(payload), &tc))

	assert.Equal(t, "6f1c2b1e-8a53-4c5e-9d2f-0c2f6b0a9e11", tc.ID.String())
	assert.Equal(t, UrgencySemiUrgent, tc.EffectiveUrgency())
	require.NotNil(t, tc.AIConfidence)
	assert.InDelta(t, 0.91, *tc.AIConfidence, 1e-9)
	assert.True(t, tc.IsResolved())
	require.NotNil(t, tc.ResolutionTimestamp)
	assert.Equal(t, time.Date(2025, 1, 2, 10, 11, 12, 123456000, time.UTC), tc.ResolutionTimestamp.Time)
	assert.Equal(t, time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC), tc.DateCreated.Time.UTC())
}

func TestTimestamp(t *testing.T) {
	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`null`), &ts))
	assert.True(t, ts.IsZero())
	require.NoError(t, json.Unmarshal([]byte(`""`), &ts))
	assert.True(t, ts.IsZero())
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))

	out, err := json.Marshal(Timestamp{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))

	out, err = json.Marshal(Timestamp{Time: time.Date(2025, 5, 6, 7, 8, 9, 0, time.UTC)})
	require.NoError(t, err)
	assert.Equal(t, `"2025-05-06T07:08:09Z"`, string(out))
}

func TestRole(t *testing.T) {
	role, err := ParseRole(" Admin ")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)
	assert.Equal(t, "Admin", role.Label())

	_, err = ParseRole("nurse")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
