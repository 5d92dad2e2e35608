package sdk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Urgency is the triage urgency of a case.
type Urgency string

const (
	UrgencyRoutine    Urgency = "routine"
	UrgencySemiUrgent Urgency = "semi-urgent"
	UrgencyUrgent     Urgency = "urgent"
)

// Valid reports whether u is a known urgency.
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyRoutine, UrgencySemiUrgent, UrgencyUrgent:
		return true
	}
	return false
}

// Priority orders urgencies most-urgent first (1 = urgent). Unknown values sort last.
func (u Urgency) Priority() int {
	switch u {
	case UrgencyUrgent:
		return 1
	case UrgencySemiUrgent:
		return 2
	case UrgencyRoutine:
		return 3
	}
	return 4
}

// Label returns the display label for u.
func (u Urgency) Label() string {
	switch u {
	case UrgencyRoutine:
		return "Routine"
	case UrgencySemiUrgent:
		return "Semi-Urgent"
	case UrgencyUrgent:
		return "Urgent"
	}
	return string(u)
}

// Status is the lifecycle status of a case. The only transition is pending → resolved.
type Status string

const (
	StatusPending  Status = "pending"
	StatusResolved Status = "resolved"
)

// Timestamp decodes both RFC 3339 timestamps and the zone-less ISO 8601 form
// the backend emits for naive datetimes (interpreted as UTC).
type Timestamp struct {
	time.Time
}

const naiveLayout = "2006-01-02T15:04:05.999999999"

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		*t = Timestamp{}
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = parsed
		return nil
	}
	parsed, err := time.ParseInLocation(naiveLayout, s, time.UTC)
	if err != nil {
		return fmt.Errorf("timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// TriageCase is a patient triage case as returned by the backend.
type TriageCase struct {
	ID        uuid.UUID `json:"caseID"`
	PatientID uuid.UUID `json:"patientID"`

	FirstName          string `json:"firstName"`
	LastName           string `json:"lastName"`
	DOB                string `json:"DOB,omitempty"` // YYYY-MM-DD
	ContactInfo        string `json:"contactInfo,omitempty"`
	InsuranceInfo      string `json:"insuranceInfo,omitempty"`
	ReturningPatient   bool   `json:"returningPatient"`
	LanguagePreference string `json:"languagePreference,omitempty"`

	Transcript       string   `json:"transcript,omitempty"`
	AIConfidence     *float64 `json:"AIConfidence,omitempty"`
	AIUrgency        Urgency  `json:"AIUrgency,omitempty"`
	OverrideUrgency  Urgency  `json:"overrideUrgency,omitempty"`
	AISummary        string   `json:"AISummary,omitempty"`
	OverrideSummary  string   `json:"overrideSummary,omitempty"`
	ClinicianSummary string   `json:"clinicianSummary,omitempty"`

	Status              Status     `json:"status"`
	ResolutionReason    string     `json:"resolutionReason,omitempty"`
	ResolutionTimestamp *Timestamp `json:"resolutionTimestamp,omitempty"`
	ResolvedBy          *uuid.UUID `json:"resolvedBy,omitempty"`
	ResolvedByEmail     string     `json:"resolvedByEmail,omitempty"`

	CreatedBy   *uuid.UUID `json:"createdBy,omitempty"`
	DateCreated Timestamp  `json:"dateCreated"`
}

// EffectiveUrgency is the clinician override when present, else the AI urgency.
func (c TriageCase) EffectiveUrgency() Urgency {
	if c.OverrideUrgency != "" {
		return c.OverrideUrgency
	}
	return c.AIUrgency
}

// EffectiveSummary is the clinician override when present, else the AI summary.
func (c TriageCase) EffectiveSummary() string {
	if c.OverrideSummary != "" {
		return c.OverrideSummary
	}
	return c.AISummary
}

// IsResolved reports whether the case reached its terminal status.
func (c TriageCase) IsResolved() bool {
	return c.Status == StatusResolved
}

// PatientName joins the patient's first and last name.
func (c TriageCase) PatientName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// Age returns the patient's age in whole years at now. ok is false when DOB is
// missing or malformed.
func (c TriageCase) Age(now time.Time) (age int, ok bool) {
	if c.DOB == "" {
		return 0, false
	}
	dob, err := time.Parse(time.DateOnly, c.DOB)
	if err != nil {
		return 0, false
	}
	age = now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	if age < 0 {
		return 0, false
	}
	return age, true
}

// CaseInput is the payload for creating a case.
type CaseInput struct {
	PatientID    uuid.UUID `json:"patientID"`
	Transcript   string    `json:"transcript"`
	AIConfidence *float64  `json:"AIConfidence,omitempty"`
	AISummary    string    `json:"AISummary,omitempty"`
	AIUrgency    Urgency   `json:"AIUrgency,omitempty"`
}

// IsZero reports whether no field of the input is set.
func (in CaseInput) IsZero() bool {
	return in.PatientID == uuid.Nil &&
		in.Transcript == "" &&
		in.AIConfidence == nil &&
		in.AISummary == "" &&
		in.AIUrgency == ""
}

// CaseForm is the editable subset of a case, used as a diff snapshot.
type CaseForm struct {
	FirstName          string  `json:"firstName"`
	LastName           string  `json:"lastName"`
	DOB                string  `json:"DOB"`
	ContactInfo        string  `json:"contactInfo"`
	InsuranceInfo      string  `json:"insuranceInfo"`
	ReturningPatient   bool    `json:"returningPatient"`
	LanguagePreference string  `json:"languagePreference"`
	OverrideUrgency    Urgency `json:"overrideUrgency"`
	OverrideSummary    string  `json:"overrideSummary"`
	ClinicianSummary   string  `json:"clinicianSummary"`
}

// CaseFormFrom snapshots the editable fields of c.
func CaseFormFrom(c TriageCase) CaseForm {
	return CaseForm{
		FirstName:          c.FirstName,
		LastName:           c.LastName,
		DOB:                c.DOB,
		ContactInfo:        c.ContactInfo,
		InsuranceInfo:      c.InsuranceInfo,
		ReturningPatient:   c.ReturningPatient,
		LanguagePreference: c.LanguagePreference,
		OverrideUrgency:    c.OverrideUrgency,
		OverrideSummary:    c.OverrideSummary,
		ClinicianSummary:   c.ClinicianSummary,
	}
}
