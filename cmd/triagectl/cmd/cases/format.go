package cases

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-bexpr"
	"github.com/pterm/pterm"

	"github.com/KBTrotter/ent-triage-system/pkg/sdk"
)

const summaryPreviewLimit = 48

// sortByUrgency orders cases most urgent first, oldest first within a level.
func sortByUrgency(cases []sdk.TriageCase) {
	sort.SliceStable(cases, func(i, j int) bool {
		pi, pj := cases[i].EffectiveUrgency().Priority(), cases[j].EffectiveUrgency().Priority()
		if pi != pj {
			return pi < pj
		}
		return cases[i].DateCreated.Before(cases[j].DateCreated.Time)
	})
}

// filterFields is the datum a --filter expression is evaluated against.
func filterFields(tc sdk.TriageCase) map[string]any {
	fields := map[string]any{
		"id":        tc.ID.String(),
		"patientID": tc.PatientID.String(),
		"firstName": tc.FirstName,
		"lastName":  tc.LastName,
		"patient":   tc.PatientName(),
		"urgency":   string(tc.EffectiveUrgency()),
		"aiUrgency": string(tc.AIUrgency),
		"status":    string(tc.Status),
		"returning": tc.ReturningPatient,
		"language":  tc.LanguagePreference,
		"summary":   tc.EffectiveSummary(),
	}
	fields["overridden"] = tc.OverrideUrgency != ""
	if tc.ResolvedByEmail != "" {
		fields["resolvedBy"] = tc.ResolvedByEmail
	}
	return fields
}

// filterCases keeps the cases matching a go-bexpr expression such as
// `urgency == "urgent" and returning == true`. An empty expression keeps all.
func filterCases(cases []sdk.TriageCase, expr string) ([]sdk.TriageCase, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return cases, nil
	}
	evaluator, err := bexpr.CreateEvaluator(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}
	out := make([]sdk.TriageCase, 0, len(cases))
	for _, tc := range cases {
		ok, err := evaluator.Evaluate(filterFields(tc))
		if err != nil {
			return nil, fmt.Errorf("evaluating filter on case %s: %w", tc.ID, err)
		}
		if ok {
			out = append(out, tc)
		}
	}
	return out, nil
}

func caseTable(cases []sdk.TriageCase, now time.Time) pterm.TableData {
	table := pterm.TableData{{"ID", "PATIENT", "AGE", "URGENCY", "STATUS", "CREATED", "SUMMARY"}}
	for _, tc := range cases {
		age := "-"
		if years, ok := tc.Age(now); ok {
			age = strconv.Itoa(years)
		}
		created := "-"
		if !tc.DateCreated.IsZero() {
			created = tc.DateCreated.Local().Format("2006-01-02 15:04")
		}
		table = append(table, []string{
			tc.ID.String(),
			orDash(tc.PatientName()),
			age,
			urgencyLabel(tc),
			string(tc.Status),
			created,
			preview(tc.EffectiveSummary(), summaryPreviewLimit),
		})
	}
	return table
}

func urgencyLabel(tc sdk.TriageCase) string {
	u := tc.EffectiveUrgency()
	if u == "" {
		return "-"
	}
	if tc.OverrideUrgency != "" {
		return u.Label() + "*"
	}
	return u.Label()
}

func preview(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return orDash(s)
	}
	return string(runes[:limit]) + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func printCase(tc sdk.TriageCase, now time.Time) error {
	pterm.DefaultSection.Printf("Case %s\n", tc.ID)

	age := "-"
	if years, ok := tc.Age(now); ok {
		age = strconv.Itoa(years)
	}
	rows := pterm.TableData{
		{"Patient", orDash(tc.PatientName())},
		{"Patient ID", tc.PatientID.String()},
		{"DOB", orDash(tc.DOB)},
		{"Age", age},
		{"Contact", orDash(tc.ContactInfo)},
		{"Insurance", orDash(tc.InsuranceInfo)},
		{"Returning", strconv.FormatBool(tc.ReturningPatient)},
		{"Language", orDash(tc.LanguagePreference)},
		{"Urgency", urgencyLabel(tc)},
		{"AI urgency", orDash(tc.AIUrgency.Label())},
		{"Status", string(tc.Status)},
	}
	if tc.AIConfidence != nil {
		rows = append(rows, []string{"AI confidence", fmt.Sprintf("%.0f%%", *tc.AIConfidence*100)})
	}
	if !tc.DateCreated.IsZero() {
		rows = append(rows, []string{"Created", tc.DateCreated.Local().Format(time.RFC1123)})
	}
	if tc.IsResolved() {
		rows = append(rows, []string{"Resolution", orDash(tc.ResolutionReason)})
		rows = append(rows, []string{"Resolved by", orDash(tc.ResolvedByEmail)})
		if tc.ResolutionTimestamp != nil && !tc.ResolutionTimestamp.IsZero() {
			rows = append(rows, []string{"Resolved at", tc.ResolutionTimestamp.Local().Format(time.RFC1123)})
		}
	}
	if err := pterm.DefaultTable.WithData(rows).Render(); err != nil {
		return err
	}

	if summary := tc.EffectiveSummary(); summary != "" {
		pterm.DefaultSection.WithLevel(2).Println("Summary")
		pterm.Println(summary)
	}
	if tc.ClinicianSummary != "" {
		pterm.DefaultSection.WithLevel(2).Println("Clinician notes")
		pterm.Println(tc.ClinicianSummary)
	}
	if tc.Transcript != "" {
		pterm.DefaultSection.WithLevel(2).Println("Transcript")
		pterm.Println(tc.Transcript)
	}
	return nil
}
