package core

import (
	"sort"
	"strings"
)

// DefaultAtRiskSize is the default length of the at-risk ranking.
const DefaultAtRiskSize = 5

// YearReport aggregates collection progress over a snapshot of one year's
// contributions. It is a pure read model; nothing here mutates the ledger.
type YearReport struct {
	Year             int
	Members          int
	TotalExpected    Money
	TotalCollected   Money
	TotalRemaining   Money
	PercentCollected int
	AtRisk           []Contribution
}

// BuildYearReport computes collection totals and the at-risk ranking from a
// snapshot of contributions.
func BuildYearReport(year int, snapshot []Contribution) YearReport {
	var expected, collected int64
	for _, c := range snapshot {
		expected += c.Amount.Ariary
		collected += c.TotalPaid.Ariary
	}

	percent := 0
	if expected > 0 {
		// Half-up rounding of 100*collected/expected.
		percent = int((collected*100 + expected/2) / expected)
	}

	return YearReport{
		Year:             year,
		Members:          len(snapshot),
		TotalExpected:    Money{Ariary: expected},
		TotalCollected:   Money{Ariary: collected},
		TotalRemaining:   Money{Ariary: expected - collected},
		PercentCollected: percent,
		AtRisk:           AtRisk(snapshot, DefaultAtRiskSize),
	}
}

// AtRisk returns the n contributions with the largest outstanding balance,
// descending. Contributions with nothing remaining are excluded. The sort is
// stable so ties keep snapshot order.
func AtRisk(snapshot []Contribution, n int) []Contribution {
	if n <= 0 {
		n = DefaultAtRiskSize
	}

	ranked := make([]Contribution, 0, len(snapshot))
	for _, c := range snapshot {
		if c.Remaining.Ariary > 0 {
			ranked = append(ranked, c)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Remaining.Ariary > ranked[j].Remaining.Ariary
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// FilterContributions returns the contributions whose member name or member
// id contains the query, case-insensitively. An empty query returns the
// snapshot unchanged. Filtering is display-side only and never alters
// stored totals.
func FilterContributions(snapshot []Contribution, query string) []Contribution {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return snapshot
	}

	out := make([]Contribution, 0, len(snapshot))
	for _, c := range snapshot {
		if strings.Contains(strings.ToLower(c.MemberName), query) ||
			strings.Contains(strings.ToLower(c.MemberID.String()), query) {
			out = append(out, c)
		}
	}
	return out
}
