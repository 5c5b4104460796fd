// Package dataset generates synthetic project tables and lookup-update
// training examples from them.
package dataset

import (
	"fmt"
	"math/rand/v2"

	"github.com/witanlabs/gridcmd/sheet"
)

// DefaultKeyHeader is the column that identifies a row in synthetic tables.
const DefaultKeyHeader = "Project Name"

// Headers of a synthetic project table.
var Headers = []string{
	DefaultKeyHeader, "Status", "Unit", "Location", "Priority", "Budget", "Start Date", "Notes",
}

var (
	statuses   = []string{"Planning", "In Progress", "Completed", "On Hold", "Awaiting Approval", "Cancelled", "Under Review", "Closing"}
	units      = []string{"Infrastructure", "Cyber", "Logistics", "Multimedia", "Procurement", "Training", "Operations", "Research"}
	locations  = []string{"North Base", "South Base", "Central Campus", "Harbor Site", "Airfield", "Data Center 2", "Training Grounds", "HQ"}
	priorities = []string{"Critical", "High", "Medium", "Low", "Routine"}
	notes      = []string{"Awaiting budget", "Pending vendor approval", "Testing phase", "Behind schedule", "Over budget", "Good progress", "Partially completed", "Frozen"}

	nameBases      = []string{"Network Upgrade", "Data Center Build", "Cyber Hardening", "ERP Rollout", "Control Room", "Satellite Link", "Backup Power", "Video Conferencing", "Fiber Deployment", "Identity Management"}
	nameVariations = []string{"Phase 1", "Phase 2", "North", "South", "Pilot", "Extended", "Urgent", "Strategic", "Regional", "Secure"}
)

func pick(rng *rand.Rand, xs []string) string {
	return xs[rng.IntN(len(xs))]
}

// randomDate returns a dd/mm/yyyy date in [fromYear, toYear].
func randomDate(rng *rand.Rand, fromYear, toYear int) string {
	return fmt.Sprintf("%02d/%02d/%d", 1+rng.IntN(28), 1+rng.IntN(12), fromYear+rng.IntN(toYear-fromYear+1))
}

// projectNames returns n distinct project names.
func projectNames(rng *rand.Rand, n int) []string {
	used := make(map[string]bool, n)
	out := make([]string, 0, n)
	for len(out) < n {
		name := pick(rng, nameBases) + " " + pick(rng, nameVariations)
		if rng.Float64() < 0.4 {
			name += " - " + pick(rng, locations)
		}
		if used[name] {
			name = fmt.Sprintf("%s #%d", name, len(out)+1)
		}
		if used[name] {
			continue
		}
		used[name] = true
		out = append(out, name)
	}
	return out
}

// SynthTable builds a header row plus rows of synthetic project data. Project
// names are unique so every row can be addressed by lookup.
func SynthTable(rng *rand.Rand, rows int) *sheet.Store {
	store := sheet.New()
	header := make([]sheet.Value, len(Headers))
	for i, h := range Headers {
		header[i] = sheet.Text(h)
	}
	_ = store.WriteRow(1, header)

	for i, name := range projectNames(rng, rows) {
		_ = store.WriteRow(i+2, []sheet.Value{
			sheet.Text(name),
			sheet.Text(pick(rng, statuses)),
			sheet.Text(pick(rng, units)),
			sheet.Text(pick(rng, locations)),
			sheet.Text(pick(rng, priorities)),
			sheet.Number(float64(1000 * (10 + rng.IntN(490)))),
			sheet.Text(randomDate(rng, 2020, 2024)),
			sheet.Text(pick(rng, notes)),
		})
	}
	return store
}
