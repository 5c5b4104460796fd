package dataset

import (
	"math"
	"math/rand/v2"
	"regexp"

	"github.com/witanlabs/gridcmd/sheet"
)

var dateRe = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)

// maxVocabulary is the largest number of distinct values a column may have
// and still be treated as a closed set of choices.
const maxVocabulary = 30

var textSuffixes = []string{"(revised)", "- updated", "(v2)", "- final", "(pending review)"}

// ValueGenerator proposes replacement values for a column.
type ValueGenerator struct {
	rng *rand.Rand
}

// NewValueGenerator returns a generator drawing from rng.
func NewValueGenerator(rng *rand.Rand) *ValueGenerator {
	return &ValueGenerator{rng: rng}
}

// Propose returns a plausible new value for a cell currently holding current,
// given the other values of its column. The result never equals current.
func (g *ValueGenerator) Propose(column []sheet.Value, current sheet.Value) sheet.Value {
	if n, ok := current.Float(); ok {
		return g.number(column, n)
	}
	if dateRe.MatchString(current.String()) {
		for {
			d := sheet.Text(randomDate(g.rng, 2020, 2026))
			if d != current {
				return d
			}
		}
	}
	if vocab := vocabulary(column); len(vocab) >= 2 && len(vocab) <= maxVocabulary {
		others := make([]sheet.Value, 0, len(vocab))
		for _, v := range vocab {
			if v != current {
				others = append(others, v)
			}
		}
		if len(others) > 0 {
			return others[g.rng.IntN(len(others))]
		}
	}
	if current.IsEmpty() {
		return sheet.Text("Pending")
	}
	return sheet.Text(current.String() + " " + pick(g.rng, textSuffixes))
}

// number draws from the numeric range of the column, rounded to whole
// numbers when every value in the column is whole.
func (g *ValueGenerator) number(column []sheet.Value, current float64) sheet.Value {
	lo, hi := current, current
	whole := current == math.Trunc(current)
	for _, v := range column {
		if n, ok := v.Float(); ok {
			lo, hi = min(lo, n), max(hi, n)
			whole = whole && n == math.Trunc(n)
		}
	}
	if hi-lo < 1 {
		lo, hi = 0, max(2*current, 100)
	}
	for {
		n := lo + g.rng.Float64()*(hi-lo)
		if whole {
			n = math.Round(n)
		}
		if n != current {
			return sheet.Number(n)
		}
	}
}

// vocabulary returns the distinct non-empty values of column in first-seen
// order, stopping once it exceeds maxVocabulary.
func vocabulary(column []sheet.Value) []sheet.Value {
	seen := make(map[sheet.Value]bool)
	var out []sheet.Value
	for _, v := range column {
		if v.IsEmpty() || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
		if len(out) > maxVocabulary {
			break
		}
	}
	return out
}
