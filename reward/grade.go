package reward

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/montanaflynn/stats"

	"github.com/witanlabs/gridcmd/command"
	"github.com/witanlabs/gridcmd/sheet"
)

// Scenario is one graded prompt: the completion a model produced and the
// command it was expected to contain.
type Scenario struct {
	Prompt     string `json:"prompt"`
	Completion string `json:"completion"`
	// ExpectedFunction defaults to excel_update_cell_by_lookup.
	ExpectedFunction string                     `json:"expected_function,omitempty"`
	ExpectedParams   map[string]json.RawMessage `json:"expected_params"`
}

// Grading is the per-scenario verdict.
type Grading struct {
	Prompt          string `json:"prompt"`
	JSONExtracted   bool   `json:"json_extracted"`
	CorrectFunction bool   `json:"correct_function"`
	CorrectParams   bool   `json:"correct_params"`
	Report          Report `json:"report"`
}

// Metrics aggregates gradings. Rates are fractions of Total.
type Metrics struct {
	Total              int     `json:"total_tests"`
	JSONExtractionRate float64 `json:"json_extraction_rate"`
	FunctionAccuracy   float64 `json:"function_accuracy"`
	ParameterAccuracy  float64 `json:"parameter_accuracy"`
	SuccessRate        float64 `json:"excel_success_rate"`
	MeanReward         float64 `json:"mean_reward"`
}

// ExtractCommand parses the text between the first '{' and the last '}' of a
// completion as a command.
func ExtractCommand(text string) (command.Command, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return command.Command{}, sheet.Errorf(sheet.KindValidation, "no JSON object found in completion")
	}
	return command.Parse([]byte(text[start : end+1]))
}

// Grade extracts the command from sc.Completion, compares it with the
// expectation and executes it against a clone of store.
func Grade(store *sheet.Store, sc Scenario) Grading {
	g := Grading{Prompt: sc.Prompt}
	cmd, err := ExtractCommand(sc.Completion)
	if err != nil {
		g.Report = Evaluate(command.Outcome{Failure: command.FailureOf(err)})
		return g
	}
	g.JSONExtracted = true

	want := sc.ExpectedFunction
	if want == "" {
		want = string(command.UpdateCellByLookup)
	}
	g.CorrectFunction = cmd.FunctionName == want
	g.CorrectParams = paramsMatch(sc.ExpectedParams, cmd.Parameters)

	d := command.NewDispatcher(store.Clone())
	g.Report = Evaluate(d.Execute(cmd))
	return g
}

// paramsMatch reports whether every expected parameter is present with the
// same display string. Extra parameters are allowed.
func paramsMatch(want, got map[string]json.RawMessage) bool {
	for k, w := range want {
		g, ok := got[k]
		if !ok || displayString(g) != displayString(w) {
			return false
		}
	}
	return true
}

// displayString renders a JSON scalar the way it reads: strings unquoted,
// numbers as written.
func displayString(raw json.RawMessage) string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return string(raw)
	}
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// Summarize computes aggregate metrics. An empty slice yields zero metrics.
func Summarize(gs []Grading) Metrics {
	m := Metrics{Total: len(gs)}
	if m.Total == 0 {
		return m
	}
	var extracted, function, params, success int
	rewards := make(stats.Float64Data, 0, len(gs))
	for _, g := range gs {
		if g.JSONExtracted {
			extracted++
		}
		if g.CorrectFunction {
			function++
		}
		if g.CorrectParams {
			params++
		}
		if g.Report.OK() {
			success++
		}
		rewards = append(rewards, float64(g.Report.Reward))
	}
	total := float64(m.Total)
	m.JSONExtractionRate = float64(extracted) / total
	m.FunctionAccuracy = float64(function) / total
	m.ParameterAccuracy = float64(params) / total
	m.SuccessRate = float64(success) / total
	m.MeanReward, _ = stats.Mean(rewards)
	return m
}
