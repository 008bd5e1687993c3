package assessment

import "strings"

// AnswerKind tells the UI how a question is answered.
type AnswerKind string

const (
	KindSingleSelect AnswerKind = "single_select"
	KindMultiSelect  AnswerKind = "multi_select"
)

// multiKinds are raw tags that mean "pick any number of options".
var multiKinds = map[string]bool{
	"multi_select":    true,
	"multi-select":    true,
	"multiselect":     true,
	"multiple":        true,
	"multiple_select": true,
	"checkbox":        true,
	"checkboxes":      true,
}

// NormalizeKind maps a raw answer-kind tag from the store or the generator to
// one of the two kinds Taru renders. Open-ended and unrecognized tags become
// single-select.
func NormalizeKind(raw string) AnswerKind {
	k := strings.ToLower(strings.TrimSpace(raw))
	if multiKinds[k] {
		return KindMultiSelect
	}
	return KindSingleSelect
}

// JoinAnswer renders a selection as the answer string sent to the store.
// Multi-select answers are comma-joined.
func JoinAnswer(selection []string) string {
	parts := make([]string, 0, len(selection))
	for _, s := range selection {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// SplitAnswer is the inverse of JoinAnswer for pre-filling a selection.
// The skip sentinel splits to an empty selection.
func SplitAnswer(answer string, kind AnswerKind) []string {
	if answer == "" || answer == SkipAnswer {
		return []string{}
	}
	if kind != KindMultiSelect {
		return []string{answer}
	}
	var out []string
	for _, p := range strings.Split(answer, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
