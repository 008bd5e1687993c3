package scoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/taru-edu/taru/internal/assessment"
)

// Shape names a known result payload layout.
type Shape int

const (
	// ShapeCanonical is {"result": {...}}.
	ShapeCanonical Shape = iota
	// ShapeCached is {"cached": true, "result": {...}}.
	ShapeCached
	// ShapeProvider is {"output": [{...}]} or a bare [{...}], as returned by
	// workflow engines.
	ShapeProvider
	// ShapeFlat is the raw result at the top level.
	ShapeFlat
)

func (s Shape) String() string {
	switch s {
	case ShapeCanonical:
		return "canonical"
	case ShapeCached:
		return "cached"
	case ShapeProvider:
		return "provider"
	case ShapeFlat:
		return "flat"
	}
	return "unknown"
}

// ErrUnrecognizedShape is returned for payloads carrying no result fields.
var ErrUnrecognizedShape = errors.New("unrecognized result payload")

// Payload is a decoded result response.
type Payload struct {
	Shape  Shape
	Cached bool
	Result assessment.Result
}

// Alias tables, in precedence order. Keys are compared after folding case
// and dropping spaces, underscores and hyphens.
var (
	scoreKeys          = []string{"score", "overallScore", "overall_score", "Overall Score", "percentage"}
	totalKeys          = []string{"totalQuestions", "total_questions", "Total Questions", "TotalQuestions", "questionCount", "total"}
	summaryKeys        = []string{"summary", "Summary", "feedback", "analysis"}
	classificationKeys = []string{"classification", "learningStyle", "learning_style", "Learning Style", "label", "profile"}
	recommendationKeys = []string{"recommendations", "Recommendations", "suggestions", "nextSteps"}
)

func foldKey(k string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-':
			return -1
		}
		return r
	}, strings.ToLower(k))
}

// fields is a raw result object indexed by folded key.
type fields map[string]json.RawMessage

func newFields(obj map[string]json.RawMessage) fields {
	f := make(fields, len(obj))
	for k, v := range obj {
		fk := foldKey(k)
		if _, dup := f[fk]; !dup {
			f[fk] = v
		}
	}
	return f
}

func (f fields) lookup(aliases []string) (json.RawMessage, bool) {
	for _, a := range aliases {
		if v, ok := f[foldKey(a)]; ok && !isNull(v) {
			return v, true
		}
	}
	return nil, false
}

func isNull(v json.RawMessage) bool {
	return len(bytes.TrimSpace(v)) == 0 || bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// Normalize decodes any known result payload into a canonical Result.
func Normalize(raw []byte) (Payload, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Payload{}, fmt.Errorf("%w: empty body", ErrUnrecognizedShape)
	}

	if raw[0] == '[' {
		res, err := firstOutput(raw)
		return Payload{Shape: ShapeProvider, Result: res}, err
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return Payload{}, fmt.Errorf("decode result payload: %w", err)
	}
	f := newFields(top)

	if out, ok := f["output"]; ok {
		res, err := firstOutput(out)
		return Payload{Shape: ShapeProvider, Result: res}, err
	}

	if inner, ok := f["result"]; ok && !isNull(inner) {
		var cached bool
		if c, ok := f["cached"]; ok {
			_ = json.Unmarshal(c, &cached)
		}
		res, err := decodeResult(inner)
		shape := ShapeCanonical
		if cached {
			shape = ShapeCached
		}
		return Payload{Shape: shape, Cached: cached, Result: res}, err
	}

	res, err := resultFromFields(f)
	return Payload{Shape: ShapeFlat, Result: res}, err
}

// firstOutput decodes the first element of a provider output array. The
// element may itself be a JSON string or wrap a "result" object.
func firstOutput(raw json.RawMessage) (assessment.Result, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return assessment.Result{}, fmt.Errorf("decode provider output: %w", err)
	}
	if len(items) == 0 {
		return assessment.Result{}, fmt.Errorf("%w: empty output", ErrUnrecognizedShape)
	}

	item := items[0]
	var s string
	if json.Unmarshal(item, &s) == nil {
		item = json.RawMessage(s)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(item, &obj); err != nil {
		return assessment.Result{}, fmt.Errorf("decode provider output item: %w", err)
	}
	f := newFields(obj)
	if inner, ok := f["result"]; ok && !isNull(inner) {
		return decodeResult(inner)
	}
	return resultFromFields(f)
}

func decodeResult(raw json.RawMessage) (assessment.Result, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return assessment.Result{}, fmt.Errorf("decode result: %w", err)
	}
	return resultFromFields(newFields(obj))
}

func resultFromFields(f fields) (assessment.Result, error) {
	var res assessment.Result
	found := false

	if v, ok := f.lookup(scoreKeys); ok {
		if n, ok := asInt(v); ok {
			res.Score = assessment.ClampScore(n)
			found = true
		}
	}
	if v, ok := f.lookup(totalKeys); ok {
		if n, ok := asInt(v); ok && n >= 0 {
			res.TotalQuestions = n
			found = true
		}
	}
	if v, ok := f.lookup(summaryKeys); ok {
		if s, ok := asString(v); ok {
			res.Summary = s
			found = true
		}
	}
	if v, ok := f.lookup(classificationKeys); ok {
		if s, ok := asString(v); ok {
			res.Classification = s
		}
	}
	if v, ok := f.lookup(recommendationKeys); ok {
		res.Recommendations = asStrings(v)
	}

	if !found {
		return res, ErrUnrecognizedShape
	}
	return res, nil
}

// asInt accepts 72, 72.4, "72" and "72%". Values that are not finite or
// do not fit in an int32 are rejected.
func asInt(v json.RawMessage) (int, bool) {
	var f float64
	if json.Unmarshal(v, &f) != nil {
		var s string
		if json.Unmarshal(v, &s) != nil {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	}
	f = math.Round(f)
	if math.IsNaN(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}

func asString(v json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// asStrings accepts an array of strings or a single newline separated string.
func asStrings(v json.RawMessage) []string {
	var list []string
	if json.Unmarshal(v, &list) != nil {
		s, ok := asString(v)
		if !ok {
			return nil
		}
		list = strings.Split(s, "\n")
	}

	out := list[:0]
	for _, item := range list {
		item = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(item), "-*"))
		if item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
