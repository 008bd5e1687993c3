package session

import "github.com/taru-edu/taru/internal/assessment"

// answerCache mirrors the responses submitted in this controller. Entries
// are only appended; a question answered twice has two entries.
type answerCache struct {
	entries []assessment.Response
}

func (c *answerCache) add(r assessment.Response) {
	c.entries = append(c.entries, r)
}

// latest returns the most recent entry for questionID.
func (c *answerCache) latest(questionID string) (assessment.Response, bool) {
	for i := len(c.entries) - 1; i >= 0; i-- {
		if c.entries[i].QuestionID == questionID {
			return c.entries[i], true
		}
	}
	return assessment.Response{}, false
}

// prefill returns the selection to show for q. Skipped questions come back
// empty.
func (c *answerCache) prefill(q assessment.Question) []string {
	r, ok := c.latest(q.ID)
	if !ok || r.Skipped() {
		return []string{}
	}
	return assessment.SplitAnswer(r.StudentAnswer, q.Kind)
}

// payload holds one response per question: the latest answer, in the order
// questions were first answered.
func (c *answerCache) payload() []assessment.Response {
	index := make(map[string]int, len(c.entries))
	var out []assessment.Response
	for _, r := range c.entries {
		if i, ok := index[r.QuestionID]; ok {
			out[i] = r
			continue
		}
		index[r.QuestionID] = len(out)
		out = append(out, r)
	}
	return out
}

func (c *answerCache) len() int {
	return len(c.entries)
}

func (c *answerCache) clear() {
	c.entries = nil
}
