package questiongen

import (
	"context"
	"fmt"

	"github.com/taru-edu/taru/internal/assessment"
)

// StaticGenerator serves built-in question banks. It keeps Taru usable
// without an LLM, e.g. for demos and offline development.
type StaticGenerator struct{}

func (StaticGenerator) Generate(_ context.Context, input GenerateInput) ([]assessment.Question, error) {
	bank, ok := banks[input.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", assessment.ErrUnknownType, input.Type)
	}

	n := len(bank)
	if input.Count > 0 && input.Count < n {
		n = input.Count
	}
	out := make([]assessment.Question, n)
	for i := range n {
		out[i] = bank[i]
		out[i].Options = append([]string(nil), bank[i].Options...)
	}
	return out, nil
}

func single(category, difficulty, text string, options ...string) assessment.Question {
	return assessment.Question{Text: text, Kind: assessment.KindSingleSelect, Options: options, Category: category, Difficulty: difficulty}
}

func multi(category, difficulty, text string, options ...string) assessment.Question {
	return assessment.Question{Text: text, Kind: assessment.KindMultiSelect, Options: options, Category: category, Difficulty: difficulty}
}

var banks = map[assessment.Type][]assessment.Question{
	assessment.TypeDiagnostic: {
		single("numeracy", "easy", "What is 15% of 200?", "15", "30", "45", "300"),
		single("reasoning", "easy", "Which number comes next: 2, 4, 8, 16, ...?", "18", "24", "32", "64"),
		single("language", "easy", "Choose the word closest in meaning to \"rapid\".", "Slow", "Quick", "Quiet", "Heavy"),
		single("numeracy", "medium", "A train travels 180 km in 3 hours. What is its average speed?", "50 km/h", "60 km/h", "90 km/h", "540 km/h"),
		single("reasoning", "medium", "All roses are flowers. Some flowers fade quickly. Which statement must be true?", "All roses fade quickly", "Some roses are flowers", "No roses fade quickly", "Every flower is a rose"),
		single("problem solving", "medium", "You have 3 boxes with 4 pencils each and give away 5 pencils. How many are left?", "5", "7", "9", "12"),
		single("language", "medium", "Which sentence is punctuated correctly?", "Its raining today.", "It's raining today.", "Its' raining today.", "It raining today."),
		single("numeracy", "hard", "If 3x + 5 = 20, what is x?", "3", "5", "7", "15"),
		single("reasoning", "hard", "Which shape does not belong: square, rectangle, triangle, rhombus?", "Square", "Rectangle", "Triangle", "Rhombus"),
		single("problem solving", "hard", "A task takes 2 people 6 hours. How long does it take 3 people working at the same rate?", "3 hours", "4 hours", "9 hours", "12 hours"),
	},
	assessment.TypeInterest: {
		multi("subjects", "easy", "Which school subjects do you enjoy?", "Mathematics", "Science", "Languages", "History", "Art", "Physical education"),
		multi("activities", "easy", "What do you like doing in your free time?", "Reading", "Drawing or painting", "Playing sports", "Building or fixing things", "Coding or gaming", "Volunteering"),
		single("work style", "easy", "Would you rather work with...", "People", "Data and numbers", "Ideas and designs", "Tools and machines"),
		multi("careers", "medium", "Which career areas sound interesting to you?", "Healthcare", "Engineering", "Business", "Design", "Teaching", "Law"),
		single("environment", "medium", "Where would you most like to work?", "Office", "Outdoors", "Lab or workshop", "Studio", "Anywhere remote"),
		multi("topics", "medium", "Which topics would you read about for fun?", "Space", "Technology", "Nature", "Money", "Society", "Sports"),
		single("motivation", "medium", "What matters most to you in a future job?", "Helping others", "Earning well", "Being creative", "Solving hard problems", "Stability"),
		single("teamwork", "hard", "In a group project you usually...", "Lead the group", "Generate ideas", "Organise the tasks", "Do the detailed work"),
	},
	assessment.TypeLearningStyle: {
		single("input", "easy", "When learning something new you prefer to...", "Watch a video or diagram", "Listen to an explanation", "Read about it", "Try it yourself"),
		single("memory", "easy", "You remember a new phone number best by...", "Picturing the digits", "Saying it aloud", "Writing it down", "Dialling it"),
		single("study", "medium", "Before an exam you mostly...", "Draw mind maps", "Discuss with friends", "Rewrite notes", "Solve practice problems"),
		single("instructions", "medium", "Assembling new furniture, you...", "Follow the pictures", "Ask someone to talk you through", "Read the manual", "Start building and figure it out"),
		multi("tools", "medium", "Which tools help you learn?", "Flashcards", "Podcasts", "Textbooks", "Experiments", "Videos", "Group discussion"),
		single("focus", "hard", "In class you lose focus most when...", "There are no visuals", "It is too quiet", "There is nothing to read", "You sit still for long"),
	},
}
