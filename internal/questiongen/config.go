package questiongen

// Config controls the behavior of the LLMGenerator.
type Config struct {
	// Validators run in order on every generated set; the first failure
	// stops the pipeline.
	Validators []Validator

	MaxTokens   int
	Temperature float64

	// MaxAttempts bounds regeneration after a retryable validation error.
	MaxAttempts int

	// MaxPriorQuestions caps the prior texts included in the prompt.
	MaxPriorQuestions int
}

// DefaultCount is the set size used when none is configured.
const DefaultCount = 10

// DefaultConfig returns a Config with the standard validator chain.
func DefaultConfig() Config {
	return Config{
		Validators: []Validator{
			&CountValidator{},
			&StructuralValidator{},
			&DuplicateValidator{},
		},
		MaxTokens:         4096,
		Temperature:       0.7,
		MaxAttempts:       2,
		MaxPriorQuestions: 20,
	}
}
