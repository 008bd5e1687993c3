package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taru-edu/taru/internal/auth"
)

func isolate(t *testing.T) string {
	t.Helper()
	for _, k := range []string{"TARU_CONFIG", "TARU_STORE_DRIVER", "TARU_REDIS_ADDR", "TARU_SCORING_URL", "TARU_API_URL"} {
		t.Setenv(k, "")
	}
	t.Setenv("TARU_LLM_PROVIDER", "mock")
	t.Setenv("TARU_JWT_SECRET", "cmd-test-secret")
	return t.TempDir()
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "none.env")))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestTokenCommand(t *testing.T) {
	isolate(t)

	out, err := run(t, "token", "--user", "learner-3")
	require.NoError(t, err)

	issuer, err := auth.NewIssuer("cmd-test-secret", time.Hour)
	require.NoError(t, err)
	claims, err := issuer.Validate(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "learner-3", claims.UserID())
}

func TestResetOffline(t *testing.T) {
	dir := isolate(t)

	out, err := run(t, "reset", "--offline", "--type", "interest", "--db", filepath.Join(dir, "taru.db"))
	require.NoError(t, err)
	assert.Equal(t, "Reset Interest Assessment\n", out)

	_, err = run(t, "reset", "--offline", "--type", "history", "--db", filepath.Join(dir, "taru.db"))
	assert.ErrorContains(t, err, "unknown assessment type")
}

func TestLLMListEmpty(t *testing.T) {
	dir := isolate(t)

	out, err := run(t, "llm", "list", "--db", filepath.Join(dir, "taru.db"))
	require.NoError(t, err)
	assert.Contains(t, out, "No LLM events found.")
}
