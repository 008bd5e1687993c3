package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/taru-edu/taru/internal/app"
	"github.com/taru-edu/taru/internal/assessment"
	"github.com/taru-edu/taru/internal/client"
	"github.com/taru-edu/taru/internal/config"
	"github.com/taru-edu/taru/internal/session"
)

type takeFlags struct {
	typ           string
	fromPrecursor bool
	offline       bool
	user          string
	logFile       string
}

var takeCmd = &cobra.Command{
	Use:   "take",
	Short: "Take an assessment in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		var f takeFlags
		f.typ, _ = cmd.Flags().GetString("type")
		f.fromPrecursor, _ = cmd.Flags().GetBool("from-precursor")
		f.offline, _ = cmd.Flags().GetBool("offline")
		f.user, _ = cmd.Flags().GetString("user")
		f.logFile, _ = cmd.Flags().GetString("log-file")
		return runTake(cmd, f)
	},
}

func init() {
	takeCmd.Flags().StringP("type", "t", "", "Assessment to open: diagnostic, interest or learning-style")
	takeCmd.Flags().Bool("from-precursor", false, "Arriving straight from the precursor assessment")
	takeCmd.Flags().Bool("offline", false, "Use the local database instead of the API server")
	takeCmd.Flags().StringP("user", "u", "local", "Learner ID for --offline")
	takeCmd.Flags().String("log-file", "", "Append logs to this file")
}

// runTake opens the TUI over the API server, or over the local question
// store with --offline.
func runTake(cmd *cobra.Command, f takeFlags) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var typ assessment.Type
	if f.typ != "" {
		if typ, err = assessment.ParseType(f.typ); err != nil {
			return err
		}
	}

	// The TUI owns the terminal, so logs go to a file or nowhere.
	var logOut io.Writer
	if f.logFile != "" {
		lf, err := os.OpenFile(f.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer lf.Close()
		logOut = lf
	}
	logger := newLogger(cfg, logOut)

	st, login, closeFn, err := takeStore(cmd, cfg, f)
	if err != nil {
		return err
	}
	defer closeFn()

	return app.Run(app.Options{
		NewController: func(t assessment.Type, fromPrecursor bool) *session.Controller {
			return session.New(st, session.Options{
				Type:          t,
				FromPrecursor: fromPrecursor,
				Logger:        logger,
			})
		},
		Type:          typ,
		FromPrecursor: f.fromPrecursor,
		Login:         login,
		Context:       ctx,
		Logger:        logger,
	})
}

// takeStore returns the session store to drive and, for the HTTP client,
// the hook that swaps in a new token.
func takeStore(cmd *cobra.Command, cfg *config.Config, f takeFlags) (session.Store, func(string), func() error, error) {
	ctx := cmd.Context()
	if f.offline {
		b, err := openBackend(ctx, cfg, newLogger(cfg, nil))
		if err != nil {
			return nil, nil, nil, err
		}
		user := f.user
		if user == "" {
			user = "local"
		}
		return b.questions.ForUser(user), nil, b.Close, nil
	}

	cl := client.New(cfg.Client.BaseURL, client.Options{
		Token:   cfg.Client.Token,
		Timeout: cfg.Client.Timeout,
	})
	if err := cl.Health(ctx); err != nil {
		return nil, nil, nil, fmt.Errorf("reach %s: %w (use --offline to work without a server)", cfg.Client.BaseURL, err)
	}
	return cl, cl.SetToken, func() error { return nil }, nil
}
