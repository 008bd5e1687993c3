package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taru-edu/taru/internal/auth"
	"github.com/taru-edu/taru/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the assessment API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}
		if err := cfg.ValidateServer(); err != nil {
			return err
		}
		logger := newLogger(cfg, stderr)

		ctx := cmd.Context()
		b, err := openBackend(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer b.Close()

		issuer, err := auth.NewIssuer(cfg.Server.JWTSecret, cfg.Server.TokenTTL)
		if err != nil {
			return fmt.Errorf("create token issuer: %w", err)
		}

		srv := server.New(b.questions, b.gen, issuer, server.Config{
			Addr:            cfg.Server.Addr,
			CORSOrigin:      cfg.Server.CORSOrigin,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
		}, logger)
		logger.Info("serving", "addr", cfg.Server.Addr, "store", cfg.Store.Driver, "llm", cfg.LLM.Provider)
		return srv.ListenAndServe(ctx)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides TARU_ADDR)")
}
