package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taru-edu/taru/internal/assessment"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard a learner's assessment progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		var f takeFlags
		f.offline, _ = cmd.Flags().GetBool("offline")
		f.user, _ = cmd.Flags().GetString("user")

		types := assessment.Types
		if raw, _ := cmd.Flags().GetString("type"); raw != "" {
			typ, err := assessment.ParseType(raw)
			if err != nil {
				return err
			}
			types = []assessment.Type{typ}
		}

		st, _, closeFn, err := takeStore(cmd, cfg, f)
		if err != nil {
			return err
		}
		defer closeFn()

		for _, typ := range types {
			if err := st.Reset(cmd.Context(), typ); err != nil {
				return fmt.Errorf("reset %s: %w", typ, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reset %s\n", typ.Title())
		}
		return nil
	},
}

func init() {
	resetCmd.Flags().StringP("type", "t", "", "Only reset this assessment")
	resetCmd.Flags().Bool("offline", false, "Reset in the local database instead of through the API server")
	resetCmd.Flags().StringP("user", "u", "local", "Learner ID for --offline")
}
