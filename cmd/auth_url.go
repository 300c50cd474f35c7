package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/teemow/mailcal/internal/google"
)

func newAuthURLCmd() *cobra.Command {
	var (
		configFile   string
		capabilities string
		force        bool
	)

	cmd := &cobra.Command{
		Use:   "auth-url",
		Short: "Print a Google consent URL",
		Long: `Print the Google consent URL mailcal would redirect to for a set of
capabilities. Useful to check the client registration and the requested
scopes.

The state value is random and not stored, so the server will reject the
callback of this URL. Use /auth/start to connect a session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			caps, err := google.ParseCapabilities(capabilities)
			if err != nil {
				return err
			}
			if len(caps) == 0 {
				return fmt.Errorf("at least one capability is required")
			}

			cfg, err := loadConfig(cmd, viper.New(), configFile)
			if err != nil {
				return err
			}
			urls, err := google.NewAuthURLBuilder(cfg.AuthConfig(), google.NewScopeCatalog())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), urls.Build(caps, force, uuid.NewString()))
			return nil
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "Path to a YAML configuration file")
	cmd.Flags().StringVar(&capabilities, "capabilities", string(google.GmailRead), "Comma-separated capabilities (gmail.read, gmail.send, calendar.read, calendar.write)")
	cmd.Flags().BoolVar(&force, "force", false, "Ask Google to show the consent screen again")
	cmd.Flags().String("base-url", "", "Public base URL of this server. Can also use MAILCAL_BASE_URL env var.")

	return cmd
}
