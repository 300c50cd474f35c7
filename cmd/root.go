package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the mailcal application
var rootCmd = &cobra.Command{
	Use:   "mailcal",
	Short: "Gmail and Google Calendar behind a server-side OAuth session",
	Long: `mailcal connects a browser session to a Google account and serves Gmail
and Google Calendar data to a web dashboard and to MCP clients.

Google tokens never leave the server: the browser holds an opaque session
cookie, and every request is checked against the scopes the user granted.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mailcal version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newScopesCmd())
	rootCmd.AddCommand(newAuthURLCmd())
	rootCmd.AddCommand(newDocsCmd())
	rootCmd.AddCommand(newVersionCmd())
}
