package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/teemow/mailcal/internal/google"
)

func newScopesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scopes",
		Short: "Print the OAuth scopes each capability requests",
		Long: `Print the Google OAuth scopes mailcal requests for each capability.

Gmail capabilities share one baseline scope set, so a grant for either of
them satisfies both.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printScopes(cmd.OutOrStdout(), google.NewScopeCatalog())
		},
	}
}

func printScopes(w io.Writer, catalog *google.ScopeCatalog) {
	cyan := color.New(color.FgCyan).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	for _, c := range google.AllCapabilities() {
		scopes := catalog.ScopesFor(c).Sorted()
		fmt.Fprintf(w, "%s %s\n", cyan(string(c)), yellow(fmt.Sprintf("(%d scopes)", len(scopes))))
		for _, s := range scopes {
			fmt.Fprintf(w, "  %s\n", green(s))
		}
	}

	aliases := make([]string, 0, 2)
	for _, alias := range []string{"gmail", "calendar"} {
		caps, err := google.ParseCapabilities(alias)
		if err != nil || len(caps) == 0 {
			continue
		}
		aliases = append(aliases, fmt.Sprintf("%s=%s", alias, caps[0]))
	}
	if len(aliases) > 0 {
		fmt.Fprintf(w, "\nAliases: %s\n", strings.Join(aliases, ", "))
	}
}
