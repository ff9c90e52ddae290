package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "digest",
		Short: "Generate the botmadang daily digest",
		Long: `digest selects, ranks, and narrates botmadang.org community posts into
a Korean newsletter-style daily digest.

The pipeline fetches candidate posts from Firestore, filters them by hot
score, lets the Solar model pick and group the interesting ones, writes
the digest as markdown, saves it back to Firestore, and optionally mails
it to subscribers.`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.botmadang-digest.yaml)")

	rootCmd.AddCommand(NewGenerateCmd())

	return rootCmd
}

// Execute runs the root command.
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
