/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "recipe",
	Short: "Recipe API backend",
	Long: `Recipe API backend: accounts, bearer tokens, tags, ingredients,
recipes and recipe images.

	recipe migrate up
	recipe createsuperuser --email admin@example.com --password secret
	recipe server
	recipe worker
`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
