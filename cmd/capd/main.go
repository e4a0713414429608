// Package main provides the entry point for the CAP backend: the HTTP
// API aggregating job listings and archiving administrative documents
// for the mobile client.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "capd",
	Short: "CAP backend server",
	Long: "capd serves the mobile application's backend: CV analysis and job search\n" +
		"through Adzuna and France Travail, plus classification and archival of\n" +
		"administrative documents.",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
