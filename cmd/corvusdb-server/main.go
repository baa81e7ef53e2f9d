package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set via -ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "corvusdb-server",
	Short: "corvusdb-server is the in-memory document store's wire server",
	Long: `corvusdb-server hosts the document store, its indexes, the
transaction manager, and the length-framed TCP wire server in a single
process, recovering from the write-ahead log and the latest checkpoint
on startup before accepting connections.`,
	Version: fmt.Sprintf("%s (%s)", Version, Commit),
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(recoverOnlyCmd)
}
