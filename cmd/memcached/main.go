package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "memcached",
		Short: "In-memory key-value cache server",
		Long:  "Serve the memcached text protocol from an in-memory LRU cache",
	}

	rootCmd.AddCommand(serveCmd(), configCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
