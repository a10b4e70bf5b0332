package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pior/memcached/client"
)

func main() {
	var (
		scenario    string
		duration    time.Duration
		concurrency int
		servers     []string
		poolSize    int32
	)

	rootCmd := &cobra.Command{
		Use:   "memcache-bench",
		Short: "Load generator for memcached text protocol servers",
		Long:  "Run benchmark scenarios against one or more servers and report throughput and correctness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient(client.NewStaticServers(servers...), client.Config{MaxSize: poolSize})
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			_, err = c.Get(ctx, "bench-connection-check")
			cancel()
			if err != nil && !errors.Is(err, client.ErrCacheMiss) {
				return fmt.Errorf("servers %v unreachable: %w", servers, err)
			}

			out := cmd.OutOrStdout()
			names := []string{scenario}
			if scenario == "all" {
				names = scenarioNames
			}

			for _, name := range names {
				s, ok := scenarios[name]
				if !ok {
					return fmt.Errorf("unknown scenario %q", name)
				}
				fmt.Fprintf(out, "--- %s ---\n", name)
				result := run(cmd.Context(), c, name, s, duration, concurrency)
				result.print(out)
			}

			return nil
		},
	}

	f := rootCmd.Flags()
	f.StringVar(&scenario, "scenario", "all", "Scenario: cache-hit, dynamic-value, cache-miss, append, cas-contention or all")
	f.DurationVar(&duration, "duration", 5*time.Second, "Duration of each scenario")
	f.IntVar(&concurrency, "concurrency", 4, "Number of concurrent workers")
	f.StringSliceVar(&servers, "servers", []string{"127.0.0.1:11211"}, "Server addresses")
	f.Int32Var(&poolSize, "pool-size", 16, "Connections per server")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
