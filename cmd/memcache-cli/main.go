package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pior/memcached/client"
)

type options struct {
	servers []string
	timeout time.Duration
}

func main() {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "memcache-cli",
		Short: "Interactive memcached text protocol client",
		Long:  "Run an interactive shell against one or more servers, or send a single raw frame",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			defer c.Close()

			return repl(cmd.InOrStdin(), cmd.OutOrStdout(), c, opts.timeout)
		},
	}

	rootCmd.PersistentFlags().StringSliceVarP(&opts.servers, "servers", "s", []string{"127.0.0.1:11211"}, "Server addresses")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "Per command timeout")

	rootCmd.AddCommand(rawCmd(opts))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (o *options) newClient() (*client.Client, error) {
	return client.NewClient(client.NewStaticServers(o.servers...), client.Config{
		MaxSize:             4,
		HealthCheckInterval: time.Minute,
		MaxConnIdleTime:     5 * time.Minute,
		NewCircuitBreaker:   client.NewCircuitBreakerConfig(1, time.Minute, 10*time.Second),
	})
}
