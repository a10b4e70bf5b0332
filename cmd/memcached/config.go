package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/pior/memcached/config"
)

// flagSetters copies a flag value onto the loaded configuration.
var flagSetters = map[string]func(dst, src *config.Config){
	"addr":           func(dst, src *config.Config) { dst.Addr = src.Addr },
	"max-frame-size": func(dst, src *config.Config) { dst.MaxFrameSize = src.MaxFrameSize },
	"read-timeout":   func(dst, src *config.Config) { dst.ReadTimeout = src.ReadTimeout },
	"write-timeout":  func(dst, src *config.Config) { dst.WriteTimeout = src.WriteTimeout },
	"close-on-error": func(dst, src *config.Config) { dst.CloseOnError = src.CloseOnError },
	"capacity":       func(dst, src *config.Config) { dst.Capacity = src.Capacity },
	"max-ttl":        func(dst, src *config.Config) { dst.MaxTTL = src.MaxTTL },
	"purge-interval": func(dst, src *config.Config) { dst.PurgeInterval = src.PurgeInterval },
	"max-key-length": func(dst, src *config.Config) { dst.MaxKeyLength = src.MaxKeyLength },
	"cas-tokens":     func(dst, src *config.Config) { dst.CASTokens = src.CASTokens },
	"metrics-addr":   func(dst, src *config.Config) { dst.MetricsAddr = src.MetricsAddr },
	"log-level":      func(dst, src *config.Config) { dst.LogLevel = src.LogLevel },
	"log-format":     func(dst, src *config.Config) { dst.LogFormat = src.LogFormat },
}

// bindFlags registers one flag per setting, writing into cfg.
func bindFlags(f *pflag.FlagSet, cfg *config.Config) {
	f.StringVar(&cfg.Addr, "addr", cfg.Addr, "TCP listen address")
	f.IntVar(&cfg.MaxFrameSize, "max-frame-size", cfg.MaxFrameSize, "Largest accepted frame in bytes")
	f.DurationVar(&cfg.ReadTimeout, "read-timeout", cfg.ReadTimeout, "Idle timeout waiting for a frame (0 disables)")
	f.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "Timeout writing a reply (0 disables)")
	f.BoolVar(&cfg.CloseOnError, "close-on-error", cfg.CloseOnError, "Disconnect clients sending unknown or malformed commands")
	f.IntVar(&cfg.Capacity, "capacity", cfg.Capacity, "Maximum number of cached entries")
	f.DurationVar(&cfg.MaxTTL, "max-ttl", cfg.MaxTTL, "Longest entry lifetime, also used for exptime 0")
	f.DurationVar(&cfg.PurgeInterval, "purge-interval", cfg.PurgeInterval, "Interval between expired entry sweeps")
	f.IntVar(&cfg.MaxKeyLength, "max-key-length", cfg.MaxKeyLength, "Longest accepted key in bytes")
	f.StringVar(&cfg.CASTokens, "cas-tokens", cfg.CASTokens, "CAS token generator: counter or uuid")
	f.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus /metrics listen address (empty disables)")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	f.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text or json")
}

// loadConfig layers defaults, the optional file, MEMCACHED_* variables and
// the flags set on the command line, then validates the result.
func loadConfig(path string, flags *pflag.FlagSet, flagCfg *config.Config) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if err := config.ApplyEnv(cfg); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	flags.Visit(func(f *pflag.Flag) {
		if set, ok := flagSetters[f.Name]; ok {
			set(cfg, flagCfg)
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func configCmd() *cobra.Command {
	var (
		configPath string
		flagCfg    = config.Default()
	)

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long:  "Print the configuration resolved from defaults, file, environment and flags, as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, cmd.Flags(), flagCfg)
			if err != nil {
				return err
			}

			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	bindFlags(cmd.Flags(), flagCfg)

	return cmd
}
