package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// newConfigCmd creates the config command for inspecting the effective configuration
func newConfigCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(newConfigViewCmd(o))
	return cmd
}

// newConfigViewCmd prints the configuration after defaults, file, environment
// and flags have been merged. Secrets are masked.
func newConfigViewCmd(o *options) *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "view",
		Short: "Display merged configuration",
		Example: `  # Show the effective settings
  woverlay config view

  # Show them as YAML, ready to save as a config file
  woverlay --server ws://10.0.0.5:40001 config view -o yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := o.cfg.Redacted()
			out := cmd.OutOrStdout()

			switch strings.ToLower(outputFormat) {
			case "yaml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(cfg); err != nil {
					return fmt.Errorf("error encoding config: %w", err)
				}
				return enc.Close()
			case "text", "":
				fmt.Fprintf(out, "Server:\n")
				fmt.Fprintf(out, "    URL: %s\n", cfg.Server.URL)
				fmt.Fprintf(out, "    HandshakeTimeout: %s\n", cfg.Server.HandshakeTimeout)
				fmt.Fprintf(out, "    ReconnectInterval: %s\n", cfg.Server.ReconnectInterval)
				fmt.Fprintf(out, "Overlay:\n")
				fmt.Fprintf(out, "    Dwell: %s\n", cfg.Overlay.Dwell)
				fmt.Fprintf(out, "Media:\n")
				fmt.Fprintf(out, "    BaseURL: %s\n", cfg.Media.BaseURL)
				fmt.Fprintf(out, "    FetchTimeout: %s\n", cfg.Media.FetchTimeout)
				fmt.Fprintf(out, "    Audio: %s\n", cfg.Media.Audio)
				fmt.Fprintf(out, "Status:\n")
				fmt.Fprintf(out, "    Enabled: %v\n", cfg.Status.Enabled)
				if cfg.Status.Enabled {
					fmt.Fprintf(out, "    Addr: %s\n", cfg.StatusAddr())
				}
				fmt.Fprintf(out, "Events:\n")
				fmt.Fprintf(out, "    BufferSize: %d\n", cfg.Events.BufferSize)
				if cfg.Events.Redis.Addr != "" {
					fmt.Fprintf(out, "    Redis: %s (db %d, channel %s)\n", cfg.Events.Redis.Addr, cfg.Events.Redis.DB, cfg.Events.Redis.Channel)
				} else {
					fmt.Fprintf(out, "    Redis: disabled\n")
				}
				fmt.Fprintf(out, "Log:\n")
				fmt.Fprintf(out, "    Level: %s\n", cfg.Log.Level)
				fmt.Fprintf(out, "    Format: %s\n", cfg.Log.Format)
				return nil
			default:
				return fmt.Errorf("unknown output format %q", outputFormat)
			}
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Output format (text, yaml)")

	return cmd
}
