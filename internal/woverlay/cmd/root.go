// Package cmd implements the woverlay command line
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wrale/wrale-overlay/internal/woverlay/config"
)

// options holds state shared by subcommands
type options struct {
	cfgFile string
	cfg     *config.Config
}

// NewRootCmd builds the woverlay command tree
func NewRootCmd() *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:   "woverlay",
		Short: "Wrale Overlay notification client",
		Long: `woverlay connects to a notification source over WebSocket, shows each
notification as an on-screen caption with optional sound and video, and reports
FINISHED back to the source once the notification has played out.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.loadConfig(cmd)
		},
	}

	root.PersistentFlags().StringVar(&o.cfgFile, "config", "", "config file (YAML)")
	root.PersistentFlags().String("server", "", "notification source WebSocket URL")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newRunCmd(o),
		newVersionCmd(),
		newConfigCmd(o),
	)
	return root
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads defaults, the config file, WOVERLAY_* variables and flags,
// in increasing order of precedence
func (o *options) loadConfig(cmd *cobra.Command) error {
	v := config.NewViper()
	flags := cmd.Flags()
	if err := v.BindPFlag("server.url", flags.Lookup("server")); err != nil {
		return err
	}
	if err := v.BindPFlag("log.level", flags.Lookup("log-level")); err != nil {
		return err
	}

	cfg, err := config.Load(v, o.cfgFile)
	if err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}
