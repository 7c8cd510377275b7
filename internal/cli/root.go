// Package cli is the storefront-orders command line: serve, migrate and reconcile.
package cli

import (
	"fmt"
	"os"

	"github.com/Zhima-Mochi/storefront-orders/internal/config"
	"github.com/spf13/cobra"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "storefront-orders",
		Short:         "Order placement service for the storefront",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (env: STOREFRONT_CONFIG)")

	root.AddCommand(newServeCmd(), newMigrateCmd(), newReconcileCmd())
	return root
}

// Execute runs the root command.
func Execute(version string) error {
	root := newRootCmd()
	root.Version = version
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}
