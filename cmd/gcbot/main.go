package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const configEnv = "CONFIG_PATH"

func main() {
	Execute()
}

func Execute() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "gcbot",
		Short:        "Relay GitHub activity into Chatwork rooms",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "Config file path (defaults to $"+configEnv+" or config.toml).")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newRelayCmd())
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())

	return cmd
}

func configPathFlag(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	if path = strings.TrimSpace(path); path != "" {
		return path
	}
	return strings.TrimSpace(os.Getenv(configEnv))
}
