package cmd

import (
	"os"

	"github.com/sharedesk/contenthub/internal/config"
	"github.com/sharedesk/contenthub/internal/logger"
	"github.com/spf13/cobra"
)

var (
	socketPath string
	peerID     string
	peerName   string
)

var rootCmd = &cobra.Command{
	Use:  `content-cli`,
	Long: `content-cli drives the content hub daemon: list peers, request content from other applications, and run a handler that answers requests`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.NewLogger().Fatal(err)
		os.Exit(1)
	}
}

func init() {
	cfg := config.Load()
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", cfg.SocketPath, "path of the hub daemon socket")
	rootCmd.PersistentFlags().StringVar(&peerID, "peer", "content-cli", "peer id this process registers as")
	rootCmd.PersistentFlags().StringVar(&peerName, "name", "Content CLI", "human readable peer name")

	rootCmd.AddCommand(peersCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(shareCmd)
	rootCmd.AddCommand(handleCmd)
}
