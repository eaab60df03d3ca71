package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/JoeShih716/go-credit-ledger/internal/config"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:           "core",
		Short:         "credit ledger service",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", config.DefaultPath, "config file path")

	serveCmd := newServeCmd()
	rootCmd.AddCommand(serveCmd, newMigrateCmd())
	// 不帶子命令時等同 serve
	rootCmd.RunE = serveCmd.RunE
	rootCmd.Flags().AddFlagSet(serveCmd.Flags())

	if err := rootCmd.Execute(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

// loadConfig 使用者明確指定 --config 時檔案必須存在
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(cfgFile, cmd.Flags().Changed("config"))
}
