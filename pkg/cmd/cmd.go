// Package cmd contains the command line applications for the project.
package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/yeisme/chest/pkg/configs"
)

var (
	// configPath 配置文件或所在目录.
	configPath string

	rootCmd = &cobra.Command{
		Use:     "chest",
		Short:   "A content-addressed object store with replica negotiation",
		Version: configs.AppVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "config file or directory")

	registerServeCommands()
	registerConfigsCommands()
	registerDBCommands()
	registerKVCommands()
	registerMQCommands()
	registerBackendCommands()
}

// loadConfig 加载配置，子命令按需调用.
func loadConfig() (*configs.AppConfig, error) {
	if err := configs.InitConfig(configPath); err != nil {
		return nil, err
	}

	return configs.GetConfig(), nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}
