package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yeisme/chest/pkg/internal/storage/mq"
	"github.com/yeisme/chest/pkg/queue"
)

var (
	mqCmd = &cobra.Command{
		Use:     "mq",
		Short:   "Event bus related commands",
		Aliases: []string{"events"},
	}

	mqListCmd = &cobra.Command{
		Use:     "ls",
		Short:   "list all registered mq drivers",
		Aliases: []string{"list", "l"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Registered mq types:")

			for _, t := range mq.GetRegisteredMQTypes() {
				fmt.Fprintln(cmd.OutOrStdout(), "   - "+string(t))
			}
		},
	}

	mqTopicsCmd = &cobra.Command{
		Use:   "topics",
		Short: "list event topics and whether the current config publishes them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "driver: %s\n", cfg.MQ.Type)

			for _, topic := range queue.AllTopics {
				state := "off"
				if queue.Enabled(&cfg.Events, topic) {
					state = "on"
				}

				fmt.Fprintf(cmd.OutOrStdout(), "   %-28s %s\n", topic, state)
			}

			return nil
		},
	}
)

// registerMQCommands 注册事件总线相关命令.
func registerMQCommands() {
	rootCmd.AddCommand(mqCmd)
	mqCmd.AddCommand(mqListCmd, mqTopicsCmd)
}
