package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/yeisme/chest/pkg/cache"
	"github.com/yeisme/chest/pkg/internal/service"
	"github.com/yeisme/chest/pkg/internal/storage/kv"
)

var (
	kvCmd = &cobra.Command{
		Use:   "kv",
		Short: "Negotiation counter store related commands",
	}

	kvListCmd = &cobra.Command{
		Use:     "ls",
		Short:   "list all registered kv drivers",
		Aliases: []string{"list", "l"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Registered kv types:")

			for _, t := range kv.GetRegisteredKVTypes() {
				fmt.Fprintln(cmd.OutOrStdout(), "   - "+string(t))
			}
		},
	}

	kvCountersCmd = &cobra.Command{
		Use:   "counters",
		Short: "print remaining negotiation attempts per missing object",
		Long:  "Only meaningful for shared stores (redis, nats); the memory store lives inside the server process.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCounters(cmd.Context(), func(counters *cache.Cache) error {
				ids, err := counters.Keys(cmd.Context())
				if err != nil {
					return err
				}

				sort.Strings(ids)

				for _, id := range ids {
					left, err := cache.Get[int](cmd.Context(), counters, id)
					if err != nil {
						continue
					}

					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", id, left)
				}

				return nil
			})
		},
	}

	kvResetCmd = &cobra.Command{
		Use:   "reset [objectId]...",
		Short: "drop negotiation counters so the next request starts a fresh round",
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			if !all && len(args) == 0 {
				return errors.New("give at least one object id or --all")
			}

			return withCounters(cmd.Context(), func(counters *cache.Cache) error {
				if all {
					n, err := counters.Clear(cmd.Context())
					fmt.Fprintf(cmd.OutOrStdout(), "removed %d counters\n", n)

					return err
				}

				for _, id := range args {
					if err := counters.Delete(cmd.Context(), id); err != nil && !cache.IsMiss(err) {
						return fmt.Errorf("reset %s: %w", id, err)
					}
				}

				return nil
			})
		},
	}
)

func withCounters(ctx context.Context, fn func(counters *cache.Cache) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, err := kv.NewKVClientWithConfig(ctx, &cfg.KV)
	if err != nil {
		return err
	}
	defer client.Close()

	return fn(cache.NewCache(client.KVStore, cache.WithPrefix(service.CounterPrefix)))
}

// registerKVCommands 注册协商计数存储相关命令.
func registerKVCommands() {
	rootCmd.AddCommand(kvCmd)
	kvResetCmd.Flags().Bool("all", false, "drop every counter")
	kvCmd.AddCommand(kvListCmd, kvCountersCmd, kvResetCmd)
}
