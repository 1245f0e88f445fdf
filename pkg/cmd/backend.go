package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yeisme/chest/pkg/internal/backend"
	"github.com/yeisme/chest/pkg/internal/meta"
	"github.com/yeisme/chest/pkg/internal/replica"
	"github.com/yeisme/chest/pkg/internal/service"
	"github.com/yeisme/chest/pkg/internal/storage"
	"github.com/yeisme/chest/pkg/log"
)

var (
	backendCmd = &cobra.Command{
		Use:   "backend",
		Short: "Object store backend related commands",
	}

	backendListCmd = &cobra.Command{
		Use:     "ls",
		Short:   "list all registered backend drivers",
		Aliases: []string{"list", "l"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Registered backends:")

			for _, name := range backend.Drivers() {
				fmt.Fprintln(cmd.OutOrStdout(), "   - "+name)
			}
		},
	}

	backendStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "print object count and capacity of the configured backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withChest(cmd.Context(), func(chest *service.Chest) error {
				st := chest.Backend().Stats()

				fmt.Fprintf(cmd.OutOrStdout(), "role:       %s\n", chest.Role())
				fmt.Fprintf(cmd.OutOrStdout(), "objects:    %d\n", st.Count)
				fmt.Fprintf(cmd.OutOrStdout(), "total size: %d\n", st.TotalSize)
				fmt.Fprintf(cmd.OutOrStdout(), "max size:   %d\n", st.MaxSize)

				return nil
			})
		},
	}

	backendCollectCmd = &cobra.Command{
		Use:   "collect",
		Short: "remove stored bytes that no published record wants",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withChest(cmd.Context(), func(chest *service.Chest) error {
				report, err := replica.New(chest, nil, nil).Collect(cmd.Context())
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "scanned %d, removed %d, failed %d\n", report.Scanned, report.Removed, report.Failed)

				return nil
			})
		},
	}
)

// withChest 按配置打开元数据库与后端，构造离线使用的服务实例.
func withChest(ctx context.Context, fn func(chest *service.Chest) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log.Init()

	mgr, err := storage.Init(ctx, cfg)
	if err != nil {
		return err
	}
	defer mgr.Close()

	store := meta.NewGormStore(mgr.DB.DB)
	if err := store.AutoMigrate(ctx); err != nil {
		return err
	}

	chestCfg := cfg.Chest
	// 离线命令不做容量淘汰
	chestCfg.FS.MaxSize = 0

	be, err := backend.New(ctx, backend.OptionsFromConfig(&chestCfg, mgr.S3))
	if err != nil {
		return err
	}
	defer be.Close()

	return fn(service.New(be, store, chestCfg))
}

// registerBackendCommands 注册后端相关命令.
func registerBackendCommands() {
	rootCmd.AddCommand(backendCmd)

	backendCmd.AddCommand(backendListCmd)
	backendCmd.AddCommand(backendStatsCmd)
	backendCmd.AddCommand(backendCollectCmd)
}

