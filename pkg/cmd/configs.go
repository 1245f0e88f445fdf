package cmd

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/yeisme/chest/pkg/configs"
)

// 打印配置时遮盖的键名片段.
var secretKeys = []string{"password", "secret", "token", "jwt", "nkey"}

var (
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "inspect the effective configuration",
	}

	configPathCmd = &cobra.Command{
		Use:   "path",
		Short: "print the config file in use",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(); err != nil {
				return err
			}

			used := configs.GetViper().ConfigFileUsed()
			if used == "" {
				used = "(none, defaults and CHEST_* environment only)"
			}

			fmt.Fprintln(cmd.OutOrStdout(), used)

			return nil
		},
	}

	configShowCmd = &cobra.Command{
		Use:     "show",
		Aliases: []string{"debug"},
		Short:   "print the effective settings with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(); err != nil {
				return err
			}

			settings := maskSecrets(configs.GetViper().AllSettings())

			format, _ := cmd.Flags().GetString("format")

			var (
				out []byte
				err error
			)

			switch format {
			case "yaml":
				out, err = yaml.Marshal(settings)
			case "json":
				out, err = sonic.ConfigStd.MarshalIndent(settings, "", "  ")
				out = append(out, '\n')
			default:
				return fmt.Errorf("unknown format %q", format)
			}

			if err != nil {
				return fmt.Errorf("encode settings: %w", err)
			}

			_, err = cmd.OutOrStdout().Write(out)

			return err
		},
	}

	configValidateCmd = &cobra.Command{
		Use:   "validate",
		Short: "load the configuration and report rule violations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "ok: role=%s backend=%s db=%s mq=%s kv=%s\n",
				cfg.Chest.Role, cfg.Chest.Backend, cfg.DB.Family(), cfg.MQ.Type, cfg.KV.Type)

			return nil
		},
	}
)

// maskSecrets 递归替换敏感键的非空值.
func maskSecrets(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))

	for k, v := range m {
		switch val := v.(type) {
		case map[string]any:
			out[k] = maskSecrets(val)
		case string:
			if val != "" && isSecret(k) {
				out[k] = "******"
			} else {
				out[k] = val
			}
		default:
			out[k] = val
		}
	}

	return out
}

func isSecret(key string) bool {
	key = strings.ToLower(key)
	for _, s := range secretKeys {
		if strings.Contains(key, s) {
			return true
		}
	}

	return false
}

func registerConfigsCommands() {
	configShowCmd.Flags().String("format", "yaml", "output format: yaml or json")

	configCmd.AddCommand(configPathCmd, configShowCmd, configValidateCmd)
	rootCmd.AddCommand(configCmd)
}
