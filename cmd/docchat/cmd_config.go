package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/docchat/internal/config"
)

var showSecrets bool

func init() {
	configListCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "print api keys and tokens unmasked")
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configListCmd, configGetCmd, configSetCmd, configPathCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Reads and writes the JSON config file. Keys use dots for nesting, for
example backend.base_url or storage.driver. DOCCHAT_BACKEND_URL,
DOCCHAT_API_KEY, DOCCHAT_DATA_DIR and TELEGRAM_BOT_TOKEN override the file.`,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List effective configuration values and where they come from",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		values, err := config.ListValues(cfg, !showSecrets)
		if err != nil {
			return fmt.Errorf("list config: %w", err)
		}
		overrides := config.ActiveEnvOverrides()

		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tVALUE\tSOURCE")
		for _, k := range keys {
			source := "file"
			if env, ok := overrides[k]; ok {
				source = "env " + env
			}
			fmt.Fprintf(w, "%s\t%v\t%s\n", k, values[k], source)
		}
		return w.Flush()
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a value as stored in the config file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loadConfig()
		val, err := config.GetValue(cfgPath, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, val)
		if env, ok := config.ActiveEnvOverrides()[args[0]]; ok {
			fmt.Fprintf(os.Stderr, "note: %s is set and takes precedence\n", env)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a value in the config file",
	Example: `  docchat config set backend.base_url http://127.0.0.1:5000
  docchat config set storage.driver sqlite
  docchat config set telegram.allowed_user_id 123456789`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		loadConfig()
		key, raw := args[0], args[1]
		if err := config.SetValue(cfgPath, key, raw); err != nil {
			return err
		}
		if config.IsSecretKey(key) {
			raw = "***"
		}
		fmt.Fprintf(os.Stdout, "%s = %s (saved to %s)\n", key, raw, cfgPath)
		if env, ok := config.ActiveEnvOverrides()[key]; ok {
			fmt.Fprintf(os.Stderr, "note: %s is set and will override this value\n", env)
		}
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(os.Stdout, cfgPath)
	},
}
