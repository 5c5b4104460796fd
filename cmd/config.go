package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/witanlabs/gridcmd/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change the gridcmd configuration",
	Long: `Show or change the configuration file.

The file lives at $GRIDCMD_CONFIG_DIR/config.yaml, else
$XDG_CONFIG_HOME/gridcmd/config.yaml, else ~/.config/gridcmd/config.yaml.
GRIDCMD_API_KEY, GRIDCMD_API_URL and GRIDCMD_SHEET (also read from .env)
override the file.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		shown := cfg
		if shown.Remote.APIKey != "" {
			shown.Remote.APIKey = maskSecret(shown.Remote.APIKey)
		}
		if shown.Server.Token != "" {
			shown.Server.Token = maskSecret(shown.Server.Token)
		}
		if jsonOutput {
			return jsonPrint(shown)
		}
		data, err := yaml.Marshal(shown)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: "Set a configuration value and save the file.\n\nKeys:\n  " + strings.Join(config.Keys(), "\n  "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		c, err := config.LoadFile()
		if err != nil {
			return err
		}
		if err := c.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := config.Save(c); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
		p, _ := config.Path()
		fmt.Printf("Set %s in %s\n", args[0], p)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		p, err := config.Path()
		if err != nil {
			return err
		}
		fmt.Println(p)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
