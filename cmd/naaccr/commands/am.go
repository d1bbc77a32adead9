package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rwaitman/naaccr-tumor-data/am"
	"github.com/rwaitman/naaccr-tumor-data/display"
	"github.com/rwaitman/naaccr-tumor-data/errors"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: "Manage naaccr configuration",
	Long: `am - Manage naaccr configuration ("I am")

Display and manage the layout, target names, field classification and
database settings.

Configuration sources (later overrides earlier):
1. Default values
2. User config (~/.naaccr/am.toml)
3. Project config (./am.toml, searched up from the working directory)
4. Environment variables (NAACCR_* prefix, e.g. NAACCR_DECODE_WORKERS)

Examples:
  naaccr am show                         # Show current configuration
  naaccr am show --format yaml           # Show configuration as YAML
  naaccr am get target.view_name         # Get one value
  naaccr am set layout.version 12.1      # Set a value in ./am.toml
  naaccr am init                         # Write ./am.toml with defaults
  naaccr am where                        # Show which source set each value`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the effective naaccr configuration merged from all sources",
	RunE:  runAmShow,
}

var amGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a specific configuration value using dot notation (e.g., database.path, decode.workers)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAmGet,
}

var amSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value in a config file",
	Long: `Set one value in the project config (./am.toml by default). The previous
file is kept as am.toml.back1 (up to three backups are rotated).

Integers and booleans are stored as such; everything else as a string.`,
	Args: cobra.ExactArgs(2),
	RunE: runAmSet,
}

var amInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with every default",
	RunE:  runAmInit,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	Long:  "Validate the configuration, including the encoding, the layout version constraint and the item types file",
	RunE:  runAmValidate,
}

var amWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show where configuration is loaded from",
	Long:  `Show the configuration cascade, the files that were found, and the source of every effective value.`,
	RunE:  runAmWhere,
}

var (
	configFormat string
	configFile   string
	forceInit    bool
)

func init() {
	amShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")
	amSetCmd.Flags().StringVar(&configFile, "file", "am.toml", "Config file to modify")
	amInitCmd.Flags().StringVar(&configFile, "file", "am.toml", "Config file to write")
	amInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing file (it is backed up first)")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amGetCmd)
	AmCmd.AddCommand(amSetCmd)
	AmCmd.AddCommand(amInitCmd)
	AmCmd.AddCommand(amValidateCmd)
	AmCmd.AddCommand(amWhereCmd)
}

func runAmShow(cmd *cobra.Command, args []string) error {
	if _, err := am.Load(); err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	settings := am.GetViper().AllSettings()

	format := configFormat
	if display.ShouldOutputJSON(cmd) {
		format = "json"
	}

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		return display.WriteJSON(out, settings)

	case "yaml":
		data, err := yaml.Marshal(settings)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to YAML")
		}
		fmt.Fprintf(out, "# naaccr configuration\n%s", data)

	case "toml":
		data, err := toml.Marshal(settings)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to TOML")
		}
		fmt.Fprintf(out, "# naaccr configuration\n%s", data)

	default:
		return errors.NewInvalidRequestError("unsupported format: %s (supported: toml, json, yaml)", format)
	}
	return nil
}

func runAmGet(cmd *cobra.Command, args []string) error {
	key := args[0]
	if _, err := am.Load(); err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if !am.GetViper().IsSet(key) {
		return errors.NewNotFoundError("configuration key %q not found", key)
	}

	value := am.Get(key)
	if display.ShouldOutputJSON(cmd) {
		return display.WriteJSON(cmd.OutOrStdout(), map[string]interface{}{key: value})
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runAmSet(cmd *cobra.Command, args []string) error {
	key, raw := args[0], args[1]
	if err := am.Set(configFile, key, parseValue(raw)); err != nil {
		return err
	}

	// Reject a value that leaves the file invalid, but keep it written:
	// the backup holds the previous version.
	cfg, err := am.LoadFromFile(configFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return errors.WithHintf(errors.Wrapf(err, "%s is now invalid", configFile),
			"restore the previous version from %s.back1", configFile)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s = %s (%s)\n", key, raw, configFile)
	return nil
}

// parseValue keeps integers and booleans typed in the TOML file.
func parseValue(raw string) interface{} {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}

func runAmInit(cmd *cobra.Command, args []string) error {
	if err := am.WriteDefault(configFile, forceInit); err != nil {
		return err
	}
	abs, _ := filepath.Abs(configFile)
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s\n", abs)
	return nil
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration is valid")
	return nil
}

func runAmWhere(cmd *cobra.Command, args []string) error {
	intro, err := am.GetConfigIntrospection()
	if err != nil {
		return errors.Wrap(err, "failed to get config introspection")
	}
	if display.ShouldOutputJSON(cmd) {
		return display.WriteJSON(cmd.OutOrStdout(), intro)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Configuration cascade (later overrides earlier):")
	fmt.Fprintln(out, "  1. [DEFAULT]  Built-in defaults")
	fmt.Fprintf(out, "  2. [USER]     %s\n", am.UserConfigPath())
	fmt.Fprintln(out, "  3. [PROJECT]  ./am.toml (searches up directories)")
	fmt.Fprintf(out, "  4. [ENV]      %s_* environment variables\n", am.EnvPrefix)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Files loaded:")
	if len(intro.ConfigFiles) == 0 {
		fmt.Fprintln(out, "  (none)")
	}
	for _, f := range intro.ConfigFiles {
		status := "✓"
		if _, err := os.Stat(f); err != nil {
			status = "✗"
		}
		fmt.Fprintf(out, "  %s %s\n", status, f)
	}
	fmt.Fprintln(out)

	settings := append([]am.SettingInfo(nil), intro.Settings...)
	sort.SliceStable(settings, func(i, j int) bool { return settings[i].Key < settings[j].Key })
	rows := make([][]string, 0, len(settings))
	for _, s := range settings {
		source := string(s.Source)
		if s.SourcePath != "" {
			source += " (" + s.SourcePath + ")"
		}
		rows = append(rows, []string{s.Key, fmt.Sprint(s.Value), source})
	}
	return display.Table(out, []string{"Key", "Value", "Source"}, rows)
}
