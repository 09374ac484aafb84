package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/soyeahso/sharkchat/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Get or set configuration values",
	}

	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigUnsetCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value, falling back to its default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return configGet(os.Stdout, paths.Config, args[0])
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value in the config file.

The key must exist in the sharkchat config schema and the value must pass
validation, e.g.:

  sharkchat config set lex.botId ABCDEFGHIJ
  sharkchat config set call.connectTimeout 15000`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return configSet(os.Stdout, paths.Config, args[0], args[1])
		},
	}
}

func newConfigUnsetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return configUnset(os.Stdout, paths.Config, args[0])
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(paths.Config)
		},
	}
}

func configGet(w io.Writer, file, key string) error {
	path, err := config.ParseConfigPath(key)
	if err != nil {
		return err
	}

	raw, err := config.LoadRaw(file)
	if err != nil {
		return err
	}
	if val, ok := config.GetValueAtPath(raw, path); ok {
		return printValue(w, val)
	}

	defaults, err := config.DefaultsRaw()
	if err != nil {
		return err
	}
	if val, ok := config.GetValueAtPath(defaults, path); ok {
		return printValue(w, val)
	}
	return fmt.Errorf("key %q is not set", key)
}

// configSet writes a value only if the resulting file still decodes into
// the schema and the key passes validation. Issues elsewhere in the file
// are reported but do not block the write.
func configSet(w io.Writer, file, key, value string) error {
	path, err := config.ParseConfigPath(key)
	if err != nil {
		return err
	}

	raw, err := config.LoadRaw(file)
	if err != nil {
		return err
	}

	parsed := parseValue(value)
	config.SetValueAtPath(raw, path, parsed)

	cfg, err := config.DecodeRaw(raw)
	if err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	var rejected []string
	for _, issue := range config.Validate(&cfg) {
		if issueCovers(issue.Path, key) {
			rejected = append(rejected, issue.String())
			continue
		}
		fmt.Fprintf(w, "warning: %s\n", issue)
	}
	if len(rejected) > 0 {
		return fmt.Errorf("setting %s: %s", key, strings.Join(rejected, "; "))
	}

	if err := config.SaveRaw(file, raw); err != nil {
		return err
	}

	fmt.Fprintf(w, "Set %s = %v\n", key, parsed)
	return nil
}

// issueCovers reports whether a validation issue concerns key, its parent,
// or one of its children.
func issueCovers(issuePath, key string) bool {
	return issuePath == key ||
		strings.HasPrefix(key, issuePath+".") ||
		strings.HasPrefix(issuePath, key+".")
}

func configUnset(w io.Writer, file, key string) error {
	path, err := config.ParseConfigPath(key)
	if err != nil {
		return err
	}

	raw, err := config.LoadRaw(file)
	if err != nil {
		return err
	}

	if !config.UnsetValueAtPath(raw, path) {
		return fmt.Errorf("key %q not found", key)
	}

	if err := config.SaveRaw(file, raw); err != nil {
		return err
	}

	fmt.Fprintf(w, "Unset %s\n", key)
	return nil
}

// printValue outputs a value in a human-readable format.
func printValue(w io.Writer, v any) error {
	switch val := v.(type) {
	case map[string]any, []any:
		data, err := yaml.Marshal(val)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		_, err := fmt.Fprintln(w, val)
		return err
	}
}

// parseValue attempts to interpret a string as a typed value.
func parseValue(s string) any {
	lower := strings.ToLower(s)
	if lower == "true" {
		return true
	}
	if lower == "false" {
		return false
	}

	// Try integer
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err == nil && fmt.Sprintf("%d", n) == s {
		return n
	}

	// Try float
	var f float64
	if _, err := fmt.Sscanf(s, "%f", &f); err == nil {
		return f
	}

	return s
}
