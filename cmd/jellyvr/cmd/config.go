package cmd

import (
	"fmt"
	"io"
	"reflect"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/jellyvr/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing jellyvr configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the effective configuration",
	Long: `Dump the effective configuration in YAML format.

With no config file or environment overrides this prints the defaults and
can be redirected to create a configuration template:

  jellyvr config dump > config.yaml

Configuration can be set via:
  - Config file (config.yaml in ., /etc/jellyvr or $HOME/.jellyvr)
  - Environment variables (JELLYVR_SERVER_PORT, JELLYVR_JELLYFIN_BASE_URL, etc.)
  - Command-line flags (for some options)

Environment variables use the JELLYVR_ prefix and underscores for nesting.
Example: jellyfin.base_url -> JELLYVR_JELLYFIN_BASE_URL`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

// toMap converts a config struct to a map keyed by mapstructure tags, with
// durations rendered in Go duration syntax.
func toMap(v any) map[string]any {
	result := make(map[string]any)
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	typ := val.Type()

	for i := range val.NumField() {
		field := val.Field(i)
		fieldType := typ.Field(i)

		key := fieldType.Tag.Get("mapstructure")
		if key == "" {
			key = fieldType.Name
		}

		switch v := field.Interface().(type) {
		case time.Duration:
			result[key] = v.String()
		default:
			if field.Kind() == reflect.Struct {
				result[key] = toMap(field.Interface())
			} else {
				result[key] = field.Interface()
			}
		}
	}
	return result
}

func runConfigDump(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return writeConfig(cmd.OutOrStdout(), cfg)
}

func writeConfig(w io.Writer, cfg *config.Config) error {
	yamlData, err := yaml.Marshal(toMap(cfg))
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	fmt.Fprintln(w, "# jellyvr configuration")
	fmt.Fprintln(w, "#")
	fmt.Fprintln(w, "# Duration format: 30s, 2m, 1h")
	fmt.Fprintln(w, "#")
	fmt.Fprintln(w, "# Environment variable overrides:")
	fmt.Fprintln(w, "#   JELLYVR_SERVER_HOST, JELLYVR_SERVER_PORT, JELLYVR_SERVER_PUBLIC_URL")
	fmt.Fprintln(w, "#   JELLYVR_DATABASE_DRIVER, JELLYVR_DATABASE_DSN")
	fmt.Fprintln(w, "#   JELLYVR_JELLYFIN_BASE_URL, JELLYVR_CATALOG_CACHE_LIFETIME")
	fmt.Fprintln(w, "#   JELLYVR_LOGGING_LEVEL, JELLYVR_LOGGING_FORMAT")
	fmt.Fprintln(w, "#")
	fmt.Fprintln(w)
	_, err = w.Write(yamlData)
	return err
}
