// Package configcmder provides the config command for managing persistent
// atlas configuration stored in the .atlas/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent atlas configuration.

Configuration is stored as config.toml in the .atlas/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values.

Keys use dotted notation matching the TOML section structure:
  client.api_target,
  stream.max_attempts, stream.base_delay_ms, stream.attempt_timeout_secs,
  chat.model, chat.mode,
  event_stream.enabled, event_stream.topic

Use subcommands to get, set, or list configuration values:
  atlas config set <key> <value>    Set a configuration value
  atlas config get <key>            Get a configuration value
  atlas config list                 List all configuration values

Examples:
  atlas config set chat.mode react
  atlas config set stream.max_attempts 5
  atlas config get client.api_target
  atlas config list`

const configShortDesc string = "Manage persistent atlas configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
