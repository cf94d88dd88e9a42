// Package atlascmder
package atlascmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/atlaschat/atlas/cmd/atlas/chat"
	citiescmder "github.com/atlaschat/atlas/cmd/atlas/cities"
	configcmder "github.com/atlaschat/atlas/cmd/atlas/config"
	modelscmder "github.com/atlaschat/atlas/cmd/atlas/models"
	sessionscmder "github.com/atlaschat/atlas/cmd/atlas/sessions"
	versioncmder "github.com/atlaschat/atlas/cmd/version"
)

const atlasLongDesc string = `Atlas is a streaming chat client for the travel assistant backend.

Talk to the assistant using:
  atlas chat           Start an interactive streaming chat session
  atlas sessions       Manage conversation sessions
  atlas models         List and pick LLM models
  atlas cities         Browse the destination knowledge base`

const atlasShortDesc string = "Atlas - Travel Assistant Chat"

func NewAtlasCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "atlas",
		Short: atlasShortDesc,
		Long:  atlasLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .atlas/ config directory")

	// Add subcommands
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(sessionscmder.NewSessionsCmd())
	cmd.AddCommand(modelscmder.NewModelsCmd())
	cmd.AddCommand(citiescmder.NewCitiesCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
