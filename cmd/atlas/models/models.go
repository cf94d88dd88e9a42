// Package modelscmder provides commands for listing the backend's LLM
// models and assigning one to a session.
package modelscmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atlaschat/atlas/pkg/backend"
	"github.com/atlaschat/atlas/pkg/cliui"
	"github.com/atlaschat/atlas/pkg/config"
	"github.com/atlaschat/atlas/pkg/dotdir"
	"github.com/atlaschat/atlas/pkg/utils"
)

type modelsCommander struct {
	apiTarget string
	configDir string
}

const modelsLongDesc string = `List the LLM models the backend can generate with.

Use "atlas models set <model-id>" to assign a model to the pinned session.

Examples:
  atlas models
  atlas models set gpt-4o-mini`

const modelsShortDesc string = "List and pick LLM models"

func NewModelsCmd() *cobra.Command {
	cmder := &modelsCommander{}

	cmd := &cobra.Command{
		Use:   "models",
		Short: modelsShortDesc,
		Long:  modelsLongDesc,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed("api-target") {
				cmder.apiTarget = cfg.Client.APITarget
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.runList(cmd.Context())
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.PersistentFlags().StringVarP(&cmder.apiTarget, "api-target", "t", defaults.Client.APITarget, "Backend API server URL")

	cmd.AddCommand(newSetCmd(cmder))

	return cmd
}

func (c *modelsCommander) runList(ctx context.Context) error {
	api := backend.New(c.apiTarget)

	models, err := api.ListModels(ctx)
	if err != nil {
		return err
	}

	if len(models) == 0 {
		fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("The backend reports no available models."))
		return nil
	}

	fmt.Println()
	for _, m := range models {
		fmt.Printf("  %s  %s %s\n",
			cliui.NameStyle.Render(m.ID),
			m.Name,
			cliui.DimStyle.Render(fmt.Sprintf("(%s)", m.Provider)),
		)
		if m.Description != "" {
			fmt.Printf("     %s\n", cliui.DimStyle.Render(utils.Truncate(m.Description, 72)))
		}
	}
	fmt.Println()

	return nil
}

func newSetCmd(c *modelsCommander) *cobra.Command {
	return &cobra.Command{
		Use:   "set <model-id>",
		Short: "Assign a model to the pinned session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := dotdir.NewManager().LoadSessionState(c.configDir)
			if err != nil {
				return fmt.Errorf("loading session state: %w", err)
			}
			if state == nil || state.SessionID == "" {
				return fmt.Errorf("no pinned session; start one with \"atlas chat\" or \"atlas sessions new\"")
			}

			api := backend.New(c.apiTarget)
			if err := api.SetSessionModel(cmd.Context(), state.SessionID, args[0]); err != nil {
				return err
			}

			fmt.Printf("  %s Session %s now uses %s\n",
				cliui.SuccessMark,
				cliui.NameStyle.Render(state.SessionID),
				cliui.ValueStyle.Render(args[0]),
			)
			return nil
		},
	}
}
