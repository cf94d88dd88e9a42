// Package sessionscmder provides commands for managing conversation
// sessions on the travel assistant backend.
package sessionscmder

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

type sessionsCommander struct {
	apiTarget    string
	includeEmpty bool
	configDir    string
}

const sessionsLongDesc string = `Manage conversation sessions on the backend.

Without a subcommand, lists existing sessions. The pinned session (the one
"atlas chat" resumes into) is marked with an asterisk.

Examples:
  atlas sessions
  atlas sessions --include-empty
  atlas sessions new "weekend trip"
  atlas sessions use sess-42
  atlas sessions rename sess-42 "hangzhou plans"
  atlas sessions clear sess-42
  atlas sessions delete sess-42`

const sessionsShortDesc string = "Manage conversation sessions"

func NewSessionsCmd() *cobra.Command {
	cmder := &sessionsCommander{}

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: sessionsShortDesc,
		Long:  sessionsLongDesc,
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
	cmd.Flags().BoolVar(&cmder.includeEmpty, "include-empty", false, "Include sessions with no messages")

	cmd.AddCommand(newNewCmd(cmder))
	cmd.AddCommand(newUseCmd(cmder))
	cmd.AddCommand(newRenameCmd(cmder))
	cmd.AddCommand(newClearCmd(cmder))
	cmd.AddCommand(newDeleteCmd(cmder))

	return cmd
}

func (c *sessionsCommander) runList(ctx context.Context) error {
	api := backend.New(c.apiTarget)

	sessions, err := api.ListSessions(ctx, c.includeEmpty)
	if err != nil {
		return err
	}

	if len(sessions) == 0 {
		fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("No sessions yet. Start one with \"atlas chat\"."))
		return nil
	}

	pinned := ""
	if state, err := dotdir.NewManager().LoadSessionState(c.configDir); err == nil && state != nil {
		pinned = state.SessionID
	}

	fmt.Println()
	for _, s := range sessions {
		mark := " "
		if s.ID == pinned {
			mark = cliui.SuccessMark
		}

		name := s.Name
		if name == "" {
			name = "(unnamed)"
		}

		fmt.Printf("  %s %s  %s %s\n",
			mark,
			cliui.NameStyle.Render(s.ID),
			utils.Truncate(name, 40),
			cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", s.MessageCount)),
		)
	}
	fmt.Println()

	return nil
}

func newNewCmd(c *sessionsCommander) *cobra.Command {
	return &cobra.Command{
		Use:   "new [name]",
		Short: "Create a session and pin it for chat",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}

			api := backend.New(c.apiTarget)
			id, err := api.CreateSession(cmd.Context(), name)
			if err != nil {
				return err
			}

			if err := dotdir.NewManager().SaveSession(&dotdir.SessionState{SessionID: id, Name: name}, c.configDir); err != nil {
				return fmt.Errorf("pinning session: %w", err)
			}

			fmt.Printf("  %s Created and pinned %s\n", cliui.SuccessMark, cliui.NameStyle.Render(id))
			return nil
		},
	}
}

func newUseCmd(c *sessionsCommander) *cobra.Command {
	return &cobra.Command{
		Use:   "use <session-id>",
		Short: "Pin an existing session for chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]

			// Validate against the backend before pinning.
			api := backend.New(c.apiTarget)
			sessions, err := api.ListSessions(cmd.Context(), true)
			if err != nil {
				return err
			}

			var found *backend.Session
			for i := range sessions {
				if sessions[i].ID == id {
					found = &sessions[i]
					break
				}
			}
			if found == nil {
				return fmt.Errorf("session %q not found", id)
			}

			state := &dotdir.SessionState{SessionID: found.ID, Name: found.Name}
			if err := dotdir.NewManager().SaveSession(state, c.configDir); err != nil {
				return fmt.Errorf("pinning session: %w", err)
			}

			fmt.Printf("  %s Pinned %s\n", cliui.SuccessMark, cliui.NameStyle.Render(id))
			return nil
		},
	}
}

func newRenameCmd(c *sessionsCommander) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <session-id> <name>",
		Short: "Rename a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api := backend.New(c.apiTarget)
			if err := api.RenameSession(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}

			fmt.Printf("  %s Renamed %s\n", cliui.SuccessMark, cliui.NameStyle.Render(args[0]))
			return nil
		},
	}
}

func newClearCmd(c *sessionsCommander) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <session-id>",
		Short: "Clear a session's conversation history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api := backend.New(c.apiTarget)
			if err := api.ClearHistory(cmd.Context(), args[0]); err != nil {
				return err
			}

			fmt.Printf("  %s Cleared history for %s\n", cliui.SuccessMark, cliui.NameStyle.Render(args[0]))
			return nil
		},
	}
}

func newDeleteCmd(c *sessionsCommander) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session and its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api := backend.New(c.apiTarget)
			if err := api.DeleteSession(cmd.Context(), args[0]); err != nil {
				return err
			}

			// Unpin if the deleted session was the pinned one.
			ddm := dotdir.NewManager()
			if state, err := ddm.LoadSessionState(c.configDir); err == nil && state != nil && state.SessionID == args[0] {
				if err := ddm.ClearSession(c.configDir); err != nil {
					return err
				}
			}

			fmt.Printf("  %s Deleted %s\n", cliui.SuccessMark, cliui.NameStyle.Render(args[0]))
			return nil
		},
	}
}
