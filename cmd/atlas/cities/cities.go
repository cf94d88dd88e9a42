// Package citiescmder provides commands for browsing the backend's
// destination knowledge base.
package citiescmder

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/atlaschat/atlas/pkg/backend"
	"github.com/atlaschat/atlas/pkg/cliui"
	"github.com/atlaschat/atlas/pkg/config"
	"github.com/atlaschat/atlas/pkg/utils"
)

type citiesCommander struct {
	apiTarget string
	region    string
	tags      []string
}

const citiesLongDesc string = `Browse the destination knowledge base the assistant draws on.

Without a subcommand, lists cities, optionally filtered by region and tags.

Examples:
  atlas cities
  atlas cities --region 华东
  atlas cities --tags 美食,历史文化
  atlas cities attractions beijing
  atlas cities regions
  atlas cities tags`

const citiesShortDesc string = "Browse the destination knowledge base"

func NewCitiesCmd() *cobra.Command {
	cmder := &citiesCommander{}

	cmd := &cobra.Command{
		Use:   "cities",
		Short: citiesShortDesc,
		Long:  citiesLongDesc,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
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
	cmd.Flags().StringVarP(&cmder.region, "region", "r", "", "Filter by region")
	cmd.Flags().StringSliceVar(&cmder.tags, "tags", nil, "Filter by tags (comma separated)")

	cmd.AddCommand(newAttractionsCmd(cmder))
	cmd.AddCommand(newRegionsCmd(cmder))
	cmd.AddCommand(newTagsCmd(cmder))

	return cmd
}

func (c *citiesCommander) runList(ctx context.Context) error {
	api := backend.New(c.apiTarget)

	cities, err := api.ListCities(ctx, c.region, c.tags)
	if err != nil {
		return err
	}

	if len(cities) == 0 {
		fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("No cities match those filters."))
		return nil
	}

	fmt.Println()
	for _, city := range cities {
		fmt.Printf("  %s  %s %s\n",
			cliui.NameStyle.Render(city.ID),
			city.Name,
			cliui.DimStyle.Render(fmt.Sprintf("(%s: %s)", city.Region, strings.Join(city.Tags, ", "))),
		)
	}
	fmt.Println()

	return nil
}

func newAttractionsCmd(c *citiesCommander) *cobra.Command {
	return &cobra.Command{
		Use:   "attractions <city-id>",
		Short: "List a city's attractions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api := backend.New(c.apiTarget)

			attractions, err := api.Attractions(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if len(attractions) == 0 {
				fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("No attractions recorded for that city."))
				return nil
			}

			fmt.Println()
			for _, a := range attractions {
				fmt.Printf("  %s %s\n", cliui.NameStyle.Render(a.Name), cliui.DimStyle.Render(fmt.Sprintf("(%s)", a.Category)))
				if a.Description != "" {
					fmt.Printf("     %s\n", utils.Truncate(a.Description, 72))
				}
			}
			fmt.Println()

			return nil
		},
	}
}

func newRegionsCmd(c *citiesCommander) *cobra.Command {
	return &cobra.Command{
		Use:   "regions",
		Short: "List known regions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api := backend.New(c.apiTarget)
			return printStrings(cmd.Context(), api.Regions)
		},
	}
}

func newTagsCmd(c *citiesCommander) *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List known city tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api := backend.New(c.apiTarget)
			return printStrings(cmd.Context(), api.Tags)
		},
	}
}

func printStrings(ctx context.Context, fetch func(context.Context) ([]string, error)) error {
	values, err := fetch(ctx)
	if err != nil {
		return err
	}

	fmt.Println()
	for _, v := range values {
		fmt.Printf("  %s\n", v)
	}
	fmt.Println()

	return nil
}
