package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kjstillabower/travel-wardrobe-service/internal/app"
	"github.com/kjstillabower/travel-wardrobe-service/internal/catalog"
	"github.com/kjstillabower/travel-wardrobe-service/internal/climate"
	"github.com/kjstillabower/travel-wardrobe-service/internal/config"
	"github.com/kjstillabower/travel-wardrobe-service/internal/culture"
	"github.com/kjstillabower/travel-wardrobe-service/internal/intent"
	"github.com/kjstillabower/travel-wardrobe-service/internal/models"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configDir string
	jsonOut   bool
	verbose   bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "travelctl",
		Short: "Travel wardrobe recommendations from the command line",
		Long: `travelctl runs the same pipeline as the HTTP service.

Available subcommands:
  recommend - Answer a free-text travel question with products
  catalog   - List and filter catalog products
  taboos    - Show clothing rules and festivals for a destination
  climate   - Show monthly climate for a city`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configDir, "config-dir", "config", "directory holding {ENV_NAME}.yaml and secrets.yaml")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "print JSON instead of text")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log pipeline activity to stderr")

	root.AddCommand(
		newRecommendCmd(opts),
		newCatalogCmd(opts),
		newTaboosCmd(opts),
		newClimateCmd(opts),
	)
	return root
}

// buildApp loads config from opts.configDir and wires the pipeline.
func buildApp(ctx context.Context, opts *rootOptions) (*app.App, error) {
	cfg, err := config.LoadDir(opts.configDir)
	if err != nil {
		return nil, err
	}
	logger := zap.NewNop()
	if opts.verbose {
		if dev, err := zap.NewDevelopment(); err == nil {
			logger = dev
		}
	}
	return app.New(ctx, cfg, logger)
}

func newRecommendCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recommend <question>",
		Short: "Answer a free-text travel question",
		Example: `  travelctl recommend "beach trip to Karachi in July"
  travelctl recommend --json "business meetings in Tokyo next March"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			a, err := buildApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			rec, err := a.Recommender.Recommend(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.jsonOut {
				return writeJSON(out, rec)
			}
			printRecommendation(out, rec)
			return nil
		},
	}
}

func printRecommendation(out io.Writer, rec models.Recommendation) {
	fmt.Fprintln(out, rec.Message)
	if rec.Explanation != "" {
		fmt.Fprintln(out, rec.Explanation)
	}
	fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tSCORE")
	for _, p := range rec.Products {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\n", p.ID, p.Name, p.Price, p.Score)
	}
	_ = tw.Flush()
	if len(rec.Excluded) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Left out:")
		for _, e := range rec.Excluded {
			fmt.Fprintf(out, "  %s: %s\n", e.Name, e.Reason)
		}
	}
	for _, f := range rec.Festivals {
		fmt.Fprintf(out, "Festival: %s (%s)\n", f.Name, f.When)
	}
	for _, tip := range rec.TravelTips {
		fmt.Fprintf(out, "Tip: %s\n", tip)
	}
	if len(rec.Metadata.Fallbacks) > 0 {
		fmt.Fprintf(out, "Fallbacks: %s\n", strings.Join(rec.Metadata.Fallbacks, ", "))
	}
}

func newCatalogCmd(opts *rootOptions) *cobra.Command {
	var q catalog.Query
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List catalog products matching filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Load()
			if err != nil {
				return err
			}
			products := cat.Filter(q)
			out := cmd.OutOrStdout()
			if opts.jsonOut {
				return writeJSON(out, products)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE")
			for _, p := range products {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Category, p.Price)
			}
			_ = tw.Flush()
			fmt.Fprintf(out, "%d of %d products\n", len(products), cat.Len())
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&q.Category, "category", "", "category or tag")
	f.StringVar(&q.Search, "search", "", "text in name, description or tags")
	f.StringVar(&q.Climate, "climate", "", "hot, cold, mild, desert, tropical or mountain")
	f.StringVar(&q.Cultural, "cultural", "", "conservative, modest, traditional, religious or business")
	f.BoolVar(&q.ExcludeInappropriate, "exclude-inappropriate", false, "drop items flagged for conservative destinations")
	f.Float64Var(&q.PriceMin, "price-min", 0, "minimum price in USD")
	f.Float64Var(&q.PriceMax, "price-max", 0, "maximum price in USD (0 for none)")
	f.IntVar(&q.Limit, "limit", 0, "maximum products (0 for all)")
	return cmd
}

func newTaboosCmd(opts *rootOptions) *cobra.Command {
	var (
		activity string
		month    string
		year     int
	)
	cmd := &cobra.Command{
		Use:     "taboos <destination>",
		Short:   "Show clothing rules and festivals for a destination",
		Example: `  travelctl taboos Pakistan --activity beach
  travelctl taboos Mumbai --month november --year 2026`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := culture.Load()
			if err != nil {
				return err
			}
			dest := strings.Join(args, " ")
			profile := table.Resolve(dest, "", "")
			activity = intent.NormalizeActivity(activity)
			rules := profile.RulesFor(activity)

			var festivals []models.FestivalMatch
			if month != "" {
				m, ok := intent.ParseMonth(month)
				if !ok {
					return fmt.Errorf("invalid month %q", month)
				}
				if year == 0 {
					year = time.Now().Year()
				}
				festivals = culture.FestivalsIn(profile, m, year)
			}

			out := cmd.OutOrStdout()
			if opts.jsonOut {
				return writeJSON(out, struct {
					Profile   culture.Profile        `json:"profile"`
					Active    []culture.Rule         `json:"activeRules"`
					Festivals []models.FestivalMatch `json:"festivals,omitempty"`
				}{profile, rules, festivals})
			}
			fmt.Fprintf(out, "%s (%s)\n", profile.Destination, activityOrGeneral(activity))
			if !profile.Known {
				fmt.Fprintln(out, "No specific guidance; general etiquette applies.")
			}
			norms := culture.SoftenNorms(profile.ClothingNorms)
			keys := make([]string, 0, len(norms))
			for k := range norms {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(out, "  %s: %s\n", k, norms[k])
			}
			if len(rules) == 0 {
				fmt.Fprintln(out, "No clothing restrictions.")
			}
			for _, r := range rules {
				fmt.Fprintf(out, "Avoid %s [%s]: %s\n", r.Tag, r.Level, r.Reason)
			}
			for _, f := range festivals {
				fmt.Fprintf(out, "Festival: %s (%s)\n", f.Name, f.When)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&activity, "activity", models.ActivityGeneral, "general, beach, hiking, business, religious_sites, wedding or sightseeing")
	cmd.Flags().StringVar(&month, "month", "", "travel month to list festivals for")
	cmd.Flags().IntVar(&year, "year", 0, "travel year (default current)")
	return cmd
}

func activityOrGeneral(a string) string {
	if a == "" {
		return models.ActivityGeneral
	}
	return a
}

func newClimateCmd(opts *rootOptions) *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "climate <city>",
		Short: "Show monthly climate for a city",
		Long: `Show monthly climate for a city. Built-in cities answer offline;
others are scraped from Wikipedia and cached by the configured backend.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var focus time.Month
			if month != "" {
				m, ok := intent.ParseMonth(month)
				if !ok {
					return fmt.Errorf("invalid month %q", month)
				}
				focus = m
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			a, err := buildApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			rec, err := a.Climates.GetClimate(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.jsonOut {
				return writeJSON(out, rec)
			}
			fmt.Fprintf(out, "%s (source: %s)\n", rec.City, rec.Source)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MONTH\tHIGH\tLOW\tPRECIP\tBAND")
			for _, m := range rec.Months {
				if focus != 0 && m.Month != focus {
					continue
				}
				band, _ := climate.Band(rec, m.Month)
				fmt.Fprintf(tw, "%s\t%.1f\t%.1f\t%.0f\t%s\n", m.Month, m.HighC, m.LowC, m.PrecipitationMM, band)
			}
			_ = tw.Flush()
			if focus != 0 {
				fmt.Fprintln(out, climate.Summary(rec, focus))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "show a single month")
	return cmd
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
