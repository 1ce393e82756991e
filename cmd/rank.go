package cmd

import (
	"github.com/spf13/cobra"

	"travel-package-scraper/models"
	"travel-package-scraper/services"
)

var (
	rankDestinations []string
	rankDays         int
	rankFlex         int
	rankBudget       float64
	rankInclude      []string
	rankTop          int
	rankInsights     bool
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank stored packages against a trip",
	Example: `  travel-scraper rank --dest Manali --dest Kasol --days 5 --budget 20000
  travel-scraper rank --dest Goa --include meals,flights --top 10 --insights`,
	RunE: runRank,
}

func init() {
	rankCmd.Flags().StringSliceVarP(&rankDestinations, "dest", "d", nil, "destination (repeatable or comma separated)")
	rankCmd.Flags().IntVar(&rankDays, "days", 0, "trip length in days")
	rankCmd.Flags().IntVar(&rankFlex, "flex", models.DefaultFlexibilityDays, "accepted +/- days around --days")
	rankCmd.Flags().Float64Var(&rankBudget, "budget", 0, "budget per person in INR")
	rankCmd.Flags().StringSliceVar(&rankInclude, "include", nil, "must-include inclusions, e.g. meals,flights")
	rankCmd.Flags().IntVarP(&rankTop, "top", "n", services.DefaultMaxResults, "results to show")
	rankCmd.Flags().BoolVar(&rankInsights, "insights", false, "print catalog insights for the candidate set")
	rootCmd.AddCommand(rankCmd)
}

func runRank(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	store, err := openPostgres(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	intent := models.NewIntent(rankDestinations,
		models.WithDuration(rankDays),
		models.WithFlexibility(rankFlex),
		models.WithBudget(rankBudget),
		models.WithMustInclude(rankInclude...),
	)

	matcher := services.NewCandidateService(store, services.NewRanker(cfg.Weights, logger), logger)
	result, candidates, err := matcher.Match(ctx, intent, rankTop)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if rankInsights {
		services.PrintInsightReport(out, services.NewInsightService(logger).Generate(candidates))
	}
	services.PrintRankResult(out, result)
	return nil
}
