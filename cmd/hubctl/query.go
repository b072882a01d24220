package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"analyticshub/internal/analytics"
)

// queryFunc runs one router query and returns its tagged result.
type queryFunc func(ctx context.Context, r *analytics.Router, start, end string, limit int) any

type queryCommand struct {
	use   string
	short string
	limit bool
	run   queryFunc
}

var queryCommands = []queryCommand{
	{"daily", "Daily site-wide traffic", true, func(ctx context.Context, r *analytics.Router, s, e string, n int) any {
		return r.DailyMetrics(ctx, s, e, n)
	}},
	{"pages", "Traffic per page path", true, func(ctx context.Context, r *analytics.Router, s, e string, n int) any {
		return r.PageViews(ctx, s, e, n)
	}},
	{"sources", "Traffic per source and medium", true, func(ctx context.Context, r *analytics.Router, s, e string, n int) any {
		return r.TrafficSources(ctx, s, e, n)
	}},
	{"devices", "Traffic per device category", true, func(ctx context.Context, r *analytics.Router, s, e string, n int) any {
		return r.DeviceBreakdown(ctx, s, e, n)
	}},
	{"geo", "Traffic per country and city", true, func(ctx context.Context, r *analytics.Router, s, e string, n int) any {
		return r.Geographic(ctx, s, e, n)
	}},
	{"top-pages", "Most viewed pages", true, func(ctx context.Context, r *analytics.Router, s, e string, n int) any {
		return r.TopPages(ctx, s, e, n)
	}},
	{"top-referrers", "Sources sending the most sessions, direct traffic excluded", true, func(ctx context.Context, r *analytics.Router, s, e string, n int) any {
		return r.TopReferrers(ctx, s, e, n)
	}},
	{"summary", "Site-wide totals", false, func(ctx context.Context, r *analytics.Router, s, e string, _ int) any {
		return r.Summary(ctx, s, e)
	}},
	{"comparison", "Site-wide totals against the preceding period", false, func(ctx context.Context, r *analytics.Router, s, e string, _ int) any {
		return r.SummaryComparison(ctx, s, e)
	}},
}

func newQueryCmd(q queryCommand) *cobra.Command {
	var start, end string
	var limit int

	cmd := &cobra.Command{
		Use:   q.use,
		Short: q.short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			d, err := buildDeps(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			if _, err := d.Router.ParseRange(start, end); err != nil {
				return err
			}
			return render(os.Stdout, os.Stderr, globalFlags.Format, q.run(ctx, d.Router, start, end, limit))
		},
	}

	cmd.Flags().StringVar(&start, "start", "30daysAgo", "first day of the range")
	cmd.Flags().StringVar(&end, "end", "yesterday", "last day of the range")
	if q.limit {
		cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of rows (0 for the default)")
	}
	return cmd
}

func newStrategyCmd() *cobra.Command {
	var start, end string

	cmd := &cobra.Command{
		Use:   "strategy",
		Short: "Show which sources a range would be served from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			d, err := buildDeps(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			decision, err := d.Router.Resolve(ctx, start, end)
			if err != nil {
				return err
			}
			return render(os.Stdout, os.Stderr, globalFlags.Format, newStrategyView(decision, d.Router.Cutover()))
		},
	}

	cmd.Flags().StringVar(&start, "start", "30daysAgo", "first day of the range")
	cmd.Flags().StringVar(&end, "end", "yesterday", "last day of the range")
	return cmd
}

func init() {
	for _, q := range queryCommands {
		rootCmd.AddCommand(newQueryCmd(q))
	}
	rootCmd.AddCommand(newStrategyCmd())
}
