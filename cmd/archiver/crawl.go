package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jonathan/article-archiver/internal/logger"
	"github.com/jonathan/article-archiver/internal/observability"
	"github.com/jonathan/article-archiver/internal/pipeline"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Run one crawl and store new articles",
	Long: `Search tvpworld.com for a keyword, keep results published between
--start and --end (day.month.year), and store every article not seen before.

Unparseable dates fall back to the window 01.01.2020 to today.`,
	RunE: runCrawl,
}

var (
	crawlKeyword string
	crawlStart   string
	crawlEnd     string
	crawlJSON    bool
	crawlQuiet   bool
)

func init() {
	crawlCmd.Flags().StringVarP(&crawlKeyword, "keyword", "k", pipeline.DefaultKeyword, "Search keyword")
	crawlCmd.Flags().StringVar(&crawlStart, "start", pipeline.DefaultStartDate, "Window start (dd.mm.yyyy)")
	crawlCmd.Flags().StringVar(&crawlEnd, "end", pipeline.DefaultEndDate, "Window end (dd.mm.yyyy)")
	crawlCmd.Flags().BoolVar(&crawlJSON, "json", false, "Print the result as JSON instead of a summary")
	crawlCmd.Flags().BoolVarP(&crawlQuiet, "quiet", "q", false, "Do not print progress")
	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			a.log.Warn("failed to close store", logger.Error(err))
		}
	}()

	opts, err := a.runnerOptions(st, nil)
	if err != nil {
		return err
	}
	if !crawlQuiet {
		opts.OnProgress = progressPrinter(cmd.ErrOrStderr())
	}

	res := pipeline.NewRunner(opts).Run(ctx, pipeline.Request{
		Keyword:   crawlKeyword,
		StartDate: crawlStart,
		EndDate:   crawlEnd,
	})

	if err := printResult(cmd.OutOrStdout(), &res, crawlJSON); err != nil {
		return err
	}
	if res.Status == pipeline.StatusError {
		return fmt.Errorf("run failed: %s", res.Message)
	}
	return nil
}

func progressPrinter(w io.Writer) pipeline.ProgressCallback {
	return func(e pipeline.ProgressEvent) {
		if e.Link != "" {
			fmt.Fprintf(w, "[%s] %s (%s)\n", e.Step, e.Message, e.Link)
			return
		}
		fmt.Fprintf(w, "[%s] %s\n", e.Step, e.Message)
	}
}

func printResult(w io.Writer, res *pipeline.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	observability.NewPrinter(w).PrintRunSummary(res)
	return nil
}
