package main

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/jonathan/article-archiver/internal/logger"
	"github.com/jonathan/article-archiver/internal/observability"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored articles, newest first",
	RunE:  runList,
}

var listJSON bool

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print articles as JSON")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
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

	articles, err := st.List(ctx)
	if err != nil {
		return err
	}

	if listJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(articles)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintArticles(articles)
	return nil
}
