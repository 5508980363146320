package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"liora/internal/encyclopedia"
)

func newInsightsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "insights",
		Short: "Print learning insights as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openLearning()
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(store.Insights())
		},
	}
}

func newWikiCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "wiki <query>",
		Short: "Search the encyclopedia",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			retriever := newRetriever()
			articles := retriever.Search(cmd.Context(), query, limit)
			if len(articles) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Nothing found for %q.\n", query)
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), encyclopedia.Format(articles, "about "+query))
			fmt.Fprint(cmd.OutOrStdout(), encyclopedia.FormatRelated(retriever.RelatedTopics(cmd.Context(), query)))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 3, "maximum number of articles")
	return cmd
}

func newRetriever() *encyclopedia.Retriever {
	wiki := encyclopedia.NewWikipedia(
		encyclopedia.WithRateLimit(cfg.WikiRatePerSecond),
		encyclopedia.WithWikipediaLogger(logger.Named("wikipedia")),
	)
	return encyclopedia.NewRetriever(wiki,
		encyclopedia.WithLanguage(cfg.WikiLanguage),
		encyclopedia.WithTimeout(cfg.WikiTimeout),
		encyclopedia.WithLogger(logger.Named("encyclopedia")),
	)
}
