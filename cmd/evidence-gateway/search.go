package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/evidencemed/evidence-gateway/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run a one-shot PubMed search from the command line",
	Long: `Search resolves a condition identifier (or free-text query) to a PubMed
search expression, runs the two-phase E-utilities flow, and prints the parsed
articles. Results are cached the same way the HTTP API caches them.`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().String("query", "", "free-text PubMed query")
	searchCmd.Flags().String("condition", "", "condition identifier (e.g. psoriasis, ibs)")
	searchCmd.Flags().Int("max-results", 0, "maximum number of results per page (default 20)")
	searchCmd.Flags().Int("page", 1, "result page, 1-based")
	searchCmd.Flags().Bool("json", false, "output the full response as JSON")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := loadGatewayConfig()

	svc, store, err := buildService(cfg, zap.NewNop().Sugar())
	if err != nil {
		return err
	}
	defer store.Close()

	query, _ := cmd.Flags().GetString("query")
	condition, _ := cmd.Flags().GetString("condition")
	maxResults, _ := cmd.Flags().GetInt("max-results")
	page, _ := cmd.Flags().GetInt("page")

	resp, err := svc.Search(cmd.Context(), types.SearchRequest{
		Query:      query,
		Condition:  condition,
		MaxResults: maxResults,
		Page:       page,
	})
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Printf("%d of %d results (page %d, %s)\n", len(resp.Articles), resp.TotalCount, resp.Page, cacheLabel(resp.Cached))
	fmt.Printf("query: %s\n\n", resp.Query)
	for i, a := range resp.Articles {
		fmt.Printf("%2d. [%s] %s\n", i+1, a.PMID, a.Title)
		if len(a.Authors) > 0 {
			fmt.Printf("    %s\n", strings.Join(a.Authors, ", "))
		}
		if a.Journal != "" || a.Year != "" {
			fmt.Printf("    %s %s\n", a.Journal, a.Year)
		}
	}
	return nil
}

func cacheLabel(cached bool) string {
	if cached {
		return "cached"
	}
	return "fresh"
}
