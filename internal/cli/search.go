package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/insight-sync/internal/model"
	"github.com/rcliao/insight-sync/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search committed insights in the local database",
		Run:   runSearch,
	}

	cmd.Flags().StringP("session", "s", "", "Restrict to one session")
	cmd.Flags().String("category", "", "Filter by category")
	cmd.Flags().StringP("priority", "p", "", "Filter by priority")
	cmd.Flags().IntP("limit", "l", 20, "Max results")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	sessionID, _ := cmd.Flags().GetString("session")
	category, _ := cmd.Flags().GetString("category")
	priorityStr, _ := cmd.Flags().GetString("priority")
	limit, _ := cmd.Flags().GetInt("limit")

	var priority model.Priority
	if priorityStr != "" {
		p, ok := model.ParsePriority(priorityStr)
		if !ok {
			exitErr("search", fmt.Errorf("invalid priority %q", priorityStr))
		}
		priority = p
	}

	cfg, err := loadConfig()
	if err != nil {
		exitErr("config", err)
	}
	s, err := openSQLite(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	results, err := s.Search(cmd.Context(), store.SearchParams{
		Query:     strings.Join(args, " "),
		SessionID: sessionID,
		Category:  category,
		Priority:  priority,
		Limit:     limit,
	})
	if err != nil {
		exitErr("search", err)
	}

	if formatFlag == "text" {
		fmt.Print(renderInsights(results))
		return
	}
	if results == nil {
		results = []model.Insight{}
	}
	printJSON(results)
}
