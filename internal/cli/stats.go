package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show local database statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		exitErr("config", err)
	}
	s, err := openSQLite(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	stats, err := s.Stats(cmd.Context())
	if err != nil {
		exitErr("stats", err)
	}

	if formatFlag == "text" {
		fmt.Println(headerStyle.Render("Database " + stats.DBPath))
		fmt.Printf("Size:      %d bytes\n", stats.DBSizeBytes)
		fmt.Printf("Sessions:  %d live / %d total\n", stats.LiveSessions, stats.TotalSessions)
		fmt.Printf("Insights:  %d active / %d total\n", stats.ActiveInsights, stats.TotalInsights)
		fmt.Printf("Messages:  %d\n", stats.TotalMessages)
		for _, c := range stats.Categories {
			fmt.Printf("  %-24s %d insights in %d sessions\n", categoryStyle.Render(c.Category), c.Count, c.Sessions)
		}
		return
	}
	printJSON(stats)
}
