package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/insight-sync/internal/config"
	"github.com/rcliao/insight-sync/internal/model"
	"github.com/rcliao/insight-sync/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List live sessions",
		Run:   runSessions,
	}
	cmd.Flags().IntP("limit", "l", 0, "Max sessions to list (0 = all)")

	rm := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a session on the server",
		Args:  cobra.ExactArgs(1),
		Run:   runSessionsRm,
	}
	cmd.AddCommand(rm)

	RootCmd.AddCommand(cmd)
}

func runSessions(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	cfg, err := loadConfig()
	if err != nil {
		exitErr("config", err)
	}
	s, err := openBackend(cfg)
	if err != nil {
		exitErr("open backend", err)
	}
	defer s.Close()

	sessions, err := s.ListSessions(cmd.Context(), store.ListSessionsParams{Limit: limit})
	if err != nil {
		exitErr("list sessions", err)
	}

	if formatFlag == "text" {
		st, _ := config.LoadState(config.StatePath())
		current := ""
		if st != nil {
			current = st.SessionID
		}
		fmt.Print(renderSessions(sessions, current))
		return
	}
	if sessions == nil {
		sessions = []model.SessionInfo{}
	}
	printJSON(sessions)
}

func runSessionsRm(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		exitErr("config", err)
	}
	s, err := openBackend(cfg)
	if err != nil {
		exitErr("open backend", err)
	}
	defer s.Close()

	if err := s.DeleteSession(cmd.Context(), args[0]); err != nil {
		exitErr("delete session", err)
	}

	if formatFlag == "text" {
		fmt.Printf("Deleted %s\n", args[0])
		return
	}
	printJSON(map[string]any{"deleted": true, "id": args[0]})
}
