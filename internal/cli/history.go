package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/insight-sync/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the current conversation's messages and committed insights",
		Run:   runHistory,
	}

	cmd.Flags().Bool("all", false, "List every committed insight version, superseded ones included (local backend)")

	RootCmd.AddCommand(cmd)
}

// versionedStore is implemented by backends that keep superseded insights.
type versionedStore interface {
	InsightHistory(ctx context.Context, id string) ([]model.Insight, error)
}

func runHistory(cmd *cobra.Command, args []string) {
	all, _ := cmd.Flags().GetBool("all")

	c, err := openClient()
	if err != nil {
		exitErr("open", err)
	}
	defer c.Close()

	id, err := c.resume(cmd.Context())
	if err != nil {
		exitErr("resume session", err)
	}

	if all {
		vs, ok := c.backend.(versionedStore)
		if !ok {
			exitErr("history", fmt.Errorf("--all needs the local backend"))
		}
		insights, err := vs.InsightHistory(cmd.Context(), id)
		if err != nil {
			exitErr("history", err)
		}
		if formatFlag == "text" {
			fmt.Println(headerStyle.Render("Session " + id))
			fmt.Print(renderVersions(insights))
			return
		}
		if insights == nil {
			insights = []model.Insight{}
		}
		printJSON(insights)
		return
	}

	profile, err := c.engine.History(cmd.Context())
	if err != nil {
		exitErr("history", err)
	}

	if formatFlag == "text" {
		fmt.Print(renderProfile(profile))
		return
	}
	printJSON(profile)
}
