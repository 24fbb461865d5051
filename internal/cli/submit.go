package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/insight-sync/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "submit [text]",
		Short: "Commit preference insights to the current session",
		Long: "Commit a free-text insight and/or structured field values to the current session.\n" +
			"Fields take the form key=value[:PRIORITY], e.g. --field location=Zurich,Bern:MUST\n" +
			"or --field price=2000-3500. Without a per-field priority --priority applies.",
		Run: runSubmit,
	}

	cmd.Flags().StringArray("field", nil, "Field value key=value[:PRIORITY] (repeatable)")
	cmd.Flags().StringP("priority", "p", string(model.PriorityImportant), "Priority: MUST, IMPORTANT, NICE_TO_HAVE")
	cmd.Flags().String("category", "", "Category for the free-text insight")
	cmd.Flags().String("source", string(model.SourceRegularChat), "Source: regular_chat, filter_panel, onboarding")

	RootCmd.AddCommand(cmd)
}

func runSubmit(cmd *cobra.Command, args []string) {
	fields, _ := cmd.Flags().GetStringArray("field")
	priorityStr, _ := cmd.Flags().GetString("priority")
	category, _ := cmd.Flags().GetString("category")
	source, _ := cmd.Flags().GetString("source")

	priority, ok := model.ParsePriority(priorityStr)
	if !ok {
		exitErr("submit", fmt.Errorf("invalid priority %q (valid: MUST, IMPORTANT, NICE_TO_HAVE)", priorityStr))
	}

	var explicit []model.Insight
	if text := strings.Join(args, " "); strings.TrimSpace(text) != "" {
		in, _ := model.NewTextInsight(text, priority, category, model.OriginUser)
		explicit = append(explicit, in)
	}

	c, err := openClient()
	if err != nil {
		exitErr("open", err)
	}
	defer c.Close()

	if _, err := c.resume(cmd.Context()); err != nil {
		exitErr("resume session", err)
	}

	for _, f := range fields {
		key, value, p, err := parseField(f, priority)
		if err != nil {
			exitErr("submit", err)
		}
		if err := c.engine.SetOverlayField(key, value, p, ""); err != nil {
			exitErr("submit", err)
		}
	}

	committed, err := c.engine.SubmitInsights(cmd.Context(), explicit, model.SourceType(source))
	if err != nil {
		exitErr(fmt.Sprintf("submit (%s)", c.engine.Phase()), err)
	}

	if formatFlag == "text" {
		if len(committed) == 0 {
			fmt.Println("Nothing to submit.")
			return
		}
		fmt.Println(headerStyle.Render("Session " + c.engine.SessionID()))
		fmt.Print(renderInsights(committed))
		return
	}
	if committed == nil {
		committed = []model.Insight{}
	}
	printJSON(committed)
}

// parseField splits key=value[:PRIORITY]. A trailing segment that is not a
// priority stays part of the value.
func parseField(s string, def model.Priority) (key, value string, p model.Priority, err error) {
	key, value, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", "", fmt.Errorf("invalid field %q (want key=value[:PRIORITY])", s)
	}
	p = def
	if i := strings.LastIndex(value, ":"); i >= 0 {
		if parsed, ok := model.ParsePriority(value[i+1:]); ok {
			value, p = value[:i], parsed
		}
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", "", "", fmt.Errorf("field %q has no value", key)
	}
	return key, value, p, nil
}
