package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/insight-sync/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "say [text]",
		Short: "Add a chat message to the current conversation",
		Long:  "Add a chat message. Content can be a positional arg or piped via stdin.",
		Run:   runSay,
	}

	cmd.Flags().StringP("role", "r", "user", "Message role: user or assistant")

	RootCmd.AddCommand(cmd)
}

func runSay(cmd *cobra.Command, args []string) {
	role, _ := cmd.Flags().GetString("role")

	// Get content: positional arg first, then check stdin
	var content string
	if len(args) > 0 {
		content = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			content = string(b)
		}
	}

	if strings.TrimSpace(content) == "" {
		exitErr("say", fmt.Errorf("content is required (positional arg or stdin)"))
	}

	c, err := openClient()
	if err != nil {
		exitErr("open", err)
	}
	defer c.Close()

	id, err := c.resume(cmd.Context())
	if err != nil {
		exitErr("resume session", err)
	}

	msg, err := c.backend.AddMessage(cmd.Context(), store.MessageParams{
		SessionID: id,
		Role:      role,
		Content:   strings.TrimSpace(content),
	})
	if err != nil {
		exitErr("say", err)
	}

	if formatFlag == "text" {
		fmt.Printf("%s %s: %s\n", dateStyle.Render(msg.CreatedAt.Local().Format(timeLayout)), msg.Role, msg.Content)
		return
	}
	printJSON(msg)
}
