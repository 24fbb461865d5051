package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Start a new conversation",
		Long:  "Discard the remembered session and its pending insights and create a fresh one.",
		Run:   runNew,
	}

	RootCmd.AddCommand(cmd)
}

func runNew(cmd *cobra.Command, args []string) {
	c, err := openClient()
	if err != nil {
		exitErr("open", err)
	}
	defer c.Close()

	id, err := c.engine.NewConversation(cmd.Context())
	if err != nil {
		exitErr("new conversation", err)
	}

	if formatFlag == "text" {
		fmt.Println(headerStyle.Render("Session " + id))
		return
	}
	printJSON(map[string]string{"session_id": id})
}
