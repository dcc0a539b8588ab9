package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/engramdb/engram/internal/coordinator"
)

func init() {
	cmd := &cobra.Command{
		Use:   "add [content]",
		Short: "Add a turn to working memory",
		Long:  "Store a conversation turn in short-term working memory. It expires automatically unless promoted.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAdd,
	}

	cmd.Flags().StringP("role", "r", "user", "Speaker role (user, assistant, system)")
	cmd.Flags().StringP("session", "s", "", "Session id")
	cmd.Flags().StringP("owner", "o", "", "Owner id")
	cmd.Flags().String("conversation", "", "Conversation id")
	cmd.Flags().Float64P("importance", "i", 0, "Importance 0..1 (default 0.5)")

	RootCmd.AddCommand(cmd)
}

func runAdd(cmd *cobra.Command, args []string) {
	role, _ := cmd.Flags().GetString("role")
	session, _ := cmd.Flags().GetString("session")
	owner, _ := cmd.Flags().GetString("owner")
	conversation, _ := cmd.Flags().GetString("conversation")
	importance, _ := cmd.Flags().GetFloat64("importance")

	c, s, err := openCoordinator()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	id, err := c.AddToWorkingMemory(cmd.Context(), coordinator.WorkingParams{
		Content:        strings.Join(args, " "),
		Role:           role,
		Owner:          owner,
		SessionID:      session,
		ConversationID: conversation,
		Importance:     importance,
	})
	if err != nil {
		exitErr("add", err)
	}
	fmt.Println(id)
}
