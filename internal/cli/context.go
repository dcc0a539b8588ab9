package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "context [session]",
		Short: "Render prompt context for a session",
		Long:  "Print the recent transcript tail plus the latest episodic summaries, ready to paste into a prompt.",
		Args:  cobra.ExactArgs(1),
		Run:   runContext,
	}
	cmd.Flags().StringP("owner", "o", "", "Owner id")
	RootCmd.AddCommand(cmd)
}

func runContext(cmd *cobra.Command, args []string) {
	owner, _ := cmd.Flags().GetString("owner")

	c, s, err := openCoordinator()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	text, err := c.GetWorkingMemoryContext(cmd.Context(), owner, args[0])
	if err != nil {
		exitErr("context", err)
	}
	fmt.Print(text)
}
