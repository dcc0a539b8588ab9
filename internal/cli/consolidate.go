package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "consolidate [id...]",
		Short: "Roll episodes into a summary",
		Long:  "Link a set of episodic conversations to one summary record. Sources stay readable but drop out of retrieval.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runConsolidate,
	}

	cmd.Flags().StringP("summary", "s", "", "Summary text (required)")
	cmd.Flags().StringP("owner", "o", "", "Owner id")
	cmd.MarkFlagRequired("summary")

	RootCmd.AddCommand(cmd)
}

func runConsolidate(cmd *cobra.Command, args []string) {
	summary, _ := cmd.Flags().GetString("summary")
	owner, _ := cmd.Flags().GetString("owner")

	c, s, err := openCoordinator()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	id, err := c.Consolidate(cmd.Context(), args, summary, owner)
	if err != nil {
		exitErr("consolidate", err)
	}
	fmt.Println(id)
}
