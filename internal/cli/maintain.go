package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "maintain",
		Short: "Run the maintenance sweep",
		Long:  "Clean expired short-term records, recompute decay scores, and report consolidation candidates.",
		Run:   runMaintain,
	}
	cmd.Flags().StringP("owner", "o", "", "Restrict to one owner")
	RootCmd.AddCommand(cmd)
}

func runMaintain(cmd *cobra.Command, args []string) {
	owner, _ := cmd.Flags().GetString("owner")

	c, s, err := openCoordinator()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	report, err := c.RunMaintenance(cmd.Context(), owner)
	if err != nil {
		exitErr("maintain", err)
	}
	b, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(b))
}
