package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show memory statistics by tier and type",
		Run:   runStats,
	}
	cmd.Flags().StringP("owner", "o", "", "Restrict to one owner")
	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	owner, _ := cmd.Flags().GetString("owner")

	c, s, err := openCoordinator()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	stats, err := c.GetStats(cmd.Context(), owner)
	if err != nil {
		exitErr("stats", err)
	}
	b, _ := json.MarshalIndent(stats, "", "  ")
	fmt.Println(string(b))
}
