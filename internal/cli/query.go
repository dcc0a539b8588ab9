package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/engramdb/engram/internal/coordinator"
)

func init() {
	cmd := &cobra.Command{
		Use:   "query [text]",
		Short: "Search memories across tiers",
		Long:  "Hybrid semantic and keyword search over memory, served from the semantic cache when possible.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runQuery,
	}

	cmd.Flags().StringP("owner", "o", "", "Owner id")
	cmd.Flags().StringP("session", "s", "", "Session id")
	cmd.Flags().Bool("stm", false, "Search short-term memory only")
	cmd.Flags().Bool("ltm", false, "Search long-term memory only")
	cmd.Flags().IntP("limit", "l", 10, "Max results")

	RootCmd.AddCommand(cmd)
}

func runQuery(cmd *cobra.Command, args []string) {
	owner, _ := cmd.Flags().GetString("owner")
	session, _ := cmd.Flags().GetString("session")
	stm, _ := cmd.Flags().GetBool("stm")
	ltm, _ := cmd.Flags().GetBool("ltm")
	limit, _ := cmd.Flags().GetInt("limit")

	c, s, err := openCoordinator()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	res, err := c.RouteQuery(cmd.Context(), coordinator.QueryParams{
		Query:      strings.Join(args, " "),
		Owner:      owner,
		SessionID:  session,
		IncludeSTM: stm,
		IncludeLTM: ltm,
		Limit:      limit,
	})
	if err != nil {
		exitErr("query", err)
	}

	if len(res.Hits) == 0 {
		fmt.Println("[]")
		return
	}
	b, _ := json.MarshalIndent(res.Hits, "", "  ")
	fmt.Println(string(b))
}
