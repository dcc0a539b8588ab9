package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/engramdb/engram/internal/model"
	"github.com/engramdb/engram/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List memories by owner or type",
		Run:   runList,
	}

	cmd.Flags().StringP("owner", "o", "", "Owner id")
	cmd.Flags().StringP("type", "t", "", "Memory type")
	cmd.Flags().String("tier", "", "Tier: stm or ltm")
	cmd.Flags().IntP("limit", "l", 20, "Max results")
	cmd.Flags().Bool("shared", true, "Include shared records")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	owner, _ := cmd.Flags().GetString("owner")
	memType, _ := cmd.Flags().GetString("type")
	tier, _ := cmd.Flags().GetString("tier")
	limit, _ := cmd.Flags().GetInt("limit")
	shared, _ := cmd.Flags().GetBool("shared")

	c, s, err := openCoordinator()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	var recs []model.Record
	if memType != "" {
		recs, err = c.FindByType(cmd.Context(), store.FindByTypeParams{
			Type:          model.Type(memType),
			Owner:         owner,
			Limit:         limit,
			IncludeShared: shared,
		})
	} else {
		recs, err = s.FindByUser(cmd.Context(), store.FindByUserParams{
			Owner:         owner,
			Tier:          model.Tier(tier),
			IncludeShared: shared,
			Limit:         limit,
		})
	}
	if err != nil {
		exitErr("list", err)
	}

	if len(recs) == 0 {
		fmt.Println("[]")
		return
	}
	b, _ := json.MarshalIndent(recs, "", "  ")
	fmt.Println(string(b))
}
