package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/engramdb/engram/internal/model"
)

func init() {
	promote := &cobra.Command{
		Use:   "promote [id]",
		Short: "Promote a short-term memory to long-term",
		Long:  "Copy a short-term record into long-term memory. Promoting the same record twice is an error, not a duplicate.",
		Args:  cobra.ExactArgs(1),
		Run:   runPromote,
	}
	promote.Flags().StringP("type", "t", "", "Target long-term type (default episodic_conversation)")
	RootCmd.AddCommand(promote)

	auto := &cobra.Command{
		Use:   "autopromote [session]",
		Short: "Promote every important turn in a session",
		Args:  cobra.ExactArgs(1),
		Run:   runAutoPromote,
	}
	auto.Flags().Float64P("threshold", "t", 0, "Importance threshold (default 0.7)")
	RootCmd.AddCommand(auto)
}

func runPromote(cmd *cobra.Command, args []string) {
	targetType, _ := cmd.Flags().GetString("type")

	c, s, err := openCoordinator()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	id, err := c.PromoteToLTM(cmd.Context(), args[0], model.Type(targetType))
	if err != nil {
		exitErr("promote", err)
	}
	fmt.Println(id)
}

func runAutoPromote(cmd *cobra.Command, args []string) {
	threshold, _ := cmd.Flags().GetFloat64("threshold")

	c, s, err := openCoordinator()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	ids, err := c.AutoPromoteSession(cmd.Context(), args[0], threshold)
	if err != nil {
		exitErr("autopromote", err)
	}
	if len(ids) == 0 {
		fmt.Println("[]")
		return
	}
	b, _ := json.MarshalIndent(ids, "", "  ")
	fmt.Println(string(b))
}
