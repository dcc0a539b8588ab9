package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get [id]",
		Short: "Fetch a memory by id",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}
	RootCmd.AddCommand(cmd)

	rm := &cobra.Command{
		Use:   "rm [id]",
		Short: "Delete a memory",
		Args:  cobra.ExactArgs(1),
		Run:   runRm,
	}
	RootCmd.AddCommand(rm)
}

func runGet(cmd *cobra.Command, args []string) {
	c, s, err := openCoordinator()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	rec, err := c.Get(cmd.Context(), args[0])
	if err != nil {
		exitErr("get", err)
	}
	b, _ := json.MarshalIndent(rec, "", "  ")
	fmt.Println(string(b))
}

func runRm(cmd *cobra.Command, args []string) {
	c, s, err := openCoordinator()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	ok, err := c.Delete(cmd.Context(), args[0])
	if err != nil {
		exitErr("rm", err)
	}
	if !ok {
		fmt.Println("not found")
		return
	}
	fmt.Println("deleted")
}
