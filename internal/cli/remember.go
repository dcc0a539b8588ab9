package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/engramdb/engram/internal/coordinator"
)

func init() {
	remember := &cobra.Command{
		Use:   "remember [id]",
		Short: "Pin a memory as important",
		Long:  "Raise a memory's importance to 0.9 so decay barely touches it.",
		Args:  cobra.ExactArgs(1),
		Run:   runRemember,
	}
	RootCmd.AddCommand(remember)

	learn := &cobra.Command{
		Use:   "learn [content]",
		Short: "Store a fact in long-term memory",
		Args:  cobra.MinimumNArgs(1),
		Run:   runLearn,
	}
	learn.Flags().StringP("owner", "o", "", "Owner id")
	learn.Flags().Bool("shared", false, "Visible to everyone")
	learn.Flags().Float64P("importance", "i", 0, "Importance 0..1 (default 0.7)")
	learn.Flags().String("source", "", "Id of the memory this fact came from")
	RootCmd.AddCommand(learn)

	entity := &cobra.Command{
		Use:   "entity [name] [description]",
		Short: "Create or update a shared entity profile",
		Args:  cobra.MinimumNArgs(2),
		Run:   runEntity,
	}
	entity.Flags().StringP("type", "t", "", "Entity type (person, place, pet)")
	RootCmd.AddCommand(entity)
}

func runRemember(cmd *cobra.Command, args []string) {
	c, s, err := openCoordinator()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if err := c.MarkImportant(cmd.Context(), args[0]); err != nil {
		exitErr("remember", err)
	}
	fmt.Println("pinned")
}

func runLearn(cmd *cobra.Command, args []string) {
	owner, _ := cmd.Flags().GetString("owner")
	shared, _ := cmd.Flags().GetBool("shared")
	importance, _ := cmd.Flags().GetFloat64("importance")
	source, _ := cmd.Flags().GetString("source")

	c, s, err := openCoordinator()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	id, err := c.StoreKnowledge(cmd.Context(), coordinator.KnowledgeParams{
		Content:    strings.Join(args, " "),
		Owner:      owner,
		Shared:     shared,
		SourceID:   source,
		Importance: importance,
	})
	if err != nil {
		exitErr("learn", err)
	}
	fmt.Println(id)
}

func runEntity(cmd *cobra.Command, args []string) {
	entityType, _ := cmd.Flags().GetString("type")

	c, s, err := openCoordinator()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	id, err := c.UpsertEntity(cmd.Context(), coordinator.EntityParams{
		Name:       args[0],
		EntityType: entityType,
		Context:    strings.Join(args[1:], " "),
	})
	if err != nil {
		exitErr("entity", err)
	}
	fmt.Println(id)
}
