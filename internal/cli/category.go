package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/timelock/internal/storage"
)

func (a *app) categoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "category",
		Short: "Manage task categories",
	}

	var color string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				c, err := rt.repo.CreateCategory(ctx, storage.Category{Name: args[0], Color: color})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added category #%d %s\n", c.ID, c.Name)
				return nil
			})
		},
	}
	add.Flags().StringVar(&color, "color", "", "display color, e.g. #ff8800")

	list := &cobra.Command{
		Use:   "list",
		Short: "List categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				cats, err := rt.repo.ListCategories(ctx, storage.CategoryListFilter{})
				if err != nil {
					return err
				}
				if len(cats) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "(no categories)")
				}
				for _, c := range cats {
					fmt.Fprintf(cmd.OutOrStdout(), "#%-3d %s %s\n", c.ID, c.Name, c.Color)
				}
				return nil
			})
		},
	}

	rm := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a category; its tasks keep their reminders and lose the category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				if err := rt.repo.DeleteCategory(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted category #%d\n", id)
				return nil
			})
		},
	}

	var name string
	edit := &cobra.Command{
		Use:   "edit <id>",
		Short: "Rename or recolor a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				c, err := rt.repo.GetCategory(ctx, id)
				if err != nil {
					return fmt.Errorf("category %d: %w", id, err)
				}
				if cmd.Flags().Changed("name") {
					c.Name = name
				}
				if cmd.Flags().Changed("color") {
					c.Color = color
				}
				if err := rt.repo.UpdateCategory(ctx, c); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "updated category #%d %s\n", c.ID, c.Name)
				return nil
			})
		},
	}
	edit.Flags().StringVar(&name, "name", "", "new name")
	edit.Flags().StringVar(&color, "color", "", "new color")

	cmd.AddCommand(add, edit, list, rm)
	return cmd
}
