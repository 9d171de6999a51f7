package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/timelock/internal/commands"
	"github.com/sandeepkv93/timelock/internal/model"
	"github.com/sandeepkv93/timelock/internal/tasks"
	"github.com/sandeepkv93/timelock/internal/timemath"
	"github.com/sandeepkv93/timelock/internal/views"
)

func (a *app) withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *runtime) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := a.open(ctx, "")
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(raw, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func (a *app) addCmd() *cobra.Command {
	var due, remind, priority, desc string
	var category int64
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task and schedule its reminders",
		Example: `  timelock add "file taxes" --due 2026-04-15T17:00 --remind 1d,1h
  timelock add standup --due "in 2h" --priority high`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deadline, err := commands.ParseWhen(due, a.now())
			if err != nil {
				return fmt.Errorf("--due: %w", err)
			}
			p, err := model.ParsePriority(priority)
			if err != nil {
				return err
			}
			draft := model.Draft{
				Title:       strings.Join(args, " "),
				Description: desc,
				Priority:    p,
				Deadline:    deadline,
			}
			if cmd.Flags().Changed("remind") {
				if draft.ReminderOffsets, err = model.ParseOffsets(remind); err != nil {
					return fmt.Errorf("--remind: %w", err)
				}
			}
			if cmd.Flags().Changed("category") {
				draft.CategoryID = &category
			}
			return a.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				mut, err := rt.service.Create(ctx, draft)
				if err != nil {
					return err
				}
				a.printMutation(cmd.OutOrStdout(), "added", mut)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&due, "due", "", `deadline: RFC3339, "2006-01-02 15:04", "tomorrow 9:00" or "in 2h"`)
	cmd.Flags().StringVar(&remind, "remind", "", `reminder offsets, e.g. "1d,1h" or "none" (default from config)`)
	cmd.Flags().StringVarP(&priority, "priority", "p", "medium", "low, medium, high or urgent")
	cmd.Flags().StringVar(&desc, "desc", "", "description")
	cmd.Flags().Int64Var(&category, "category", 0, "category id")
	_ = cmd.MarkFlagRequired("due")
	return cmd
}

func (a *app) editCmd() *cobra.Command {
	var title, due, remind, priority, desc string
	var category int64
	var noCategory bool
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a task; reminders follow deadline and offset changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var patch model.Patch
			flags := cmd.Flags()
			if flags.Changed("title") {
				patch.Title = &title
			}
			if flags.Changed("desc") {
				patch.Description = &desc
			}
			if flags.Changed("priority") {
				p, err := model.ParsePriority(priority)
				if err != nil {
					return err
				}
				patch.Priority = &p
			}
			if flags.Changed("due") {
				deadline, err := commands.ParseWhen(due, a.now())
				if err != nil {
					return fmt.Errorf("--due: %w", err)
				}
				patch.Deadline = &deadline
			}
			if flags.Changed("remind") {
				offsets, err := model.ParseOffsets(remind)
				if err != nil {
					return fmt.Errorf("--remind: %w", err)
				}
				patch.ReminderOffsets = &offsets
			}
			if flags.Changed("category") {
				patch.CategoryID = &category
			}
			patch.ClearCategory = noCategory
			if patch.IsEmpty() {
				return fmt.Errorf("nothing to change, pass at least one flag")
			}
			return a.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				mut, err := rt.service.Update(ctx, id, patch)
				if err != nil {
					return err
				}
				a.printMutation(cmd.OutOrStdout(), "updated", mut)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&due, "due", "", "new deadline")
	cmd.Flags().StringVar(&remind, "remind", "", "new reminder offsets")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "new priority")
	cmd.Flags().StringVar(&desc, "desc", "", "new description")
	cmd.Flags().Int64Var(&category, "category", 0, "new category id")
	cmd.Flags().BoolVar(&noCategory, "no-category", false, "remove the category")
	return cmd
}

func (a *app) doneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Toggle completion; completing cancels every reminder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				mut, err := rt.service.ToggleCompletion(ctx, id)
				if err != nil {
					return err
				}
				verb := "reopened"
				if mut.Task.Completed {
					verb = "completed"
				}
				a.printMutation(cmd.OutOrStdout(), verb, mut)
				return nil
			})
		},
	}
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task and cancel its reminders",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				mut, err := rt.service.Delete(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted #%d %q, %d reminder(s) cancelled\n", mut.Task.ID, mut.Task.Title, len(mut.Outcome.Cancelled))
				return nil
			})
		},
	}
}

func (a *app) listCmd() *cobra.Command {
	var all bool
	var category int64
	var limit int
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show tasks with countdowns, urgency and progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter model.TaskFilter
			if !all {
				open := false
				filter.Completed = &open
			}
			if cmd.Flags().Changed("category") {
				filter.CategoryID = &category
			}
			filter.Limit = limit
			return a.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				list, err := rt.service.List(ctx, filter)
				if err != nil {
					return err
				}
				now := a.now()
				rows := make([]views.TaskRow, 0, len(list))
				deadlines := make([]timemath.Deadline, 0, len(list))
				for _, t := range list {
					rows = append(rows, views.RowFromTask(t, now, time.Local))
					deadlines = append(deadlines, timemath.Deadline{Deadline: t.Deadline, Completed: t.Completed})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, views.RenderTaskList(rows, 0))
				fmt.Fprintln(out)
				fmt.Fprintln(out, views.RenderSummary(timemath.Summarize(deadlines, now)))
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include completed tasks")
	cmd.Flags().Int64Var(&category, "category", 0, "only tasks in this category")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of tasks")
	return cmd
}

func (a *app) printMutation(w io.Writer, verb string, mut tasks.Mutation) {
	t := mut.Task
	remaining := timemath.ComputeRemaining(t.Deadline, a.now())
	fmt.Fprintf(w, "%s #%d %q due %s (%s)\n", verb, t.ID, t.Title,
		t.Deadline.In(time.Local).Format("Mon Jan 2 15:04"), timemath.FormatRemaining(remaining, true))
	for _, rem := range t.ScheduledReminders {
		fmt.Fprintf(w, "  reminder %s at %s\n", offsetLabel(rem.OffsetMinutes), rem.TriggerAt.In(time.Local).Format("Mon Jan 2 15:04"))
	}
	for _, res := range mut.Outcome.Failed() {
		fmt.Fprintf(w, "  warning: reminder %s not scheduled: %v\n", offsetLabel(res.Trigger.OffsetMinutes), res.Err)
	}
	if n := len(mut.Outcome.CancelErrors); n > 0 {
		fmt.Fprintf(w, "  warning: %d reminder(s) could not be cancelled\n", n)
	}
}

// offsetLabel spells out predefined offsets and keeps custom ones exact,
// since FormatOffset rounds to the largest unit.
func offsetLabel(minutes int) string {
	if model.IsPredefinedOffset(minutes) {
		return timemath.FormatOffset(minutes)
	}
	return fmt.Sprintf("%dm before due (custom)", minutes)
}
