package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/timelock/internal/model"
	"github.com/sandeepkv93/timelock/internal/reconcile"
	"github.com/sandeepkv93/timelock/internal/views"
)

func (a *app) diagCmd() *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "diag",
		Short: "Compare live reminders with the handles stored on each task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				live, err := rt.engine.ListAll(ctx)
				if err != nil {
					return err
				}
				list, err := rt.service.List(ctx, model.TaskFilter{})
				if err != nil {
					return err
				}
				md := views.DiagMarkdown(list, live, rt.engine.Permitted(), a.now())
				if !raw {
					md = views.RenderMarkdown(md)
				}
				fmt.Fprintln(cmd.OutOrStdout(), md)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print markdown without rendering")
	return cmd
}

func (a *app) sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Repair drift between stored reminder handles and the scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				report := rt.service.Sweep(ctx)
				printSweep(cmd, report)
				if len(report.Errors) > 0 {
					return fmt.Errorf("sweep finished with %d error(s)", len(report.Errors))
				}
				return nil
			})
		},
	}
}

func printSweep(cmd *cobra.Command, r reconcile.SweepReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "checked %d task(s) against %d live reminder(s)\n", r.Tasks, r.Live)
	if r.Clean() {
		fmt.Fprintln(out, "everything in sync")
		return
	}
	for _, h := range r.Orphans {
		fmt.Fprintf(out, "cancelled orphan %s\n", h)
	}
	if r.Pruned > 0 {
		fmt.Fprintf(out, "pruned %d fired reminder(s)\n", r.Pruned)
	}
	for _, id := range r.Repaired {
		fmt.Fprintf(out, "repaired task #%d\n", id)
	}
	for _, err := range r.Errors {
		fmt.Fprintf(out, "error: %v\n", err)
	}
}
