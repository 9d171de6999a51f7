package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/timelock/internal/config"
	"github.com/sandeepkv93/timelock/internal/notify"
	"github.com/sandeepkv93/timelock/internal/tui"
	"github.com/sandeepkv93/timelock/internal/watch"
)

func (a *app) watchCmd() *cobra.Command {
	var headless bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Deliver reminders as they come due, with a live countdown screen",
		Long: `watch runs the reminder scheduler. Reminders scheduled by other timelock
commands are picked up as soon as the database changes. Without --headless
an interactive screen shows every task's countdown and accepts commands such
as /add, /done, /snooze and /reschedule.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
			defer cancel()

			logPath := "-"
			if headless {
				logPath = ""
			}
			rt, err := a.open(ctx, logPath)
			if err != nil {
				return err
			}
			defer rt.Close()
			return a.runWatch(ctx, cmd, rt, headless)
		},
	}
	cmd.Flags().BoolVar(&headless, "headless", false, "deliver reminders without the interactive screen")
	return cmd
}

func (a *app) notifier(rt *runtime) notify.Notifier {
	n := rt.cfg.Notifications
	switch {
	case !n.Enabled:
		return notify.NoopNotifier{}
	case n.Desktop:
		return notify.ExecNotifier{}
	default:
		return notify.LogNotifier{Logger: rt.logger}
	}
}

func (a *app) runWatch(ctx context.Context, cmd *cobra.Command, rt *runtime, headless bool) error {
	cfg := rt.cfg
	policy := notify.Policy{
		Banner: cfg.Notifications.Enabled,
		Sound:  cfg.Notifications.Sound,
		Badge:  cfg.Notifications.Badge,
	}
	handler := notify.NewHandler(rt.repo, a.notifier(rt), policy,
		notify.WithLogger(rt.logger),
		notify.WithClock(func() time.Time { return a.now().UTC() }),
	)

	// repair drift left by earlier runs before anything fires
	report := rt.service.Sweep(ctx)
	if !report.Clean() {
		rt.logger.Printf("startup sweep: %d orphan(s), %d pruned, %d repaired, %d error(s)",
			len(report.Orphans), report.Pruned, len(report.Repaired), len(report.Errors))
	}
	rt.engine.Start()

	w, err := watch.New(cfg.Scheduler.ReloadDebounce, watch.WithLogger(rt.logger))
	if err != nil {
		return fmt.Errorf("start file watcher: %w", err)
	}
	defer w.Stop()
	if err := w.WatchFile(cfg.Database.Path); err != nil {
		return fmt.Errorf("watch %s: %w", cfg.Database.Path, err)
	}
	cfgPath := a.cfgPath
	if cfgPath == "" {
		cfgPath = config.DefaultPath()
	}
	if err := w.WatchFile(cfgPath); err != nil {
		rt.logger.Printf("warning: watch %s: %v", cfgPath, err)
	}
	w.Start()

	reloads := make(chan watch.Event, 1)
	go a.forwardReloads(ctx, rt, w, cfgPath, reloads)

	if headless {
		return a.runHeadless(ctx, cmd, rt, handler)
	}

	deliveries := make(chan notify.Delivery, cfg.Scheduler.Buffer)
	go handler.Run(ctx, rt.engine.C(), func(d notify.Delivery) {
		select {
		case deliveries <- d:
		default:
			rt.logger.Printf("warning: screen is behind, reminder %s not shown", d.Event.Handle)
		}
	})
	model := tui.NewModel(ctx, rt.service, tui.Options{
		Deliveries: deliveries,
		Reloads:    reloads,
		SweepEvery: cfg.Reminders.SweepInterval,
		Badge:      handler.Badge,
		ClearBadge: handler.ClearBadge,
		Now:        a.now,
		Location:   time.Local,
	})
	return tui.Run(ctx, model)
}

// forwardReloads re-reads the notification queue whenever the database
// changes so reminders scheduled by other processes are picked up.
func (a *app) forwardReloads(ctx context.Context, rt *runtime, w *watch.Watcher, cfgPath string, out chan<- watch.Event) {
	cfgAbs, _ := filepath.Abs(cfgPath)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			for _, p := range ev.Paths {
				if abs, _ := filepath.Abs(p); abs == cfgAbs {
					rt.logger.Printf("warning: %s changed, restart watch to apply it", cfgPath)
				}
			}
			if err := rt.engine.Reload(ctx); err != nil {
				rt.logger.Printf("warning: %v", err)
				continue
			}
			select {
			case out <- ev:
			default:
			}
		}
	}
}

func (a *app) runHeadless(ctx context.Context, cmd *cobra.Command, rt *runtime, handler *notify.Handler) error {
	fmt.Fprintf(cmd.OutOrStdout(), "watching %s, %d reminder(s) pending\n", rt.cfg.Database.Path, rt.engine.Pending())

	var ticker <-chan time.Time
	if every := rt.cfg.Reminders.SweepInterval; every > 0 {
		t := time.NewTicker(every)
		defer t.Stop()
		ticker = t.C
	}
	deliveries := make(chan notify.Delivery)
	go handler.Run(ctx, rt.engine.C(), func(d notify.Delivery) {
		select {
		case deliveries <- d:
		case <-ctx.Done():
		}
	})
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker:
			if report := rt.service.Sweep(ctx); !report.Clean() {
				printSweep(cmd, report)
			}
		case d := <-deliveries:
			switch {
			case d.Sent:
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", a.now().Format("15:04:05"), d.Notification.Title, d.Notification.Body)
			case d.Skipped != notify.SkipNone:
				fmt.Fprintf(cmd.OutOrStdout(), "%s skipped reminder for task #%d: %s\n", a.now().Format("15:04:05"), d.Event.Payload.TaskID, d.Skipped)
			}
		}
	}
}
