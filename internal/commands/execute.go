package commands

import "fmt"

type Result struct {
	Message string
}

type Handlers struct {
	Add        func(AddArgs) (Result, error)
	Done       func(TargetArgs) (Result, error)
	Delete     func(TargetArgs) (Result, error)
	Snooze     func(SnoozeArgs) (Result, error)
	Reschedule func(RescheduleArgs) (Result, error)
	Sweep      func() (Result, error)
}

func missing(name string) error {
	return &CommandError{Code: ErrCodeHandlerMissing, Message: name + " handler not configured"}
}

func Execute(cmd Command, handlers Handlers) (Result, error) {
	switch cmd.Type {
	case TypeAdd:
		if handlers.Add == nil {
			return Result{}, missing("add")
		}
		return handlers.Add(*cmd.Add)
	case TypeDone:
		if handlers.Done == nil {
			return Result{}, missing("done")
		}
		return handlers.Done(*cmd.Target)
	case TypeDelete:
		if handlers.Delete == nil {
			return Result{}, missing("delete")
		}
		return handlers.Delete(*cmd.Target)
	case TypeSnooze:
		if handlers.Snooze == nil {
			return Result{}, missing("snooze")
		}
		return handlers.Snooze(*cmd.Snooze)
	case TypeReschedule:
		if handlers.Reschedule == nil {
			return Result{}, missing("reschedule")
		}
		return handlers.Reschedule(*cmd.Reschedule)
	case TypeSweep:
		if handlers.Sweep == nil {
			return Result{}, missing("sweep")
		}
		return handlers.Sweep()
	default:
		return Result{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unknown command type: %s", cmd.Type)}
	}
}
