package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sandeepkv93/timelock/internal/model"
)

type Type string

const (
	TypeAdd        Type = "add"
	TypeDone       Type = "done"
	TypeDelete     Type = "delete"
	TypeSnooze     Type = "snooze"
	TypeReschedule Type = "reschedule"
	TypeSweep      Type = "sweep"
)

type ErrorCode string

const (
	ErrCodeEmptyInput      ErrorCode = "empty_input"
	ErrCodeUnknownCommand  ErrorCode = "unknown_command"
	ErrCodeInvalidArgument ErrorCode = "invalid_argument"
	ErrCodeHandlerMissing  ErrorCode = "handler_missing"
)

type CommandError struct {
	Code    ErrorCode
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func invalid(format string, args ...any) error {
	return &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// AddArgs.When is kept raw; resolve it with ParseWhen against the current
// time. A nil Offsets means the default reminder policy.
type AddArgs struct {
	Title    string
	When     string
	Priority model.Priority
	Offsets  model.Offsets
}

type TargetArgs struct {
	ID int64
}

type SnoozeArgs struct {
	ID  int64
	For string
}

type RescheduleArgs struct {
	ID   int64
	When string
}

type Command struct {
	Type       Type
	Raw        string
	Add        *AddArgs
	Target     *TargetArgs
	Snooze     *SnoozeArgs
	Reschedule *RescheduleArgs
}

// Parse reads one palette line such as
//
//	/add file taxes in 2h remind:30m,1d p:high
//	/done 3
//	/snooze 3 1h
//	/reschedule 3 2026-01-02 15:04
func Parse(input string) (Command, error) {
	raw := strings.TrimSpace(input)
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "/"))
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}

	parts := strings.Fields(raw)
	head := strings.ToLower(parts[0])
	args := parts[1:]

	switch Type(head) {
	case TypeAdd:
		return parseAdd(input, args)
	case TypeDone, TypeDelete:
		return parseTarget(input, Type(head), args)
	case "rm":
		return parseTarget(input, TypeDelete, args)
	case TypeSnooze:
		return parseSnooze(input, args)
	case TypeReschedule:
		return parseReschedule(input, args)
	case TypeSweep:
		return Command{Type: TypeSweep, Raw: input}, nil
	default:
		return Command{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unsupported command: %s", head)}
	}
}

func parseAdd(raw string, args []string) (Command, error) {
	out := AddArgs{Priority: model.PriorityMedium}
	words := make([]string, 0, len(args))
	for _, arg := range args {
		lower := strings.ToLower(arg)
		switch {
		case strings.HasPrefix(lower, "remind:"):
			offsets, err := model.ParseOffsets(arg[len("remind:"):])
			if err != nil {
				return Command{}, invalid("bad reminder offsets %q: %v", arg, err)
			}
			out.Offsets = offsets
		case strings.HasPrefix(lower, "p:"), strings.HasPrefix(lower, "priority:"):
			p, err := model.ParsePriority(arg[strings.Index(arg, ":")+1:])
			if err != nil {
				return Command{}, invalid("%v", err)
			}
			out.Priority = p
		default:
			words = append(words, arg)
		}
	}

	split := -1
	for i := len(words) - 1; i > 0; i-- {
		if w := strings.ToLower(words[i]); w == "in" || w == "at" || w == "by" {
			split = i
			break
		}
	}
	if split < 0 || split == len(words)-1 {
		return Command{}, invalid("add requires a title and a deadline, e.g. /add pay rent in 2d")
	}
	out.Title = strings.Join(words[:split], " ")
	out.When = strings.Join(words[split+1:], " ")
	if strings.ToLower(words[split]) == "in" {
		out.When = "in " + out.When
	}
	return Command{Type: TypeAdd, Raw: raw, Add: &out}, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(raw, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, invalid("task id must be a positive number, got %q", raw)
	}
	return id, nil
}

func parseTarget(raw string, typ Type, args []string) (Command, error) {
	if len(args) != 1 {
		return Command{}, invalid("%s requires a task id", typ)
	}
	id, err := parseID(args[0])
	if err != nil {
		return Command{}, err
	}
	return Command{Type: typ, Raw: raw, Target: &TargetArgs{ID: id}}, nil
}

func parseSnooze(raw string, args []string) (Command, error) {
	if len(args) < 2 {
		return Command{}, invalid("snooze requires a task id and a duration")
	}
	id, err := parseID(args[0])
	if err != nil {
		return Command{}, err
	}
	return Command{Type: TypeSnooze, Raw: raw, Snooze: &SnoozeArgs{ID: id, For: strings.Join(args[1:], " ")}}, nil
}

func parseReschedule(raw string, args []string) (Command, error) {
	if len(args) < 2 {
		return Command{}, invalid("reschedule requires a task id and a time")
	}
	id, err := parseID(args[0])
	if err != nil {
		return Command{}, err
	}
	return Command{Type: TypeReschedule, Raw: raw, Reschedule: &RescheduleArgs{ID: id, When: strings.Join(args[1:], " ")}}, nil
}
