package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// NewStepCmds создаёт команды шага: can-start, status и команды смены статуса.
func NewStepCmds(clientFn func() *Client, outputFn func() *Output) []*cobra.Command {
	cmds := []*cobra.Command{
		newCanStartCmd(clientFn, outputFn),
		newStatusCmd(clientFn, outputFn),
	}

	for _, c := range []struct {
		name  string
		short string
	}{
		{"boot", "Mark step as starting"},
		{"execute", "Mark step as running"},
		{"ready", "Mark step as ready for dependents"},
		{"done", "Mark step as done"},
		{"fail", "Mark step as failed"},
	} {
		cmds = append(cmds, newCommandCmd(c.name, c.short, clientFn, outputFn))
	}
	return cmds
}

func newCanStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var (
		wait     bool
		interval time.Duration
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "can-start <step>",
		Short: "Check whether all preceding steps are done or ready",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if wait {
				if err := client.WaitCanStart(args[0], interval, timeout); err != nil {
					return err
				}
				out.Line("true")
				return nil
			}

			ok, err := client.CanStart(args[0])
			if err != nil {
				return err
			}
			out.Line(strconv.FormatBool(ok))
			return nil
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "Poll until the step can start")
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "Polling interval with --wait")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up waiting after this duration (0 = never)")

	return cmd
}

func newCommandCmd(name, short string, clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <step>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := clientFn().Command(name, args[0]); err != nil {
				return err
			}
			outputFn().Success(fmt.Sprintf("Step %s: %s", args[0], name))
			return nil
		},
	}
}

func newStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status <step>",
		Short: "Show step status and position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			step, err := clientFn().GetStep(args[0])
			if err != nil {
				return err
			}

			canStart := ""
			if step.CanStart != nil {
				canStart = strconv.FormatBool(*step.CanStart)
			}

			outputFn().Print(
				[]string{"CODE", "ORDER", "STATUS", "CAN START", "PIPELINE"},
				[][]string{{step.Code, strconv.FormatInt(step.Order, 10), step.Status, canStart, step.Pipeline}},
				step,
			)
			return nil
		},
	}
}
