package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewRemoteCmd создаёт группу команд для управления avantix-runner через HTTP API.
func NewRemoteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Control a running avantix-runner",
	}

	cmd.AddCommand(
		newRemoteStartCmd(clientFn, outputFn),
		newRemoteCancelCmd(clientFn, outputFn),
		newRemoteStatusCmd(clientFn, outputFn),
		newRemoteShowCmd(clientFn, outputFn),
		newRemoteSchedulesCmd(clientFn, outputFn),
	)

	return cmd
}

var runHeaders = []string{"ID", "FLOW", "STATUS", "STEP", "TRIGGER", "ERROR"}

func runRow(r *RunResponse) []string {
	step := strconv.Itoa(r.StepIndex) + "/" + strconv.Itoa(r.StepsTotal)
	status := r.Status
	if r.CancelRequested && r.Status == "RUNNING" {
		status += " (cancelling)"
	}
	return []string{r.ID, r.Flow, status, step, r.Trigger, r.Error}
}

func newRemoteStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "start FLOW",
		Short: "Start a flow on the runner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.StartRun(args[0])
			if err != nil {
				return err
			}

			out.Print(runHeaders, [][]string{runRow(run)}, run)
			out.Success("Run " + run.ID + " started")
			return nil
		},
	}
}

func newRemoteCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel RUN_ID",
		Short: "Request cancellation of a run (current step finishes first)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.CancelRun(args[0])
			if err != nil {
				return err
			}

			out.Print(runHeaders, [][]string{runRow(run)}, run)
			out.Success("Cancellation requested for run " + run.ID)
			return nil
		},
	}
}

func newRemoteStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current and the last finished run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			st, err := client.Status()
			if err != nil {
				return err
			}

			headers := append([]string{"RUN"}, runHeaders...)
			var rows [][]string
			if st.Current != nil {
				rows = append(rows, append([]string{"current"}, runRow(st.Current)...))
			}
			if st.Last != nil {
				rows = append(rows, append([]string{"last"}, runRow(st.Last)...))
			}

			out.Print(headers, rows, st)
			return nil
		},
	}
}

func newRemoteShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show run details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.GetRun(args[0])
			if err != nil {
				return err
			}

			out.Print(runHeaders, [][]string{runRow(run)}, run)
			return nil
		},
	}
}

func newRemoteSchedulesCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedules",
		Short: "List runner schedules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			schedules, err := client.ListSchedules()
			if err != nil {
				return err
			}

			out.Print(scheduleHeaders, scheduleRows(schedules), schedules)
			return nil
		},
	}

	cmd.AddCommand(
		newRemoteScheduleToggleCmd(clientFn, outputFn, "enable", true),
		newRemoteScheduleToggleCmd(clientFn, outputFn, "disable", false),
	)

	return cmd
}

func newRemoteScheduleToggleCmd(clientFn func() *Client, outputFn func() *Output, use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " NAME",
		Short: use + " a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			schedule, err := client.SetScheduleEnabled(args[0], enabled)
			if err != nil {
				return err
			}

			out.Print(scheduleHeaders, scheduleRows([]ScheduleResponse{*schedule}), schedule)
			return nil
		},
	}
}

var scheduleHeaders = []string{"NAME", "FLOW", "TRIGGER", "ENABLED", "NEXT_DUE", "LAST_RUN"}

func scheduleRows(schedules []ScheduleResponse) [][]string {
	rows := make([][]string, len(schedules))
	for i, s := range schedules {
		trigger := s.CronExpr
		if trigger == "" {
			trigger = "every " + strconv.Itoa(s.IntervalSec) + "s"
		}
		rows[i] = []string{s.Name, s.Flow, trigger, strconv.FormatBool(s.Enabled), s.NextDueAt, s.LastRunID}
	}
	return rows
}
