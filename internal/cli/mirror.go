package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewMirrorCmd создаёт группу команд для зеркал.
func NewMirrorCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Inspect and force-sync mirrors",
	}

	cmd.AddCommand(
		newMirrorShowCmd(clientFn, outputFn),
		newMirrorForceSyncCmd(clientFn, outputFn),
	)

	return cmd
}

func newMirrorShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show mirror sync state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRepositoryID(args[0])
			if err != nil {
				return err
			}

			mirror, err := clientFn().GetMirror(id)
			if err != nil {
				return err
			}

			outputFn().PrintFields(mirrorFields(mirror), mirror)
			return nil
		},
	}
}

func newMirrorForceSyncCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "force-sync ID",
		Short: "Make mirror due now and request a pass",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRepositoryID(args[0])
			if err != nil {
				return err
			}

			out := outputFn()
			mirror, err := clientFn().ForceSync(id)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Force sync requested: %d (%s)", mirror.RepositoryID, mirror.FullPath))
			out.PrintFields(mirrorFields(mirror), mirror)
			return nil
		},
	}
}

func mirrorFields(m *MirrorResponse) [][2]string {
	return [][2]string{
		{"ID", strconv.FormatInt(m.RepositoryID, 10)},
		{"PATH", m.FullPath},
		{"STATUS", m.Status},
		{"NEXT_EXECUTION", orDash(m.NextExecutionAt)},
		{"SCHEDULED_AT", orDash(m.ScheduledAt)},
		{"RETRIES", strconv.Itoa(m.RetryCount)},
		{"HARD_FAILED", strconv.FormatBool(m.HardFailed)},
		{"ELIGIBLE", strconv.FormatBool(m.Eligible)},
		{"LAST_ERROR", orDash(m.LastError)},
	}
}

func parseRepositoryID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid repository id %q", s)
	}
	return id, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
