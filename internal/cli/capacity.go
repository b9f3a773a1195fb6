package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewCapacityCmd создаёт команду просмотра слотов синхронизации.
func NewCapacityCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "capacity",
		Short: "Show sync capacity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			capacity, err := client.GetCapacity()
			if err != nil {
				return err
			}

			out.Print(
				[]string{"MAX", "IN_FLIGHT", "AVAILABLE"},
				[][]string{{
					strconv.Itoa(capacity.MaxCapacity),
					strconv.Itoa(capacity.InFlight),
					strconv.Itoa(capacity.Available),
				}},
				capacity,
			)
			return nil
		},
	}
}

// NewPassCmd создаёт группу команд для проходов планирования.
func NewPassCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pass",
		Short: "Manage scheduling passes",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "trigger",
		Short: "Request an immediate scheduling pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			pass, err := client.TriggerPass()
			if err != nil {
				return err
			}

			if out.jsonMode {
				out.JSON(pass)
				return nil
			}
			out.Success("Scheduling pass " + pass.Status)
			return nil
		},
	})

	return cmd
}
