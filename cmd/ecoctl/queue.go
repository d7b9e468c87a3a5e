package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/ecoenergy/eco-energy/internal/tasks"
	"github.com/ecoenergy/eco-energy/pkg/queue"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var reevaluateOpts struct {
	product      string
	organization string
}

var reevaluateCmd = &cobra.Command{
	Use:   "reevaluate",
	Short: "Queue an alert re-evaluation of stored measurements",
	RunE: func(cmd *cobra.Command, _ []string) error {
		payload := tasks.ReevaluatePayload{Reason: "manual"}
		var err error
		if payload.ProductID, err = optionalUUID(reevaluateOpts.product); err != nil {
			return fmt.Errorf("--product: %w", err)
		}
		if payload.OrganizationID, err = optionalUUID(reevaluateOpts.organization); err != nil {
			return fmt.Errorf("--organization: %w", err)
		}

		client := queue.NewClient(&cfg.Redis)
		defer client.Close()

		if err := tasks.EnqueueReevaluation(cmd.Context(), client, payload); err != nil {
			return err
		}
		logger.Info("re-evaluation queued",
			"product_id", payload.ProductID,
			"organization_id", payload.OrganizationID,
		)
		return nil
	},
}

var queuesCmd = &cobra.Command{
	Use:   "queues",
	Short: "Show background queue statistics",
	RunE: func(_ *cobra.Command, _ []string) error {
		inspector := queue.NewInspector(&cfg.Redis)
		defer inspector.Close()

		names, err := inspector.Queues()
		if err != nil {
			return fmt.Errorf("listing queues: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "QUEUE\tPENDING\tACTIVE\tSCHEDULED\tRETRY\tARCHIVED\tPROCESSED\tFAILED")
		for _, name := range names {
			info, err := inspector.GetQueueInfo(name)
			if err != nil {
				return fmt.Errorf("queue %s: %w", name, err)
			}
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
				info.Queue, info.Pending, info.Active, info.Scheduled,
				info.Retry, info.Archived, info.Processed, info.Failed)
		}
		return w.Flush()
	},
}

func optionalUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(s)
}

func init() {
	reevaluateCmd.Flags().StringVar(&reevaluateOpts.product, "product", "", "limit to devices of this product")
	reevaluateCmd.Flags().StringVar(&reevaluateOpts.organization, "organization", "", "limit to one organization")

	rootCmd.AddCommand(reevaluateCmd, queuesCmd)
}
