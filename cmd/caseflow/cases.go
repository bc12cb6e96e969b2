package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/garyjia/caseflow/internal/application/port"
	"github.com/garyjia/caseflow/internal/application/service"
	"github.com/garyjia/caseflow/internal/application/workflow"
	"github.com/garyjia/caseflow/internal/container"
	domainwf "github.com/garyjia/caseflow/internal/domain/workflow"
)

func (a *cli) caseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "case",
		Aliases: []string{"cases"},
		Short:   "Create, inspect and move cases",
	}
	cmd.AddCommand(
		a.caseCreateCmd(),
		a.caseShowCmd(),
		a.caseListCmd(),
		a.caseHistoryCmd(),
		a.transitionCmd("assign <case-id>", "Offer an OPEN case to a caseworker", domainwf.TriggerAssign),
		a.transitionCmd("reassign <case-id>", "Assign an unassigned case", domainwf.TriggerReassign),
		a.transitionCmd("accept <case-id>", "Accept a pending offer", domainwf.TriggerAccept),
		a.transitionCmd("reject <case-id>", "Decline a pending offer", domainwf.TriggerReject),
		a.transitionCmd("request-completion <case-id>", "Submit work for review", domainwf.TriggerRequestCompletion),
		a.transitionCmd("approve <case-id>", "Approve a completion request", domainwf.TriggerApprove),
		a.transitionCmd("reject-completion <case-id>", "Send a case back to the assignee", domainwf.TriggerRejectCompletion),
	)
	return cmd
}

func (a *cli) caseCreateCmd() *cobra.Command {
	var in service.CreateCaseInput
	var due string
	var meta map[string]string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a new case",
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := a.caller()
			if err != nil {
				return err
			}
			if due != "" {
				t, err := time.ParseInLocation("2006-01-02", due, time.Local)
				if err != nil {
					return fmt.Errorf("invalid --due %q: want YYYY-MM-DD", due)
				}
				in.DueDate = &t
			}
			in.Metadata = meta

			return a.withContainer(cmd.Context(), func(ctx context.Context, c *container.Container) error {
				created, err := c.Services().Cases.CreateCase(ctx, caller, in)
				if err != nil {
					return err
				}
				return a.printCase(created)
			})
		},
	}
	cmd.Flags().StringVarP(&in.Title, "title", "t", "", "case title")
	cmd.Flags().StringVarP(&in.Description, "description", "d", "", "case description")
	cmd.Flags().StringVarP(&in.Priority, "priority", "p", "", "LOW, MEDIUM, HIGH or URGENT")
	cmd.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().StringToStringVar(&meta, "meta", nil, "metadata key=value pairs")
	return cmd
}

func (a *cli) caseShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <case-id>",
		Short: "Show one case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContainer(cmd.Context(), func(ctx context.Context, c *container.Container) error {
				found, err := c.Services().Cases.GetCase(ctx, args[0])
				if err != nil {
					return err
				}
				return a.printCase(found)
			})
		},
	}
}

func (a *cli) caseListCmd() *cobra.Command {
	var status, assignee, creator string
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cases, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := port.CaseFilter{
				AssigneeID: assignee,
				CreatorID:  creator,
				Limit:      limit,
				Offset:     offset,
			}
			if status != "" {
				st, err := domainwf.ParseState(status)
				if err != nil {
					return err
				}
				filter.Status = st
			}
			return a.withContainer(cmd.Context(), func(ctx context.Context, c *container.Container) error {
				cases, err := c.Services().Cases.ListCases(ctx, filter)
				if err != nil {
					return err
				}
				return a.printCases(cases)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&assignee, "assignee", "", "filter by assignee")
	cmd.Flags().StringVar(&creator, "creator", "", "filter by creator")
	cmd.Flags().IntVar(&limit, "limit", service.DefaultListLimit, "maximum rows")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	return cmd
}

func (a *cli) caseHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <case-id>",
		Short: "Show the audit trail of a case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContainer(cmd.Context(), func(ctx context.Context, c *container.Container) error {
				logs, err := c.Services().Cases.History(ctx, args[0])
				if err != nil {
					return err
				}
				return a.printHistory(logs)
			})
		},
	}
}

// transitionCmd builds one subcommand per workflow action. Assignment
// actions take --worker; every action takes --details.
func (a *cli) transitionCmd(use, short string, trigger domainwf.Trigger) *cobra.Command {
	var worker, details string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := a.caller()
			if err != nil {
				return err
			}
			if trigger.TakesTarget() && worker == "" {
				return errors.New("--worker is required")
			}

			var opts []workflow.CommandOption
			if details != "" {
				opts = append(opts, workflow.WithDetails(details))
			}
			command := workflow.NewCommand(trigger, args[0], caller, worker, opts...)

			return a.withContainer(cmd.Context(), func(ctx context.Context, c *container.Container) error {
				result, err := c.Workflow().Execute(ctx, command)
				if err != nil {
					return err
				}
				return a.printResult(result)
			})
		},
	}
	if trigger.TakesTarget() {
		cmd.Flags().StringVarP(&worker, "worker", "w", "", "caseworker to assign")
	}
	cmd.Flags().StringVar(&details, "details", "", "note recorded in the audit log")
	return cmd
}

func (a *cli) printResult(r *workflow.Result) error {
	if a.v.GetBool("json") {
		return a.printJSON(r)
	}
	from, to := r.Transition()
	a.printf("%s: %s -> %s (%s by %s, version %d)\n", r.Case.ID, from, to, r.Audit.Action, r.Audit.ActorID, r.Case.Version)
	if r.Notification != nil {
		a.printf("notify %v: %s\n", r.Notification.Recipients, r.Notification.Subject)
	}
	return nil
}

func (a *cli) workloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "workload <worker-id>...",
		Short: "Show how many active cases each caseworker holds",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContainer(cmd.Context(), func(ctx context.Context, c *container.Container) error {
				var summaries []*service.WorkloadSummary
				for _, id := range args {
					s, err := c.Services().Cases.Workload(ctx, id)
					if err != nil {
						return err
					}
					summaries = append(summaries, s)
				}
				if a.v.GetBool("json") {
					return a.printJSON(summaries)
				}
				tw := a.newTable(table.Row{"Worker", "Active", "Cap", "Remaining"})
				for _, s := range summaries {
					tw.AppendRow(table.Row{s.WorkerID, s.Active, s.Cap, s.Remaining})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func (a *cli) outboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and drain the event outbox",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "flush",
		Short: "Deliver pending outbox events now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContainer(cmd.Context(), func(ctx context.Context, c *container.Container) error {
				n, err := c.FlushOutbox(ctx)
				if err != nil {
					return err
				}
				a.printf("delivered %d event(s)\n", n)
				return nil
			})
		},
	})
	return cmd
}
