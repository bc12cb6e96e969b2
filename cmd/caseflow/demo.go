package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garyjia/caseflow/internal/application/service"
	"github.com/garyjia/caseflow/internal/application/workflow"
	"github.com/garyjia/caseflow/internal/config"
	"github.com/garyjia/caseflow/internal/container"
	domainwf "github.com/garyjia/caseflow/internal/domain/workflow"
)

const demoUsers = `
users:
  - {id: dana, display_name: Dana Reyes, role: manager}
  - {id: lee, display_name: Lee Park, role: clerk}
  - {id: priya, display_name: Priya Nair, role: caseworker}
  - {id: sam, display_name: Sam Okafor, role: caseworker}
`

type demoStep struct {
	label   string
	trigger domainwf.Trigger
	caller  string
	target  string
	details string
}

func (a *cli) demoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run a scripted case lifecycle against an in-memory store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			cfg.Database.Driver = container.DriverMemory
			cfg.Outbox.Enabled = true

			users, err := config.ParseUsers([]byte(demoUsers))
			if err != nil {
				return err
			}

			return a.runContainer(cmd.Context(), cfg, true, func(ctx context.Context, c *container.Container) error {
				for _, u := range users {
					if err := c.Repositories().Users.Upsert(ctx, u); err != nil {
						return err
					}
				}
				return a.runDemo(ctx, c)
			})
		},
	}
}

func (a *cli) runDemo(ctx context.Context, c *container.Container) error {
	cases := c.Services().Cases
	engine := c.Workflow()

	created, err := cases.CreateCase(ctx, "lee", service.CreateCaseInput{
		Title:       "Tenancy dispute, 14 Harbour Row",
		Description: "Deposit withheld after move-out inspection",
		Priority:    "high",
	})
	if err != nil {
		return err
	}
	a.printf("lee opened %s %q\n", created.ID, created.Title)

	steps := []demoStep{
		{"dana offers the case to priya", domainwf.TriggerAssign, "dana", "priya", ""},
		{"sam tries to accept priya's offer", domainwf.TriggerAccept, "sam", "", ""},
		{"priya declines", domainwf.TriggerReject, "priya", "", "conflict of interest"},
		{"dana reassigns to sam", domainwf.TriggerReassign, "dana", "sam", ""},
		{"sam accepts", domainwf.TriggerAccept, "sam", "", ""},
		{"sam asks for sign-off", domainwf.TriggerRequestCompletion, "sam", "", "settlement drafted"},
		{"dana sends it back", domainwf.TriggerRejectCompletion, "dana", "", "attach the inspection photos"},
		{"sam asks again", domainwf.TriggerRequestCompletion, "sam", "", "photos attached"},
		{"dana approves", domainwf.TriggerApprove, "dana", "", ""},
		{"dana approves twice", domainwf.TriggerApprove, "dana", "", ""},
	}

	for _, s := range steps {
		var opts []workflow.CommandOption
		if s.details != "" {
			opts = append(opts, workflow.WithDetails(s.details))
		}
		result, err := engine.Execute(ctx, workflow.NewCommand(s.trigger, created.ID, s.caller, s.target, opts...))
		if err != nil {
			a.printf("%-36s denied: %v\n", s.label, err)
			continue
		}
		from, to := result.Transition()
		a.printf("%-36s %s -> %s\n", s.label, from, to)
	}

	if err := a.demoWorkloadCap(ctx, c); err != nil {
		return err
	}

	if _, err := c.FlushOutbox(ctx); err != nil {
		return err
	}

	a.printf("\nhistory of %s\n", created.ID)
	logs, err := cases.History(ctx, created.ID)
	if err != nil {
		return err
	}
	return a.printHistory(logs)
}

// demoWorkloadCap fills priya's queue and shows the next offer being refused
func (a *cli) demoWorkloadCap(ctx context.Context, c *container.Container) error {
	limit := c.Config().Workflow.MaxActiveCases
	a.printf("\npriya may hold %d active cases\n", limit)

	for i := 1; i <= limit+1; i++ {
		created, err := c.Services().Cases.CreateCase(ctx, "lee", service.CreateCaseInput{
			Title: fmt.Sprintf("Small claims intake #%d", i),
		})
		if err != nil {
			return err
		}
		if _, err := c.Workflow().Assign(ctx, created.ID, "dana", "priya"); err != nil {
			a.printf("offer %d refused: %v\n", i, err)
			continue
		}
		a.printf("offer %d pending with priya\n", i)
	}

	summary, err := c.Services().Cases.Workload(ctx, "priya")
	if err != nil {
		return err
	}
	a.printf("priya: %d active, %d remaining\n", summary.Active, summary.Remaining)
	return nil
}
