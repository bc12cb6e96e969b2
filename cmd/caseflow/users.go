package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/garyjia/caseflow/internal/config"
	"github.com/garyjia/caseflow/internal/container"
)

func (a *cli) usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage the user directory",
	}

	var file string
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Create or update users from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return errors.New("--file is required")
			}
			users, err := config.LoadUsers(file)
			if err != nil {
				return err
			}
			return a.withContainer(cmd.Context(), func(ctx context.Context, c *container.Container) error {
				dir := c.Repositories().Users
				for _, u := range users {
					if err := dir.Upsert(ctx, u); err != nil {
						return err
					}
				}
				a.printf("imported %d user(s) from %s\n", len(users), file)
				return nil
			})
		},
	}
	importCmd.Flags().StringVarP(&file, "file", "f", "", "users YAML file")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContainer(cmd.Context(), func(ctx context.Context, c *container.Container) error {
				users, err := c.Repositories().Users.List(ctx)
				if err != nil {
					return err
				}
				return a.printUsers(users)
			})
		},
	}

	cmd.AddCommand(importCmd, listCmd)
	return cmd
}
