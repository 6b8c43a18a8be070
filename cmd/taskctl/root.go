package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/spec-kit/task-service/pkg/client"
)

type rootOptions struct {
	server      string
	sessionPath string
}

type appKey struct{}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "taskctl",
		Short:         "Command-line client for the task service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			session := client.NewSession(client.FileStore{Path: opts.sessionPath})
			c := client.New(opts.server, session, nil)
			if err := session.Restore(cmd.Context(), c); err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, c))
			return nil
		},
	}

	server := os.Getenv("TASKCTL_SERVER")
	if server == "" {
		server = "http://localhost:5002"
	}
	cmd.PersistentFlags().StringVar(&opts.server, "server", server, "task service base URL")
	cmd.PersistentFlags().StringVar(&opts.sessionPath, "session", client.DefaultSessionPath(), "session file path")

	cmd.AddCommand(
		newRegisterCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newProfileCmd(),
		newTasksCmd(),
	)
	return cmd
}

func clientFrom(cmd *cobra.Command) *client.Client {
	return cmd.Context().Value(appKey{}).(*client.Client)
}
