package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/spec-kit/task-service/pkg/client"
)

func newTasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Manage your tasks",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if root := cmd.Root(); root.PersistentPreRunE != nil {
				if err := root.PersistentPreRunE(cmd, args); err != nil {
					return err
				}
			}
			return requireSession(cmd)
		},
	}
	cmd.AddCommand(
		newTasksListCmd(),
		newTasksGetCmd(),
		newTasksCreateCmd(),
		newTasksUpdateCmd(),
		newTasksDeleteCmd(),
	)
	return cmd
}

func newTasksListCmd() *cobra.Command {
	var opts client.ListOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			page, err := clientFrom(cmd).ListTasks(cmd.Context(), opts)
			if err != nil {
				return err
			}
			renderTasks(cmd.OutOrStdout(), page.Tasks)
			p := page.Pagination
			fmt.Fprintf(cmd.OutOrStdout(), "page %d/%d, %d task(s)\n", p.Page, p.Pages, p.Total)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Status, "status", "", "filter: pending, in-progress, completed")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "filter: low, medium, high")
	cmd.Flags().IntVar(&opts.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&opts.Limit, "limit", 10, "page size")
	return cmd
}

func newTasksGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := clientFrom(cmd).GetTask(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			renderTask(cmd.OutOrStdout(), task)
			return nil
		},
	}
}

// taskFlags binds create/update flags; only flags the user set are sent.
type taskFlags struct {
	title, description, status, priority, due string
}

func (f *taskFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "title (1-100 characters)")
	cmd.Flags().StringVar(&f.description, "description", "", "description (max 500 characters)")
	cmd.Flags().StringVar(&f.status, "status", "", "pending, in-progress or completed")
	cmd.Flags().StringVar(&f.priority, "priority", "", "low, medium or high")
	cmd.Flags().StringVar(&f.due, "due", "", "due date (YYYY-MM-DD)")
}

func (f *taskFlags) input(cmd *cobra.Command) client.TaskInput {
	var in client.TaskInput
	set := func(name string, val *string) *string {
		if cmd.Flags().Changed(name) {
			return val
		}
		return nil
	}
	in.Title = set("title", &f.title)
	in.Description = set("description", &f.description)
	in.Status = set("status", &f.status)
	in.Priority = set("priority", &f.priority)
	in.DueDate = set("due", &f.due)
	return in
}

func newTasksCreateCmd() *cobra.Command {
	flags := &taskFlags{}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, _ []string) error {
			task, err := clientFrom(cmd).CreateTask(cmd.Context(), flags.input(cmd))
			if err != nil {
				return err
			}
			renderTask(cmd.OutOrStdout(), task)
			return nil
		},
	}
	flags.bind(cmd)
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newTasksUpdateCmd() *cobra.Command {
	flags := &taskFlags{}
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change selected fields of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := clientFrom(cmd).UpdateTask(cmd.Context(), args[0], flags.input(cmd))
			if err != nil {
				return err
			}
			renderTask(cmd.OutOrStdout(), task)
			return nil
		},
	}
	flags.bind(cmd)
	return cmd
}

func newTasksDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := clientFrom(cmd).DeleteTask(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func renderTasks(w io.Writer, tasks []client.Task) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPRIORITY\tDUE\tTITLE")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Status, t.Priority, dueString(t), t.Title)
	}
	_ = tw.Flush()
}

func renderTask(w io.Writer, t *client.Task) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\t%s\n", t.ID)
	fmt.Fprintf(tw, "Title\t%s\n", t.Title)
	fmt.Fprintf(tw, "Description\t%s\n", t.Description)
	fmt.Fprintf(tw, "Status\t%s\n", t.Status)
	fmt.Fprintf(tw, "Priority\t%s\n", t.Priority)
	fmt.Fprintf(tw, "Due\t%s\n", dueString(*t))
	fmt.Fprintf(tw, "Created\t%s\n", t.CreatedAt.Local().Format("2006-01-02 15:04"))
	_ = tw.Flush()
}

func dueString(t client.Task) string {
	if t.DueDate == nil {
		return "-"
	}
	return t.DueDate.Format("2006-01-02")
}
