package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nhle/habitboard/internal/calendar"
	"github.com/nhle/habitboard/internal/dashboard"
	"github.com/nhle/habitboard/internal/model"
	"github.com/nhle/habitboard/internal/mutation"
)

// withSession opens the environment, checks for a session and runs fn.
func withSession(fn func(ctx context.Context, e *env) error) error {
	e, err := openEnv(configPath)
	if err != nil {
		return err
	}
	defer e.Close()
	if err := e.requireSession(); err != nil {
		return err
	}
	return fn(context.Background(), e)
}

func parseTaskID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}

func printTask(t model.Task) {
	mark := " "
	if t.Completed {
		mark = "x"
	}
	line := fmt.Sprintf("[%s] #%-5d %s", mark, t.ID, t.Title)
	if t.Date != "" {
		line += "  " + t.Date
	}
	if t.Frequency != "" {
		line += "  (" + t.Frequency + ")"
	}
	fmt.Println(line)
}

func tasksCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, e *env) error {
				var (
					tasks []model.Task
					err   error
				)
				if date != "" {
					if !model.IsDate(date) {
						return fmt.Errorf("invalid date %q: use YYYY-MM-DD", date)
					}
					tasks, err = e.deps.Queries.TasksByDate(ctx, date)
				} else {
					tasks, err = e.deps.Queries.Tasks(ctx)
				}
				if err != nil {
					return fmt.Errorf("loading tasks: %w", err)
				}
				if len(tasks) == 0 {
					fmt.Println("No tasks.")
					return nil
				}
				for _, t := range tasks {
					printTask(t)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&date, "date", "d", "", "Only tasks for this day (YYYY-MM-DD)")
	return cmd
}

func addCmd() *cobra.Command {
	var in mutation.CreateInput
	cmd := &cobra.Command{
		Use:   "add <title...>",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Title = strings.Join(args, " ")
			return withSession(func(ctx context.Context, e *env) error {
				t, err := e.deps.Engine.Create(ctx, in)
				if err != nil {
					return fmt.Errorf("adding task: %w", err)
				}
				printTask(t)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&in.Date, "date", "d", "", "Day the task belongs to (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&in.Frequency, "frequency", "f", "", "daily or weekly")
	cmd.Flags().StringVarP(&in.Reminder, "reminder", "r", "", "Reminder text")
	return cmd
}

// mutate loads the task list so the engine can find the task, then runs op.
func mutate(idArg string, op func(ctx context.Context, e *env, id int64) (mutation.Result, error)) error {
	id, err := parseTaskID(idArg)
	if err != nil {
		return err
	}
	return withSession(func(ctx context.Context, e *env) error {
		if _, err := e.deps.Queries.Tasks(ctx); err != nil {
			return fmt.Errorf("loading tasks: %w", err)
		}
		res, err := op(ctx, e, id)
		if err != nil {
			return err
		}
		switch res.Outcome {
		case mutation.NotFound:
			return fmt.Errorf("task #%d not found", id)
		case mutation.Unchanged:
			fmt.Printf("Task #%d is already %s.\n", id, res.Task.Lane())
			return nil
		}
		printTask(res.Task)
		return nil
	})
}

func toggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Flip a task between pending and completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(args[0], func(ctx context.Context, e *env, id int64) (mutation.Result, error) {
				return e.deps.Engine.Toggle(ctx, id)
			})
		},
	}
}

func moveCmd() *cobra.Command {
	var done, pending bool
	cmd := &cobra.Command{
		Use:   "move <id>",
		Short: "Move a task to the pending or completed lane",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if done == pending {
				return fmt.Errorf("pass exactly one of --done or --pending")
			}
			return mutate(args[0], func(ctx context.Context, e *env, id int64) (mutation.Result, error) {
				return e.deps.Engine.Move(ctx, id, done)
			})
		},
	}
	cmd.Flags().BoolVar(&done, "done", false, "Move to the completed lane")
	cmd.Flags().BoolVar(&pending, "pending", false, "Move to the pending lane")
	return cmd
}

func rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			return withSession(func(ctx context.Context, e *env) error {
				if _, err := e.deps.Queries.Tasks(ctx); err != nil {
					return fmt.Errorf("loading tasks: %w", err)
				}
				res, err := e.deps.Engine.Delete(ctx, id)
				if err != nil {
					return fmt.Errorf("deleting task: %w", err)
				}
				if res.Outcome == mutation.NotFound {
					return fmt.Errorf("task #%d not found", id)
				}
				fmt.Printf("Deleted #%d %s\n", id, res.Task.Title)
				return nil
			})
		},
	}
}

func calendarCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "calendar [YYYY-MM]",
		Short: "Show a month of tasks",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			today := time.Now().Format(model.DateLayout)
			ym := model.MonthOf(today)
			if len(args) == 1 {
				ym = args[0]
			}
			if _, err := calendar.ParseMonth(ym); err != nil {
				return err
			}
			return withSession(func(ctx context.Context, e *env) error {
				data, err := e.deps.Queries.Calendar(ctx, ym)
				if err != nil {
					return fmt.Errorf("loading calendar: %w", err)
				}
				grid, err := calendar.Month(ym, data, today, "")
				if err != nil {
					return err
				}
				fmt.Println(grid.Title)
				fmt.Println(strings.Join(calendar.Weekdays[:], "  "))
				for _, week := range grid.Cells {
					cells := make([]string, 0, len(week))
					for _, d := range week {
						switch {
						case !d.InMonth:
							cells = append(cells, "   ")
						case d.Total > 0:
							cells = append(cells, fmt.Sprintf("%2d*", d.Number))
						default:
							cells = append(cells, fmt.Sprintf("%2d ", d.Number))
						}
					}
					fmt.Println(strings.Join(cells, "  "))
				}
				return nil
			})
		},
	}
}

func todayCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "today",
		Aliases: []string{"dashboard"},
		Short:   "Show today's habits and recent completion",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, e *env) error {
				s, err := e.deps.Dashboard.Load(ctx)
				if err != nil {
					return fmt.Errorf("loading dashboard: %w", err)
				}
				fmt.Printf("%s: %d of %d done\n", s.Date, s.Done, len(s.Habits))
				for _, h := range s.Habits {
					printTask(h.Task)
					if h.StreakSource != dashboard.StreakNone {
						fmt.Printf("        %s, %d day streak\n", h.Frequency(), h.Streak)
					}
				}
				if len(s.Weekly) > 0 {
					fmt.Println()
					for _, p := range s.Weekly {
						fmt.Printf("%-4s %s%%\n", p.Day, humanize.FtoaWithDigits(p.Completion, 1))
					}
				}
				return nil
			})
		},
	}
}
