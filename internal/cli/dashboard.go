package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/debuck1718/smartstudent/internal/api"
	"github.com/debuck1718/smartstudent/internal/dashboard"
)

var (
	subscriptionPath string

	taskTitle   string
	taskSubject string
	taskDate    string
	taskTime    string

	expenseTitle  string
	expenseAmount float64
	expenseType   string

	feedbackFile string
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Load every dashboard widget and print it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, err := newController(subscriptionPath, nil)
		if err != nil {
			return err
		}
		defer ctrl.Close()
		ctrl.Start(cmd.Context())

		view, err := ctrl.RefreshAll(cmd.Context())
		if err != nil {
			warn("%v", err)
		}
		printHeader("Dashboard")
		printList("Assignments", view.Assignments, "None")
		printList("Budget", view.Budget, "No entries")
		printList("Goal", []string{view.Goal}, "No goal set")
		printList("Rewards", view.Rewards, "None yet")

		q := dashboard.WeeklyQuote(time.Now())
		fmt.Printf("\n%s\n%s\n", color.New(color.Italic).Sprint(q.Text), q.Author)

		rewards, err := ctrl.LoadRewardsPage(cmd.Context())
		if err != nil {
			warn("%v", err)
			return nil
		}
		fmt.Println()
		printList("Badges this week", rewards.Badges, "None yet")
		if rewards.Message != "" {
			fmt.Println(color.GreenString(rewards.Message))
		}
		return nil
	},
}

var assignmentCmd = &cobra.Command{
	Use:   "assignment",
	Short: "Manage assignments",
}

var assignmentAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an assignment; queued in the agent outbox when offline",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		ob, err := newOutbox(db, client.HTTPClient())
		if err != nil {
			return err
		}

		ctrl, err := newController(subscriptionPath, ob)
		if err != nil {
			return err
		}
		defer ctrl.Close()
		ctrl.Start(cmd.Context())

		outcome, err := ctrl.AddAssignment(cmd.Context(), dashboard.AssignmentForm{
			Title:   taskTitle,
			Subject: taskSubject,
			Date:    taskDate,
			Time:    taskTime,
		})
		if err != nil {
			return err
		}
		env.logger.Debug("assignment added", "outcome", outcome)
		return nil
	},
}

var expenseCmd = &cobra.Command{
	Use:   "expense",
	Short: "Record expenses and savings goals",
}

var expenseAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an expense or savings goal amount",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, err := newController("", nil)
		if err != nil {
			return err
		}
		return ctrl.AddExpense(cmd.Context(), dashboard.ExpenseForm{Title: expenseTitle, Amount: expenseAmount, Type: expenseType})
	},
}

var goalCmd = &cobra.Command{
	Use:   "goal <text>",
	Short: "Set this week's goal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, err := newController("", nil)
		if err != nil {
			return err
		}
		return ctrl.AddGoal(cmd.Context(), args[0])
	},
}

var feedbackCmd = &cobra.Command{
	Use:   "feedback <message>",
	Short: "Send feedback, optionally with an attachment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, err := newController("", nil)
		if err != nil {
			return err
		}
		var att *api.Attachment
		if feedbackFile != "" {
			f, err := os.Open(feedbackFile)
			if err != nil {
				return fmt.Errorf("open attachment: %w", err)
			}
			defer f.Close()
			att = &api.Attachment{Name: filepath.Base(feedbackFile), Data: f}
		}
		err = ctrl.SubmitFeedback(cmd.Context(), args[0], att)
		if errors.Is(err, dashboard.ErrValidation) {
			return nil
		}
		return err
	},
}

var teacherCmd = &cobra.Command{
	Use:   "teacher",
	Short: "Show the class, overdue work and live feedback until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, err := newController("", nil)
		if err != nil {
			return err
		}
		students, err := ctrl.LoadTeacher(cmd.Context())
		printHeader("Class")
		printList("Students", students, "No students")
		if err != nil {
			warn("%v", err)
		}

		fmt.Println(color.HiBlackString("Watching for feedback, Ctrl-C to stop"))
		ctrl.PollFeedback(cmd.Context(), env.cfg.FeedbackInterval, 0)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{dashboardCmd, assignmentAddCmd} {
		c.Flags().StringVar(&subscriptionPath, "subscription", "", "Push subscription JSON to upload")
	}

	assignmentAddCmd.Flags().StringVar(&taskTitle, "title", "", "Assignment title")
	assignmentAddCmd.Flags().StringVar(&taskSubject, "subject", "", "Subject")
	assignmentAddCmd.Flags().StringVar(&taskDate, "date", "", "Due date (YYYY-MM-DD)")
	assignmentAddCmd.Flags().StringVar(&taskTime, "time", "", "Due time (HH:MM), default end of day")
	assignmentCmd.AddCommand(assignmentAddCmd)

	expenseAddCmd.Flags().StringVar(&expenseTitle, "title", "", "What the money was for")
	expenseAddCmd.Flags().Float64Var(&expenseAmount, "amount", 0, "Amount in GH₵")
	expenseAddCmd.Flags().StringVar(&expenseType, "type", "expense", "expense or goal")
	expenseCmd.AddCommand(expenseAddCmd)

	feedbackCmd.Flags().StringVar(&feedbackFile, "file", "", "File to attach")
}
