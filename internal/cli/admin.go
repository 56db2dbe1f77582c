package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/debuck1718/smartstudent/internal/admin"
)

var (
	adminSchool string
	adminRole   string
	adminQuery  string
	adminYes    bool
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage users (admins and overseers only)",
}

var adminUsersCmd = &cobra.Command{
	Use:   "users",
	Short: "List users, filtered by school, role and free text",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		panel, err := loadPanel(cmd)
		if err != nil {
			return err
		}
		state := panel.State()

		printHeader("Users")
		fmt.Printf("Schools: %s\n", strings.Join(state.Schools(), ", "))
		cards := state.Cards(admin.Filter{School: adminSchool, Role: adminRole, Query: adminQuery})
		if len(cards) == 0 {
			fmt.Println("No users match the filters")
			return nil
		}
		for _, c := range cards {
			badge := ""
			if c.Badge != "" {
				badge = " " + color.MagentaString("[%s]", c.Badge)
			}
			fmt.Printf("%s%s (%s)\n  Role: %s | School: %s\n", color.New(color.Bold).Sprint(c.Name), badge, c.Email, c.Occupation, c.School)
			if len(c.Actions) > 0 {
				acts := make([]string, len(c.Actions))
				for i, a := range c.Actions {
					acts[i] = string(a)
				}
				fmt.Printf("  Actions: %s\n", strings.Join(acts, ", "))
			}
		}
		return nil
	},
}

func adminActionCmd(use, short string, run func(cmd *cobra.Command, p *admin.Panel, email string) (bool, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <email>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			panel, err := loadPanel(cmd)
			if err != nil {
				return err
			}
			email := args[0]
			if !hasAction(panel.State(), email) {
				return fmt.Errorf("you cannot change %s", email)
			}
			_, err = run(cmd, panel, email)
			return err
		},
	}
}

func hasAction(state *admin.State, email string) bool {
	for _, u := range state.Users {
		if u.Email == email {
			return state.CanEdit(u)
		}
	}
	return false
}

func loadPanel(cmd *cobra.Command) (*admin.Panel, error) {
	client, err := newAPIClient()
	if err != nil {
		return nil, err
	}
	p := newPrompt(adminYes)
	panel := admin.NewPanel(client, p, p, env.logger.With("component", "admin"))
	if _, err := panel.Load(cmd.Context()); err != nil {
		if errors.Is(err, admin.ErrUnauthorized) {
			return nil, fmt.Errorf("%w: sign in as an admin (see %s)", err, admin.LoginPath)
		}
		return nil, err
	}
	return panel, nil
}

func init() {
	adminUsersCmd.Flags().StringVar(&adminSchool, "school", admin.All, "School filter")
	adminUsersCmd.Flags().StringVar(&adminRole, "role", admin.All, "Role filter: "+strings.Join(admin.RoleOptions, ", "))
	adminUsersCmd.Flags().StringVarP(&adminQuery, "query", "q", "", "Free-text search over name and email")
	adminCmd.PersistentFlags().BoolVarP(&adminYes, "yes", "y", false, "Do not ask for confirmation")

	adminCmd.AddCommand(adminUsersCmd)
	adminCmd.AddCommand(adminActionCmd("promote", "Grant admin rights", func(cmd *cobra.Command, p *admin.Panel, email string) (bool, error) {
		return p.SetAdmin(cmd.Context(), email, true)
	}))
	adminCmd.AddCommand(adminActionCmd("demote", "Revoke admin rights", func(cmd *cobra.Command, p *admin.Panel, email string) (bool, error) {
		return p.SetAdmin(cmd.Context(), email, false)
	}))
	adminCmd.AddCommand(adminActionCmd("remove", "Remove a user", func(cmd *cobra.Command, p *admin.Panel, email string) (bool, error) {
		return p.RemoveUser(cmd.Context(), email)
	}))
}
