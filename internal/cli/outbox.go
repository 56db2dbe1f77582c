package cli

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Inspect and replay queued requests",
}

var outboxListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending requests",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		ob, err := newOutbox(db, http.DefaultClient)
		if err != nil {
			return err
		}

		entries, err := ob.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("Outbox is empty")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%4d  %-6s %s  %s\n", e.ID, e.Init.Method, e.URL, color.HiBlackString(e.CreatedAt.Local().Format("2006-01-02 15:04")))
		}
		return nil
	},
}

var outboxDrainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Replay every pending request now",
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

		res, err := ob.Drain(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Attempted %d, replayed %s, failed %s\n", res.Attempted,
			color.GreenString("%d", res.Replayed), color.RedString("%d", res.Failed))
		return nil
	},
}

var outboxAbandonCmd = &cobra.Command{
	Use:   "abandon <id>",
	Short: "Discard a pending request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id %q", args[0])
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		ob, err := newOutbox(db, http.DefaultClient)
		if err != nil {
			return err
		}
		if err := ob.Abandon(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("Abandoned request %d\n", id)
		return nil
	},
}

func init() {
	outboxCmd.AddCommand(outboxListCmd, outboxDrainCmd, outboxAbandonCmd)
}
