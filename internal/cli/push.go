package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/debuck1718/smartstudent/internal/model"
	"github.com/debuck1718/smartstudent/internal/push"
)

var (
	pushSubscription string
	pushType         string
	pushID           string
	pushTitle        string
	pushBody         string
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "VAPID keys and test push delivery",
}

var pushVAPIDCmd = &cobra.Command{
	Use:   "vapid",
	Short: "Generate a VAPID key pair",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			return err
		}
		fmt.Printf("SMARTSTUDENT_VAPID_PUBLIC_KEY=%s\n", pub)
		fmt.Printf("SMARTSTUDENT_VAPID_PRIVATE_KEY=%s\n", priv)
		return nil
	},
}

var pushSendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a test payload to a subscription",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := env.cfg
		if cfg.VAPIDPublicKey == "" || cfg.VAPIDPrivateKey == "" {
			return fmt.Errorf("VAPID keys not configured (run 'smartstudent push vapid')")
		}
		data, err := os.ReadFile(pushSubscription)
		if err != nil {
			return fmt.Errorf("read subscription: %w", err)
		}
		sub, err := push.ParseSubscription(data)
		if err != nil {
			return err
		}

		svc := push.NewService(push.Config{
			VAPIDPublicKey:  cfg.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.VAPIDPrivateKey,
			Subscriber:      cfg.PushSubscriber,
		}, nil)
		payload := model.PushPayload{Type: pushType, ID: model.PayloadID(pushID), Title: pushTitle, Body: pushBody}
		if err := svc.Send(cmd.Context(), sub, payload); err != nil {
			return err
		}
		fmt.Println(color.GreenString("Sent %s push to %s", pushType, sub.Endpoint))
		return nil
	},
}

func init() {
	pushSendCmd.Flags().StringVar(&pushSubscription, "subscription", "", "Push subscription JSON file")
	pushSendCmd.Flags().StringVar(&pushType, "type", model.PushTypeReminder, "Payload type: reminder or goal")
	pushSendCmd.Flags().StringVar(&pushID, "id", "1", "Payload id")
	pushSendCmd.Flags().StringVar(&pushTitle, "title", "Test reminder", "Payload title")
	pushSendCmd.Flags().StringVar(&pushBody, "body", "This is a test push from smartstudent", "Payload body")
	pushSendCmd.MarkFlagRequired("subscription")

	pushCmd.AddCommand(pushVAPIDCmd, pushSendCmd)
}
