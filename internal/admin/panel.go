// Package admin implements the user-management panel: it loads the user
// list once, filters it locally and applies promote, demote and remove
// actions after the API confirms them.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/debuck1718/smartstudent/internal/api"
)

// LoginPath is where unauthorized users are sent.
const LoginPath = "login.html"

// ErrUnauthorized is returned by Load when the session is not an admin.
var ErrUnauthorized = errors.New("unauthorized")

// Confirmer asks the operator to confirm a destructive action.
type Confirmer interface {
	Confirm(prompt string) bool
}

// Alerter shows a blocking message.
type Alerter interface {
	Alert(msg string)
}

// Panel drives the admin view. Its State changes only after the API
// accepts an action.
type Panel struct {
	client  *api.Client
	confirm Confirmer
	alert   Alerter
	logger  *slog.Logger
	state   *State
}

func NewPanel(client *api.Client, confirm Confirmer, alert Alerter, logger *slog.Logger) *Panel {
	return &Panel{client: client, confirm: confirm, alert: alert, logger: logger}
}

// State returns the loaded state, or nil before Load succeeds.
func (p *Panel) State() *State {
	return p.state
}

// Load checks the session and fetches the user list. A session that is not
// logged in or not an admin yields ErrUnauthorized; the caller redirects to
// LoginPath on any error.
func (p *Panel) Load(ctx context.Context) (*State, error) {
	sess, err := p.client.Session(ctx)
	if err != nil {
		p.alert.Alert("Network error")
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !sess.LoggedIn || sess.User == nil || !sess.User.IsAdmin {
		p.alert.Alert("❌ Unauthorized access")
		return nil, ErrUnauthorized
	}

	users, err := p.client.AdminUsers(ctx)
	if err != nil {
		p.alert.Alert("Network error")
		return nil, fmt.Errorf("load users: %w", err)
	}

	p.state = &State{Current: *sess.User, Users: users}
	p.logger.Info("admin panel loaded", "users", len(users), "acting", sess.User.Email)
	return p.state, nil
}

// SetAdmin promotes or demotes email after confirmation. It reports whether
// the change was applied.
func (p *Panel) SetAdmin(ctx context.Context, email string, promote bool) (bool, error) {
	verb, done := "Demote", "Demoted"
	if promote {
		verb, done = "Promote", "Promoted"
	}
	if !p.confirm.Confirm(fmt.Sprintf("%s %s?", verb, email)) {
		return false, nil
	}

	if err := p.client.SetAdmin(ctx, email, promote); err != nil {
		p.alert.Alert("❌ " + alertMessage(err, "Failed to update role"))
		return false, fmt.Errorf("set admin %s: %w", email, err)
	}
	p.alert.Alert(done + " successfully")
	if p.state != nil {
		p.state.setAdmin(email, promote)
	}
	return true, nil
}

// RemoveUser deletes email after confirmation. It reports whether the user
// was removed.
func (p *Panel) RemoveUser(ctx context.Context, email string) (bool, error) {
	if !p.confirm.Confirm(fmt.Sprintf("Remove user %s?", email)) {
		return false, nil
	}

	if err := p.client.RemoveUser(ctx, email); err != nil {
		p.alert.Alert("❌ " + alertMessage(err, "Server error"))
		return false, fmt.Errorf("remove user %s: %w", email, err)
	}
	p.alert.Alert("User removed.")
	if p.state != nil {
		p.state.remove(email)
	}
	return true, nil
}

// alertMessage prefers the server's error text.
func alertMessage(err error, fallback string) string {
	var ae *api.Error
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	if ae != nil {
		return fallback
	}
	return err.Error()
}
