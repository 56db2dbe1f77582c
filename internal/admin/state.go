package admin

import (
	"slices"

	"github.com/debuck1718/smartstudent/internal/model"
)

// Action is a row-level admin action.
type Action string

const (
	ActionPromote Action = "promote"
	ActionDemote  Action = "demote"
	ActionRemove  Action = "remove"
)

// State is the admin panel's in-memory view: the acting user and the full
// user list as loaded once from the API.
type State struct {
	Current model.SessionUser
	Users   []model.AdminUser
}

// Apply returns the users matching f, in list order.
func (s *State) Apply(f Filter) []model.AdminUser {
	out := make([]model.AdminUser, 0, len(s.Users))
	for _, u := range s.Users {
		if f.Match(u) {
			out = append(out, u)
		}
	}
	return out
}

// Schools returns the distinct schools in order of first appearance.
func (s *State) Schools() []string {
	var out []string
	for _, u := range s.Users {
		if school := u.School(); school != "" && !slices.Contains(out, school) {
			out = append(out, school)
		}
	}
	return out
}

// CanEdit reports whether the acting user may act on u: overseers may act
// on anyone, others only within their school, and nobody on themself.
func (s *State) CanEdit(u model.AdminUser) bool {
	if u.Email == s.Current.Email {
		return false
	}
	return s.Current.Role == model.RoleOverseer || u.InSchool(s.Current.School)
}

// Actions returns the actions offered on u's row.
func (s *State) Actions(u model.AdminUser) []Action {
	if !s.CanEdit(u) {
		return nil
	}
	if u.IsAdmin {
		return []Action{ActionDemote, ActionRemove}
	}
	return []Action{ActionPromote, ActionRemove}
}

func (s *State) setAdmin(email string, promote bool) {
	for i := range s.Users {
		if s.Users[i].Email == email {
			s.Users[i].IsAdmin = promote
		}
	}
}

func (s *State) remove(email string) {
	s.Users = slices.DeleteFunc(s.Users, func(u model.AdminUser) bool {
		return u.Email == email
	})
}

// Card is the rendered row for one user.
type Card struct {
	Name       string
	Email      string
	Badge      string
	Occupation string
	School     string
	Actions    []Action
}

// Cards renders the users matching f.
func (s *State) Cards(f Filter) []Card {
	users := s.Apply(f)
	cards := make([]Card, 0, len(users))
	for _, u := range users {
		cards = append(cards, s.card(u))
	}
	return cards
}

func (s *State) card(u model.AdminUser) Card {
	c := Card{
		Name:       u.Firstname + " " + u.Lastname,
		Email:      u.Email,
		Occupation: u.Occupation,
		School:     u.School(),
		Actions:    s.Actions(u),
	}
	if u.IsAdmin {
		c.Badge = "Admin"
		if u.Role == model.RoleOverseer {
			c.Badge = "Overseer"
		}
	}
	if c.Occupation == "" {
		c.Occupation = "N/A"
	}
	if c.School == "" {
		c.School = "-"
	}
	return c
}
