package admin

import (
	"strings"

	"github.com/debuck1718/smartstudent/internal/model"
)

// All selects every school or role.
const All = "all"

// Filter narrows the user list. Empty fields behave like All.
type Filter struct {
	School string
	Role   string
	Query  string
}

// Match reports whether u passes every part of the filter.
func (f Filter) Match(u model.AdminUser) bool {
	return f.matchSchool(u) && f.matchRole(u) && f.matchQuery(u)
}

func (f Filter) matchSchool(u model.AdminUser) bool {
	return f.School == "" || f.School == All || u.InSchool(f.School)
}

func (f Filter) matchRole(u model.AdminUser) bool {
	switch f.Role {
	case "", All:
		return true
	case model.RoleAdmin:
		return u.IsAdmin
	default:
		return u.Occupation == f.Role
	}
}

func (f Filter) matchQuery(u model.AdminUser) bool {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(u.Firstname+" "+u.Lastname+" "+u.Email), q)
}

// RoleOptions are the role filter choices in display order.
var RoleOptions = []string{All, model.RoleStudent, model.RoleTeacher, model.RoleAdmin}
