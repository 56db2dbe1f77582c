package model

// Role names used by the admin panel.
const (
	RoleOverseer = "overseer"
	RoleAdmin    = "admin"
	RoleStudent  = "student"
	RoleTeacher  = "teacher"
)

type UserInfo struct {
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Email     string `json:"email"`
}

// SessionUser is the acting user as reported by /api/session.
type SessionUser struct {
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
	Role    string `json:"role"`
	School  string `json:"school"`
}

type Session struct {
	LoggedIn bool         `json:"loggedIn"`
	User     *SessionUser `json:"user"`
}

// AdminUser is one row of /api/admin/users.
type AdminUser struct {
	Firstname     string `json:"firstname"`
	Lastname      string `json:"lastname"`
	Email         string `json:"email"`
	IsAdmin       bool   `json:"is_admin"`
	Role          string `json:"role,omitempty"`
	Occupation    string `json:"occupation,omitempty"`
	SchoolName    string `json:"schoolName,omitempty"`
	TeacherSchool string `json:"teacherSchool,omitempty"`
}

// School returns the student school, falling back to the teacher school.
func (u AdminUser) School() string {
	if u.SchoolName != "" {
		return u.SchoolName
	}
	return u.TeacherSchool
}

// InSchool reports whether either school field equals school.
func (u AdminUser) InSchool(school string) bool {
	return school != "" && (u.SchoolName == school || u.TeacherSchool == school)
}

type ClassStudent struct {
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Email     string `json:"email"`
}

type Feedback struct {
	ID           int64  `json:"id"`
	StudentEmail string `json:"student_email"`
	Message      string `json:"message,omitempty"`
}
