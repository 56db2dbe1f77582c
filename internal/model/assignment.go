package model

import "time"

type Assignment struct {
	ID          int64  `json:"id,omitempty"`
	Title       string `json:"title"`
	Subject     string `json:"subject"`
	DueDatetime string `json:"due_datetime"`
}

// DueLayout is the local wall-clock layout the API accepts for due_datetime.
const DueLayout = "2006-01-02T15:04:05"

// Due parses DueDatetime. RFC 3339 values from the API and the local
// layout sent by the dashboard are both accepted.
func (a Assignment) Due(loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, a.DueDatetime); err == nil {
		return t, nil
	}
	return time.ParseInLocation(DueLayout, a.DueDatetime, loc)
}

type OverdueAssignment struct {
	StudentEmail string `json:"student_email"`
	Title        string `json:"title"`
}
