package crm

import (
	"fmt"
	"regexp"
)

// Status is the pipeline state of a lead.
type Status string

const (
	StatusNew         Status = "New"
	StatusContacted   Status = "Contacted"
	StatusQualified   Status = "Qualified"
	StatusUnqualified Status = "Unqualified"
)

// Statuses lists every valid lead status in pipeline order.
var Statuses = []Status{StatusNew, StatusContacted, StatusQualified, StatusUnqualified}

// ParseStatus returns the Status named s. Names are case-sensitive.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Valid reports whether s is one of the four lead statuses.
func (s Status) Valid() bool {
	_, err := ParseStatus(string(s))
	return err == nil
}

type Lead struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Company string `json:"company"`
	Email   string `json:"email"`
	Source  string `json:"source"`
	Score   int    `json:"score"`
	Status  Status `json:"status"`
}

// LeadUpdate carries the fields editable on an existing lead.
type LeadUpdate struct {
	Email  string `json:"email"`
	Status string `json:"status"`
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether s looks like an email address.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// ValidateLeadUpdate checks every field of u and returns a *ValidationError
// listing each bad field, or nil.
func ValidateLeadUpdate(u LeadUpdate) error {
	fields := make(map[string]string)
	if u.Email == "" {
		fields["email"] = "email is required"
	} else if !ValidEmail(u.Email) {
		fields["email"] = "please enter a valid email address"
	}
	if _, err := ParseStatus(u.Status); err != nil {
		fields["status"] = fmt.Sprintf("status must be one of %v", Statuses)
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Validate checks the invariants a stored lead must satisfy.
func (l Lead) Validate() error {
	fields := make(map[string]string)
	if !l.Status.Valid() {
		fields["status"] = fmt.Sprintf("unknown status %q", l.Status)
	}
	if l.Score < 0 || l.Score > 100 {
		fields["score"] = fmt.Sprintf("score %d out of range 0-100", l.Score)
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
