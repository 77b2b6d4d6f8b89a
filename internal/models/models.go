package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Permissions is the granular capability map stored on a user. A key grants
// access only when its value is exactly true.
type Permissions map[string]bool

// UnmarshalJSON tolerates the shapes the backend has emitted over time: a
// JSON object, a JSON-encoded string holding an object, and an empty PHP
// array. Non-boolean values never grant access.
func (p *Permissions) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	out := Permissions{}
	if len(b) == 0 || bytes.Equal(b, []byte("null")) || bytes.Equal(b, []byte("[]")) {
		*p = out
		return nil
	}
	if b[0] == '"' {
		var inner string
		if err := json.Unmarshal(b, &inner); err != nil {
			return err
		}
		if strings.TrimSpace(inner) == "" {
			*p = out
			return nil
		}
		b = []byte(inner)
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		if bv, ok := v.(bool); ok {
			out[k] = bv
		} else {
			out[k] = false
		}
	}
	*p = out
	return nil
}

func (p Permissions) Clone() Permissions {
	out := make(Permissions, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

type User struct {
	ID             ID          `json:"id"`
	Email          string      `json:"email"`
	FullName       string      `json:"full_name"`
	Nickname       string      `json:"nickname,omitempty"`
	AdminLevel     AdminLevel  `json:"admin_level"`
	Profile        Profile     `json:"profile,omitempty"`
	Permissions    Permissions `json:"permissions,omitempty"`
	ManagerID      *ID         `json:"manager_id,omitempty"`
	ProfilePicture string      `json:"profile_picture,omitempty"`
	Phone          string      `json:"phone,omitempty"`
	Department     string      `json:"department,omitempty"`
	GoogleID       string      `json:"google_id,omitempty"`
	CreatedAt      Timestamp   `json:"created_at"`
}

// DisplayName prefers the nickname, then the full name, then the email.
func (u User) DisplayName() string {
	if n := strings.TrimSpace(u.Nickname); n != "" {
		return n
	}
	if n := strings.TrimSpace(u.FullName); n != "" {
		return n
	}
	return u.Email
}

// FirstName is the first word of the full name, or "Usuário".
func (u User) FirstName() string {
	if f := strings.Fields(u.FullName); len(f) > 0 {
		return f[0]
	}
	return "Usuário"
}

func (u User) Is(email string) bool {
	return email != "" && strings.EqualFold(u.Email, email)
}

type LinkValidation struct {
	URL          string     `json:"url"`
	Status       LinkStatus `json:"status"`
	Observations string     `json:"observations"`
}

type HistoryEntry struct {
	Action    string    `json:"action"`
	Timestamp Timestamp `json:"timestamp"`
	User      string    `json:"user"`
	Details   string    `json:"details,omitempty"`
}

type ValidationRequest struct {
	ID                ID               `json:"id"`
	Title             string           `json:"title"`
	Description       string           `json:"description,omitempty"`
	DescriptionImages []string         `json:"description_images,omitempty"`
	PackageID         ID               `json:"package_id"`
	PackageName       string           `json:"package_name,omitempty"`
	Priority          Priority         `json:"priority"`
	Status            Status           `json:"status"`
	RequestedBy       string           `json:"requested_by"`
	AssignedTo        string           `json:"assigned_to"`
	ValidatedBy       string           `json:"validated_by,omitempty"`
	ContentURLs       []string         `json:"content_urls"`
	ValidationPerLink []LinkValidation `json:"validation_per_link"`
	FinalObservations string           `json:"final_observations,omitempty"`
	CorrectionNotes   string           `json:"correction_notes,omitempty"`
	History           []HistoryEntry   `json:"history,omitempty"`
	CreatedAt         Timestamp        `json:"created_at"`
	ValidatedAt       Timestamp        `json:"validated_at"`
	ReturnCount       Count            `json:"return_count"`
	ApprovedLinks     Count            `json:"approved_links_count,omitempty"`
	TotalLinks        Count            `json:"total_links_count,omitempty"`
}

// LinkCounts returns approved and total link counts, falling back to the
// content list when the backend omits the counters.
func (r ValidationRequest) LinkCounts() (approved, total int) {
	total = int(r.TotalLinks)
	if total == 0 {
		total = len(r.ContentURLs)
	}
	approved = int(r.ApprovedLinks)
	if approved == 0 {
		for _, l := range r.ValidationPerLink {
			if l.Status == LinkApproved {
				approved++
			}
		}
	}
	return approved, total
}

// DueAt is the advisory deadline implied by the priority.
func (r ValidationRequest) DueAt() time.Time {
	if r.CreatedAt.IsZero() {
		return time.Time{}
	}
	return r.CreatedAt.Add(r.Priority.SLA())
}

// Overdue reports whether an open request passed its advisory deadline.
func (r ValidationRequest) Overdue(now time.Time) bool {
	due := r.DueAt()
	return r.Status.Open() && !due.IsZero() && now.After(due)
}

// LastHistory returns the most recent entry with the given action.
func (r ValidationRequest) LastHistory(action string) (HistoryEntry, bool) {
	for i := len(r.History) - 1; i >= 0; i-- {
		if r.History[i].Action == action {
			return r.History[i], true
		}
	}
	return HistoryEntry{}, false
}

type Criterion struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    Flag   `json:"required"`
	Weight      Count  `json:"weight"`
}

type Package struct {
	ID          ID          `json:"id,omitempty"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Type        PackageType `json:"type"`
	Active      Flag        `json:"active"`
	Criteria    []Criterion `json:"criteria"`
}

type Goal struct {
	ID          ID     `json:"id,omitempty"`
	UserID      ID     `json:"user_id"`
	PackageID   ID     `json:"package_id"`
	TargetCount Count  `json:"target_count"`
	Month       string `json:"month"`
	UserName    string `json:"user_name,omitempty"`
	PackageName string `json:"package_name,omitempty"`
}

// GoalProgress is one server-aggregated row. For managers Achieved already
// includes the team rollup.
type GoalProgress struct {
	UserID      ID      `json:"user_id"`
	UserName    string  `json:"user_name,omitempty"`
	PackageID   ID      `json:"package_id"`
	PackageName string  `json:"package_name,omitempty"`
	Month       string  `json:"month"`
	TargetCount Count   `json:"target_count"`
	Achieved    Count   `json:"achieved_count"`
	Percentage  float64 `json:"percentage"`
	IsManager   Flag    `json:"is_manager,omitempty"`
	TeamSize    Count   `json:"team_size,omitempty"`
}

type Invite struct {
	ID         ID           `json:"id"`
	Email      string       `json:"email"`
	AdminLevel AdminLevel   `json:"admin_level"`
	Token      string       `json:"token,omitempty"`
	Status     InviteStatus `json:"status"`
	ExpiresAt  Timestamp    `json:"expires_at"`
	CreatedAt  Timestamp    `json:"created_at"`
	InviteURL  string       `json:"invite_url,omitempty"`
}

type InviteVerification struct {
	Valid      bool       `json:"valid"`
	Email      string     `json:"email,omitempty"`
	AdminLevel AdminLevel `json:"admin_level,omitempty"`
	ExpiresAt  Timestamp  `json:"expires_at"`
	Error      string     `json:"error,omitempty"`
}

type Stats struct {
	Total    Count `json:"total"`
	Pending  Count `json:"pending"`
	Approved Count `json:"approved"`
	Rejected Count `json:"rejected"`
}

type PageMeta struct {
	Page  Count `json:"page"`
	Pages Count `json:"pages"`
	Total Count `json:"total"`
}

type RequestPage struct {
	Items []ValidationRequest `json:"items"`
	Meta  PageMeta            `json:"meta"`
}
