// Package reports builds the read-only views: dashboard, ranking and the
// activity report.
package reports

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/api"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/permissions"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/validation"
	"golang.org/x/sync/errgroup"
)

const (
	RecentLimit = 5
	TopUsers    = 10
	ReportRows  = 20
	dateLayout  = "2006-01-02"
)

type Backend interface {
	validation.Lister
	ListAllRequests(ctx context.Context, p api.ListParams) ([]models.ValidationRequest, error)
	Stats(ctx context.Context, startDate, endDate string) (models.Stats, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

type Service struct {
	API  Backend
	Caps validation.CapabilitySource
}

func (s *Service) caps() permissions.Capabilities {
	if s.Caps == nil {
		return permissions.For(nil)
	}
	return s.Caps.Capabilities()
}

type Dashboard struct {
	FirstName string                     `json:"first_name"`
	Stats     models.Stats               `json:"stats"`
	Recent    []models.ValidationRequest `json:"recent"`
}

// Dashboard loads the counters and the most recent requests in parallel.
func (s *Service) Dashboard(ctx context.Context, startDate, endDate string) (Dashboard, error) {
	c := s.caps()
	if !c.Authenticated() {
		return Dashboard{}, permissions.ErrForbidden
	}
	d := Dashboard{FirstName: c.User().FirstName()}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st, err := s.API.Stats(gctx, startDate, endDate)
		d.Stats = st
		return err
	})
	var recent []models.ValidationRequest
	g.Go(func() error {
		page, err := s.API.ListRequests(gctx, api.ListParams{Page: 1, Limit: RecentLimit})
		recent = page.Items
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	if len(recent) > RecentLimit {
		recent = recent[:RecentLimit]
	}
	d.Recent = recent
	return d, nil
}

// Ranking loads users and requests and scores them.
func (s *Service) Ranking(ctx context.Context) (active, inactive []Entry, err error) {
	if err := s.caps().Require(permissions.ViewRanking); err != nil {
		return nil, nil, err
	}
	users, requests, err := s.load(ctx, api.ListParams{})
	if err != nil {
		return nil, nil, err
	}
	active, inactive = Rank(users, requests)
	return active, inactive, nil
}

func (s *Service) load(ctx context.Context, p api.ListParams) ([]models.User, []models.ValidationRequest, error) {
	var users []models.User
	var requests []models.ValidationRequest
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		users, err = s.API.ListUsers(gctx)
		return err
	})
	g.Go(func() (err error) {
		requests, err = s.API.ListAllRequests(gctx, p)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return users, requests, nil
}

// Report loads the activity report. Dates go to the backend; user and
// status filters are applied locally.
func (s *Service) Report(ctx context.Context, f Filter) (Report, error) {
	if !s.caps().AdminOr(permissions.ViewReports) {
		return Report{}, permissions.ErrForbidden
	}
	users, requests, err := s.load(ctx, api.ListParams{StartDate: f.StartDate, EndDate: f.EndDate})
	if err != nil {
		return Report{}, err
	}
	return Build(f, requests, users), nil
}

// Entry is one user's ranking line.
type Entry struct {
	User               models.User `json:"user"`
	Score              int         `json:"score"`
	ApprovalsMade      int         `json:"approvals_made"`
	ApprovalsReceived  int         `json:"approvals_received"`
	PartialReceived    int         `json:"partial_received"`
	RejectionsReceived int         `json:"rejections_received"`
	ReturnPenalty      int         `json:"return_penalty"`
	Active             bool        `json:"active"`
}

// Rank scores every user:
//
//	max(0, approvalsMade + 2*approvalsReceived + partialReceived - rejectionsReceived - sum(return_count))
//
// Users are sorted by score, ties keep the user list order. A user is
// active when any of the four counters is non-zero.
func Rank(users []models.User, requests []models.ValidationRequest) (active, inactive []Entry) {
	entries := make([]Entry, 0, len(users))
	for _, u := range users {
		e := Entry{User: u}
		for _, r := range requests {
			if u.Is(r.ValidatedBy) && r.Status == models.StatusApproved {
				e.ApprovalsMade++
			}
			if !u.Is(r.RequestedBy) {
				continue
			}
			switch r.Status {
			case models.StatusApproved:
				e.ApprovalsReceived++
			case models.StatusPartialApproved:
				e.PartialReceived++
			case models.StatusRejected:
				e.RejectionsReceived++
			}
			if r.ReturnCount > 0 {
				e.ReturnPenalty += int(r.ReturnCount)
			}
		}
		score := e.ApprovalsMade + 2*e.ApprovalsReceived + e.PartialReceived - e.RejectionsReceived - e.ReturnPenalty
		if score < 0 {
			score = 0
		}
		e.Score = score
		e.Active = e.ApprovalsMade > 0 || e.ApprovalsReceived > 0 || e.PartialReceived > 0 || e.RejectionsReceived > 0
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })
	for _, e := range entries {
		if e.Active {
			active = append(active, e)
		} else {
			inactive = append(inactive, e)
		}
	}
	return active, inactive
}

type Filter struct {
	StartDate string        `json:"start_date"`
	EndDate   string        `json:"end_date"`
	User      string        `json:"user,omitempty"`
	Status    models.Status `json:"status,omitempty"`
}

// DefaultFilter covers the calendar month containing now.
func DefaultFilter(now time.Time) Filter {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	last := first.AddDate(0, 1, -1)
	return Filter{StartDate: first.Format(dateLayout), EndDate: last.Format(dateLayout)}
}

func (f Filter) match(r models.ValidationRequest) bool {
	day := ""
	if !r.CreatedAt.IsZero() {
		day = r.CreatedAt.Format(dateLayout)
	}
	if day != "" && f.StartDate != "" && day < f.StartDate {
		return false
	}
	if day != "" && f.EndDate != "" && day > f.EndDate {
		return false
	}
	if f.User != "" && !strings.EqualFold(r.RequestedBy, f.User) && !strings.EqualFold(r.AssignedTo, f.User) && !strings.EqualFold(r.ValidatedBy, f.User) {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	return true
}

type Summary struct {
	Total        int     `json:"total"`
	TotalLinks   int     `json:"total_links"`
	Approved     int     `json:"approved"`
	ApprovalRate float64 `json:"approval_rate"`
	AvgHours     float64 `json:"avg_hours"`
}

type StatusCount struct {
	Status models.Status `json:"status"`
	Label  string        `json:"label"`
	Count  int           `json:"count"`
}

type UserActivity struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	Requested int    `json:"requested"`
	Validated int    `json:"validated"`
}

type Report struct {
	Filter   Filter                     `json:"filter"`
	Summary  Summary                    `json:"summary"`
	Statuses []StatusCount              `json:"statuses"`
	Users    []UserActivity             `json:"users"`
	Rows     []models.ValidationRequest `json:"rows"`
	Matched  int                        `json:"matched"`
}

func round1(f float64) float64 { return math.Round(f*10) / 10 }

// Build computes the report from already fetched data.
func Build(f Filter, requests []models.ValidationRequest, users []models.User) Report {
	rep := Report{Filter: f}
	var matched []models.ValidationRequest
	for _, r := range requests {
		if f.match(r) {
			matched = append(matched, r)
		}
	}
	rep.Matched = len(matched)

	var hours float64
	var validated int
	counts := map[models.Status]int{}
	var order []models.Status
	activity := map[string]*UserActivity{}
	var emails []string
	touch := func(email string) *UserActivity {
		key := strings.ToLower(email)
		if a, ok := activity[key]; ok {
			return a
		}
		a := &UserActivity{Email: email, Name: nameFor(email, users)}
		activity[key] = a
		emails = append(emails, key)
		return a
	}

	for _, r := range matched {
		_, total := r.LinkCounts()
		rep.Summary.TotalLinks += total
		if r.Status == models.StatusApproved {
			rep.Summary.Approved++
		}
		if !r.ValidatedAt.IsZero() && !r.CreatedAt.IsZero() {
			hours += r.ValidatedAt.Sub(r.CreatedAt.Time).Hours()
			validated++
		}
		if counts[r.Status] == 0 {
			order = append(order, r.Status)
		}
		counts[r.Status]++
		touch(r.RequestedBy).Requested++
		if r.ValidatedBy != "" {
			touch(r.ValidatedBy).Validated++
		}
	}

	rep.Summary.Total = len(matched)
	if rep.Summary.Total > 0 {
		rep.Summary.ApprovalRate = round1(float64(rep.Summary.Approved) / float64(rep.Summary.Total) * 100)
	}
	if validated > 0 {
		rep.Summary.AvgHours = round1(hours / float64(validated))
	}
	for _, st := range order {
		rep.Statuses = append(rep.Statuses, StatusCount{Status: st, Label: st.Label(), Count: counts[st]})
	}
	for _, e := range emails {
		rep.Users = append(rep.Users, *activity[e])
	}
	sort.SliceStable(rep.Users, func(i, j int) bool {
		return rep.Users[i].Requested+rep.Users[i].Validated > rep.Users[j].Requested+rep.Users[j].Validated
	})
	if len(rep.Users) > TopUsers {
		rep.Users = rep.Users[:TopUsers]
	}
	if len(matched) > ReportRows {
		matched = matched[:ReportRows]
	}
	rep.Rows = matched
	return rep
}

// nameFor prefers nickname, then full name, then the email's local part.
func nameFor(email string, users []models.User) string {
	for _, u := range users {
		if u.Is(email) {
			if u.Nickname != "" {
				return u.Nickname
			}
			if u.FullName != "" {
				return u.FullName
			}
		}
	}
	local, _, _ := strings.Cut(email, "@")
	return local
}
