// Package goals renders monthly goal progress and lets admins maintain the
// target rows. Achieved counts and manager rollups come from the backend.
package goals

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/permissions"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/validation"
)

const monthLayout = "2006-01"

type Backend interface {
	ListGoals(ctx context.Context, month string) ([]models.Goal, error)
	GoalsProgress(ctx context.Context, month string) ([]models.GoalProgress, error)
	CreateGoal(ctx context.Context, g models.Goal) error
	UpdateGoal(ctx context.Context, id models.ID, g models.Goal) error
	DeleteGoal(ctx context.Context, id models.ID) error
}

func CurrentMonth(now time.Time) string { return now.Format(monthLayout) }

// ParseMonth accepts YYYY-MM and returns the first instant of the month.
func ParseMonth(s string) (time.Time, error) {
	t, err := time.Parse(monthLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("mês inválido %q (use AAAA-MM)", s)
	}
	return t, nil
}

// Row is one progress line ready for display.
type Row struct {
	models.GoalProgress
	Percent float64 `json:"percent"`
	// Bar is the progress bar fill, clamped to 0..100.
	Bar   int    `json:"bar"`
	Label string `json:"label"`
}

// Percent prefers the server figure and only computes one when the
// backend left it out.
func Percent(p models.GoalProgress) float64 {
	if p.Percentage > 0 || p.TargetCount <= 0 {
		return p.Percentage
	}
	return math.Round(float64(p.Achieved)/float64(p.TargetCount)*1000) / 10
}

func NewRow(p models.GoalProgress) Row {
	pct := Percent(p)
	bar := int(math.Round(pct))
	if bar > 100 {
		bar = 100
	}
	if bar < 0 {
		bar = 0
	}
	label := "Em andamento"
	switch {
	case pct >= 100:
		label = "Meta atingida"
	case p.Achieved == 0:
		label = "Sem progresso"
	}
	return Row{GoalProgress: p, Percent: pct, Bar: bar, Label: label}
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

// Progress returns the month's rows, managers first, then by percentage.
func (s *Service) Progress(ctx context.Context, month string) ([]Row, error) {
	if err := s.caps().RequireAny(permissions.ViewRanking, permissions.ViewDashboard); err != nil {
		return nil, err
	}
	if _, err := ParseMonth(month); err != nil {
		return nil, err
	}
	ps, err := s.API.GoalsProgress(ctx, month)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(ps))
	for _, p := range ps {
		rows = append(rows, NewRow(p))
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].IsManager != rows[j].IsManager {
			return bool(rows[i].IsManager)
		}
		return rows[i].Percent > rows[j].Percent
	})
	return rows, nil
}

func (s *Service) List(ctx context.Context, month string) ([]models.Goal, error) {
	if _, err := ParseMonth(month); err != nil {
		return nil, err
	}
	return s.API.ListGoals(ctx, month)
}

func check(g models.Goal) error {
	var p validation.Problems
	if g.UserID.IsZero() {
		p = append(p, validation.Problem{Field: "user_id", Message: "Selecione um usuário"})
	}
	if g.PackageID.IsZero() {
		p = append(p, validation.Problem{Field: "package_id", Message: "Selecione um pacote"})
	}
	if g.TargetCount <= 0 {
		p = append(p, validation.Problem{Field: "target_count", Message: "A meta deve ser maior que zero"})
	}
	if _, err := ParseMonth(g.Month); err != nil {
		p = append(p, validation.Problem{Field: "month", Message: "Informe o mês no formato AAAA-MM"})
	}
	if len(p) > 0 {
		return p
	}
	return nil
}

func (s *Service) Create(ctx context.Context, g models.Goal) error {
	if err := s.caps().RequireAdmin(); err != nil {
		return err
	}
	if err := check(g); err != nil {
		return err
	}
	return s.API.CreateGoal(ctx, g)
}

func (s *Service) Update(ctx context.Context, id models.ID, g models.Goal) error {
	if err := s.caps().RequireAdmin(); err != nil {
		return err
	}
	if err := check(g); err != nil {
		return err
	}
	return s.API.UpdateGoal(ctx, id, g)
}

func (s *Service) Delete(ctx context.Context, id models.ID) error {
	if err := s.caps().RequireAdmin(); err != nil {
		return err
	}
	return s.API.DeleteGoal(ctx, id)
}
