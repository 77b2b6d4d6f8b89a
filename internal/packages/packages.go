// Package packages manages validation packages: named sets of review
// criteria for a type of content.
package packages

import (
	"context"
	"fmt"
	"strings"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/permissions"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/validation"
)

const (
	MinWeight = 1
	MaxWeight = 5
)

type Backend interface {
	ListPackages(ctx context.Context, activeOnly bool) ([]models.Package, error)
	GetPackage(ctx context.Context, id models.ID) (*models.Package, error)
	CreatePackage(ctx context.Context, p models.Package) error
	UpdatePackage(ctx context.Context, id models.ID, patch any) error
	DeletePackage(ctx context.Context, id models.ID) error
}

// Form is the package editor. New forms start active, typed artwork, with
// one empty required criterion.
type Form struct {
	Name        string
	Description string
	Type        models.PackageType
	Active      bool
	Criteria    []models.Criterion
}

func NewForm(p *models.Package) Form {
	if p == nil {
		return Form{
			Type:     models.PackageArtwork,
			Active:   true,
			Criteria: []models.Criterion{{Required: true, Weight: MinWeight}},
		}
	}
	f := Form{
		Name:        p.Name,
		Description: p.Description,
		Type:        p.Type,
		Active:      bool(p.Active),
		Criteria:    append([]models.Criterion(nil), p.Criteria...),
	}
	if f.Type == "" {
		f.Type = models.PackageArtwork
	}
	if len(f.Criteria) == 0 {
		f.Criteria = []models.Criterion{{Required: true, Weight: MinWeight}}
	}
	return f
}

// Package validates the form and returns the payload with unnamed criteria
// dropped.
func (f Form) Package() (models.Package, error) {
	var p validation.Problems
	if strings.TrimSpace(f.Name) == "" {
		p = append(p, validation.Problem{Field: "name", Message: "Informe o nome do pacote"})
	}
	if !f.Type.Valid() {
		p = append(p, validation.Problem{Field: "type", Message: "Tipo de pacote inválido"})
	}
	var criteria []models.Criterion
	for i, c := range f.Criteria {
		if strings.TrimSpace(c.Name) == "" {
			continue
		}
		if c.Weight < MinWeight || c.Weight > MaxWeight {
			p = append(p, validation.Problem{
				Field:   fmt.Sprintf("criteria[%d].weight", i),
				Message: fmt.Sprintf("O peso deve estar entre %d e %d", MinWeight, MaxWeight),
			})
		}
		c.Name = strings.TrimSpace(c.Name)
		criteria = append(criteria, c)
	}
	if len(criteria) == 0 {
		p = append(p, validation.Problem{Field: "criteria", Message: "Adicione pelo menos um critério"})
	}
	if len(p) > 0 {
		return models.Package{}, p
	}
	return models.Package{
		Name:        strings.TrimSpace(f.Name),
		Description: f.Description,
		Type:        f.Type,
		Active:      models.Flag(f.Active),
		Criteria:    criteria,
	}, nil
}

type Service struct {
	API  Backend
	Caps validation.CapabilitySource
}

func (s *Service) require() error {
	c := permissions.For(nil)
	if s.Caps != nil {
		c = s.Caps.Capabilities()
	}
	if !c.AdminOr(permissions.ManagePackages) {
		return fmt.Errorf("%w (%s)", permissions.ErrForbidden, permissions.ManagePackages)
	}
	return nil
}

// List returns every package, or only the active ones. The active list is
// what the new-request form offers and needs no management permission.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]models.Package, error) {
	if !activeOnly {
		if err := s.require(); err != nil {
			return nil, err
		}
	}
	return s.API.ListPackages(ctx, activeOnly)
}

// Save creates the package when id is zero and updates it otherwise.
func (s *Service) Save(ctx context.Context, id models.ID, f Form) error {
	if err := s.require(); err != nil {
		return err
	}
	p, err := f.Package()
	if err != nil {
		return err
	}
	if id.IsZero() {
		return s.API.CreatePackage(ctx, p)
	}
	return s.API.UpdatePackage(ctx, id, p)
}

// SetActive flips the active flag without touching anything else.
func (s *Service) SetActive(ctx context.Context, id models.ID, active bool) error {
	if err := s.require(); err != nil {
		return err
	}
	return s.API.UpdatePackage(ctx, id, map[string]bool{"active": active})
}

func (s *Service) Delete(ctx context.Context, id models.ID) error {
	if err := s.require(); err != nil {
		return err
	}
	return s.API.DeletePackage(ctx, id)
}
