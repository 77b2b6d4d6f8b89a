package validation

import (
	"context"
	"fmt"
	"io"
	"log"
	"regexp"
	"strings"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/api"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/permissions"
)

// Backend is the slice of the API client the lifecycle needs.
type Backend interface {
	Lister
	GetRequest(ctx context.Context, id models.ID) (*models.ValidationRequest, error)
	CreateRequest(ctx context.Context, r api.NewRequest) (api.Result, error)
	ValidateRequest(ctx context.Context, id models.ID, v api.Verdict) (api.Result, error)
	CorrectRequest(ctx context.Context, id models.ID, c api.Correction) (api.Result, error)
	RevertRequest(ctx context.Context, id models.ID, reason string) (api.Result, error)
	DeleteRequest(ctx context.Context, id models.ID) error
	BulkUpdateDate(ctx context.Context, ids []models.ID, newDate string) (api.BulkDateResult, error)
}

type Lister interface {
	ListRequests(ctx context.Context, p api.ListParams) (models.RequestPage, error)
}

// CapabilitySource yields the current user's capabilities; *session.Session
// implements it.
type CapabilitySource interface {
	Capabilities() permissions.Capabilities
}

// Confirm asks the user to confirm a destructive action.
type Confirm func(r models.ValidationRequest) bool

// Service issues lifecycle intents. It never derives a status itself: each
// transition returns whatever record the backend reports. Controls the user
// could not see are refused locally with permissions.ErrForbidden.
type Service struct {
	API    Backend
	Caps   CapabilitySource
	Logger *log.Logger
}

func NewService(b Backend, caps CapabilitySource, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{API: b, Caps: caps, Logger: logger}
}

func (s *Service) caps() permissions.Capabilities {
	if s.Caps == nil {
		return permissions.For(nil)
	}
	return s.Caps.Capabilities()
}

func (s *Service) Get(ctx context.Context, id models.ID) (*models.ValidationRequest, error) {
	return s.API.GetRequest(ctx, id)
}

// Create submits a new request. Incomplete drafts fail with Problems and
// never reach the network.
func (s *Service) Create(ctx context.Context, d Draft) (api.Result, error) {
	if err := s.caps().Require(permissions.CreateValidation); err != nil {
		return api.Result{}, err
	}
	if err := d.Validate(); err != nil {
		return api.Result{}, err
	}
	res, err := s.API.CreateRequest(ctx, d.Request())
	if err != nil {
		return api.Result{}, err
	}
	s.Logger.Printf("[Lifecycle] created id=%s links=%d", res.ID, len(d.Links()))
	return res, nil
}

func (s *Service) Validate(ctx context.Context, r models.ValidationRequest, rv *Review) (api.Result, error) {
	if !ActionsFor(s.caps(), r).Validate {
		return api.Result{}, fmt.Errorf("%w: validação não atribuída a você ou já finalizada", permissions.ErrForbidden)
	}
	v, err := rv.Verdict()
	if err != nil {
		return api.Result{}, err
	}
	res, err := s.API.ValidateRequest(ctx, r.ID, v)
	if err != nil {
		return api.Result{}, err
	}
	s.Logger.Printf("[Lifecycle] validated id=%s links=%d", r.ID, len(v.ValidationPerLink))
	return res, nil
}

func (s *Service) Correct(ctx context.Context, r models.ValidationRequest, c *Correction) (api.Result, error) {
	if !Correctable(r.Status) {
		return api.Result{}, ErrNotCorrectable
	}
	if !ActionsFor(s.caps(), r).Correct {
		return api.Result{}, fmt.Errorf("%w: apenas o solicitante pode corrigir", permissions.ErrForbidden)
	}
	payload, err := c.Payload()
	if err != nil {
		return api.Result{}, err
	}
	res, err := s.API.CorrectRequest(ctx, r.ID, payload)
	if err != nil {
		return api.Result{}, err
	}
	s.Logger.Printf("[Lifecycle] corrected id=%s replaced=%d", r.ID, len(c.Expected()))
	return res, nil
}

func (s *Service) Revert(ctx context.Context, r models.ValidationRequest, reason string) (api.Result, error) {
	if err := CheckRevert(r, reason); err != nil {
		return api.Result{}, err
	}
	if err := s.caps().RequireAdmin(); err != nil {
		return api.Result{}, err
	}
	res, err := s.API.RevertRequest(ctx, r.ID, strings.TrimSpace(reason))
	if err != nil {
		return api.Result{}, err
	}
	s.Logger.Printf("[Lifecycle] reverted id=%s", r.ID)
	return res, nil
}

// Delete removes a request permanently after confirm approves it.
func (s *Service) Delete(ctx context.Context, r models.ValidationRequest, confirm Confirm) error {
	if !ActionsFor(s.caps(), r).Delete {
		return fmt.Errorf("%w (%s)", permissions.ErrForbidden, permissions.DeleteValidation)
	}
	if confirm == nil || !confirm(r) {
		return ErrNotConfirmed
	}
	if err := s.API.DeleteRequest(ctx, r.ID); err != nil {
		return err
	}
	s.Logger.Printf("[Lifecycle] deleted id=%s", r.ID)
	return nil
}

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// BulkUpdateDate overrides the creation date of several requests. It is
// gated by the bulk_edit_dates permission.
func (s *Service) BulkUpdateDate(ctx context.Context, ids []models.ID, newDate string) (api.BulkDateResult, error) {
	if err := s.caps().Require(permissions.BulkEditDates); err != nil {
		return api.BulkDateResult{}, err
	}
	var p Problems
	if len(ids) == 0 {
		p = append(p, Problem{"ids", "Selecione ao menos uma validação"})
	}
	if _, err := models.ParseTime(newDate); err != nil || !dateRe.MatchString(newDate) {
		p = append(p, Problem{"new_date", "Informe uma data válida (AAAA-MM-DD)"})
	}
	if len(p) > 0 {
		return api.BulkDateResult{}, p
	}
	res, err := s.API.BulkUpdateDate(ctx, ids, newDate)
	if err != nil {
		return api.BulkDateResult{}, err
	}
	s.Logger.Printf("[Lifecycle] bulk date override by=%s ids=%d date=%s", s.caps().Email(), len(ids), newDate)
	return res, nil
}
