// Package invites manages account invitations: the admin list and the
// public acceptance page.
package invites

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/api"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/permissions"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/validation"
)

const (
	DefaultExpiryDays = 7
	MaxExpiryDays     = 30

	// VerifyFailedMessage is shown when the verification call itself fails.
	VerifyFailedMessage = "Erro ao verificar convite"
)

type Backend interface {
	ListInvites(ctx context.Context) ([]models.Invite, error)
	CreateInvite(ctx context.Context, in api.NewInvite) (*models.Invite, error)
	DeleteInvite(ctx context.Context, id models.ID) error
	VerifyInvite(ctx context.Context, token string) (*models.InviteVerification, error)
	LegacyLoginURL(invite string) string
}

type Service struct {
	API Backend
	// FrontendURL is the base of the copyable invite links.
	FrontendURL string
	Caps        validation.CapabilitySource
}

func (s *Service) requireAdmin() error {
	c := permissions.For(nil)
	if s.Caps != nil {
		c = s.Caps.Capabilities()
	}
	return c.RequireAdmin()
}

func (s *Service) List(ctx context.Context) ([]models.Invite, error) {
	if err := s.requireAdmin(); err != nil {
		return nil, err
	}
	return s.API.ListInvites(ctx)
}

// Normalize fills the form defaults: level user and a 7 day expiry.
func Normalize(in api.NewInvite) (api.NewInvite, error) {
	in.Email = strings.TrimSpace(in.Email)
	var p validation.Problems
	if in.Email == "" {
		p = append(p, validation.Problem{Field: "email", Message: "Email é obrigatório"})
	}
	if in.AdminLevel == "" {
		in.AdminLevel = models.LevelUser
	}
	if !in.AdminLevel.Valid() {
		p = append(p, validation.Problem{Field: "admin_level", Message: "Nível de acesso inválido"})
	}
	if in.ExpiresIn == 0 {
		in.ExpiresIn = DefaultExpiryDays
	}
	if in.ExpiresIn < 1 || in.ExpiresIn > MaxExpiryDays {
		p = append(p, validation.Problem{Field: "expires_in", Message: fmt.Sprintf("A validade deve ser de 1 a %d dias", MaxExpiryDays)})
	}
	if len(p) > 0 {
		return in, p
	}
	return in, nil
}

// Create issues an invite and fills in its shareable link when the backend
// did not send one.
func (s *Service) Create(ctx context.Context, in api.NewInvite) (*models.Invite, error) {
	if err := s.requireAdmin(); err != nil {
		return nil, err
	}
	in, err := Normalize(in)
	if err != nil {
		return nil, err
	}
	inv, err := s.API.CreateInvite(ctx, in)
	if err != nil {
		return nil, err
	}
	if inv.InviteURL == "" && inv.Token != "" {
		inv.InviteURL = s.Link(inv.Token)
	}
	return inv, nil
}

func (s *Service) Delete(ctx context.Context, id models.ID, confirm func() bool) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	if confirm == nil || !confirm() {
		return validation.ErrNotConfirmed
	}
	return s.API.DeleteInvite(ctx, id)
}

// Link is the frontend acceptance URL for token.
func (s *Service) Link(token string) string {
	return strings.TrimRight(s.FrontendURL, "/") + "/invite?token=" + url.QueryEscape(token)
}

// Verify checks a token without a session. Any failure is folded into an
// invalid result carrying the message to show.
func (s *Service) Verify(ctx context.Context, token string) models.InviteVerification {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.InviteVerification{Valid: false, Error: api.InvalidInviteMessage}
	}
	v, err := s.API.VerifyInvite(ctx, token)
	if err != nil || v == nil {
		return models.InviteVerification{Valid: false, Error: VerifyFailedMessage}
	}
	return *v
}

// AcceptURL starts the backend login bound to the invite.
func (s *Service) AcceptURL(token string) string {
	return s.API.LegacyLoginURL(token)
}
