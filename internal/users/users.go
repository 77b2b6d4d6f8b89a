// Package users covers user administration and the signed-in user's own
// profile.
package users

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/api"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/media"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/permissions"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/validation"
)

type Backend interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	CreateUser(ctx context.Context, u api.NewUser) error
	UpdateUser(ctx context.Context, id models.ID, patch any) (*models.User, error)
	DeleteUser(ctx context.Context, id models.ID) error
	Upload(ctx context.Context, filename string, r io.Reader) (api.UploadResult, error)
}

// SessionUpdater merges fresh user data into the running session.
// *session.Session implements it.
type SessionUpdater interface {
	UpdateUser(fn func(u *models.User))
}

type Admin struct {
	API  Backend
	Caps validation.CapabilitySource
}

func (a *Admin) caps() permissions.Capabilities {
	if a.Caps == nil {
		return permissions.For(nil)
	}
	return a.Caps.Capabilities()
}

func (a *Admin) require() error {
	if !a.caps().AdminOr(permissions.ManageUsers) {
		return fmt.Errorf("%w (%s)", permissions.ErrForbidden, permissions.ManageUsers)
	}
	return nil
}

func (a *Admin) List(ctx context.Context) ([]models.User, error) {
	if err := a.require(); err != nil {
		return nil, err
	}
	return a.API.ListUsers(ctx)
}

// Create registers a user with the permission map of the chosen preset.
func (a *Admin) Create(ctx context.Context, email, fullName string, profile models.Profile) error {
	if err := a.require(); err != nil {
		return err
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return validation.Problems{{Field: "email", Message: "Email é obrigatório"}}
	}
	if profile == "" {
		profile = models.ProfileValidator
	}
	perms, ok := permissions.Preset(profile)
	if !ok {
		return validation.Problems{{Field: "profile", Message: "Selecione um perfil"}}
	}
	return a.API.CreateUser(ctx, api.NewUser{Email: email, FullName: strings.TrimSpace(fullName), Profile: profile, Permissions: perms})
}

func (a *Admin) SetNickname(ctx context.Context, id models.ID, nickname string) error {
	if err := a.require(); err != nil {
		return err
	}
	_, err := a.API.UpdateUser(ctx, id, map[string]string{"nickname": strings.TrimSpace(nickname)})
	return err
}

// SetManager assigns the user's manager; a zero id clears it.
func (a *Admin) SetManager(ctx context.Context, u models.User, managerID models.ID) error {
	if err := a.require(); err != nil {
		return err
	}
	if managerID == u.ID && !managerID.IsZero() {
		return validation.Problems{{Field: "manager_id", Message: "Um usuário não pode ser gerente de si mesmo"}}
	}
	var v any
	if !managerID.IsZero() {
		v = managerID
	}
	_, err := a.API.UpdateUser(ctx, u.ID, map[string]any{"manager_id": v})
	return err
}

// SavePermissions persists the editor's profile and map together, so a
// toggled preset is stored as personalizado.
func (a *Admin) SavePermissions(ctx context.Context, id models.ID, e *permissions.Editor) error {
	if err := a.require(); err != nil {
		return err
	}
	_, err := a.API.UpdateUser(ctx, id, e.Update())
	return err
}

// CanDelete reports whether c may delete target: never oneself and never
// the principal admin.
func CanDelete(c permissions.Capabilities, target models.User) bool {
	if !c.AdminOr(permissions.ManageUsers) {
		return false
	}
	if target.Is(c.Email()) || target.AdminLevel == models.LevelAdminPrincipal {
		return false
	}
	return true
}

func (a *Admin) Delete(ctx context.Context, target models.User, confirm func(models.User) bool) error {
	if !CanDelete(a.caps(), target) {
		return fmt.Errorf("%w: usuário não pode ser excluído", permissions.ErrForbidden)
	}
	if confirm == nil || !confirm(target) {
		return validation.ErrNotConfirmed
	}
	return a.API.DeleteUser(ctx, target.ID)
}

// Managers lists who may manage u: gerente profiles and both admin levels,
// excluding u.
func Managers(all []models.User, u models.User) []models.User {
	var out []models.User
	for _, m := range all {
		if m.ID == u.ID {
			continue
		}
		if m.Profile == models.ProfileManager || m.AdminLevel == models.LevelAdminPrincipal || m.AdminLevel == models.LevelAdminSecondary {
			out = append(out, m)
		}
	}
	return out
}

// ManagerName resolves the manager label shown next to a user.
func ManagerName(all []models.User, id *models.ID) string {
	if id == nil || id.IsZero() {
		return ""
	}
	for _, m := range all {
		if m.ID == *id {
			return m.DisplayName()
		}
	}
	return ""
}

// ProfileForm holds the fields a user edits on their own profile.
type ProfileForm struct {
	Nickname   string `json:"nickname"`
	Phone      string `json:"phone"`
	Department string `json:"department"`
}

func FormFor(u models.User) ProfileForm {
	return ProfileForm{Nickname: u.Nickname, Phone: u.Phone, Department: u.Department}
}

// Profile edits the signed-in user and keeps the session in step.
type Profile struct {
	API     Backend
	Caps    validation.CapabilitySource
	Session SessionUpdater
}

func (p *Profile) me() (*models.User, error) {
	var c permissions.Capabilities
	if p.Caps != nil {
		c = p.Caps.Capabilities()
	}
	u := c.User()
	if u == nil {
		return nil, permissions.ErrForbidden
	}
	return u, nil
}

// apply merges the backend echo into the session, or the local patch when
// the backend answered without the user.
func (p *Profile) apply(updated *models.User, local func(u *models.User)) {
	if p.Session == nil {
		return
	}
	p.Session.UpdateUser(func(u *models.User) {
		if updated != nil {
			*u = *updated
			return
		}
		local(u)
	})
}

func (p *Profile) Save(ctx context.Context, f ProfileForm) error {
	me, err := p.me()
	if err != nil {
		return err
	}
	f.Nickname = strings.TrimSpace(f.Nickname)
	updated, err := p.API.UpdateUser(ctx, me.ID, f)
	if err != nil {
		return err
	}
	p.apply(updated, func(u *models.User) {
		u.Nickname, u.Phone, u.Department = f.Nickname, f.Phone, f.Department
	})
	return nil
}

// UploadPhoto uploads an image and points profile_picture at it.
func (p *Profile) UploadPhoto(ctx context.Context, filename string, r io.Reader) (string, error) {
	me, err := p.me()
	if err != nil {
		return "", err
	}
	url, err := media.UploadImage(ctx, p.API, filename, r)
	if err != nil {
		return "", err
	}
	if err := p.setPicture(ctx, me.ID, url); err != nil {
		return "", err
	}
	return url, nil
}

func (p *Profile) RemovePhoto(ctx context.Context, confirm func() bool) error {
	me, err := p.me()
	if err != nil {
		return err
	}
	if confirm == nil || !confirm() {
		return validation.ErrNotConfirmed
	}
	return p.setPicture(ctx, me.ID, "")
}

func (p *Profile) setPicture(ctx context.Context, id models.ID, url string) error {
	updated, err := p.API.UpdateUser(ctx, id, map[string]string{"profile_picture": url})
	if err != nil {
		return err
	}
	p.apply(updated, func(u *models.User) { u.ProfilePicture = url })
	return nil
}
