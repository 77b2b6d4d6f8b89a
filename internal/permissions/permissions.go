// Package permissions resolves what the signed-in user may do. Two
// mechanisms coexist: the legacy admin level and the granular permission
// map. Every capability question goes through Capabilities so callers never
// branch on either mechanism themselves.
package permissions

import (
	"errors"
	"fmt"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"
)

type Key string

const (
	ViewDashboard      Key = "view_dashboard"
	CreateValidation   Key = "create_validation"
	ViewAssigned       Key = "view_assigned"
	ViewAllValidations Key = "view_all_validations"
	Validate           Key = "validate"
	ViewRanking        Key = "view_ranking"
	ViewReports        Key = "view_reports"
	ManagePackages     Key = "manage_packages"
	ManageUsers        Key = "manage_users"
	ViewWiki           Key = "view_wiki"

	// Administrative keys that used to be hardwired to the admin level or
	// to a single operator account.
	DeleteValidation Key = "delete_validation"
	BulkEditDates    Key = "bulk_edit_dates"
)

type Definition struct {
	Key   Key
	Label string
	Group string
}

// Catalog lists every key in the order the permission editor shows them.
var Catalog = []Definition{
	{ViewDashboard, "Ver Dashboard", "Visualização"},
	{CreateValidation, "Criar Validações", "Validações"},
	{ViewAssigned, "Ver Validações Atribuídas", "Validações"},
	{ViewAllValidations, "Ver Todas Validações", "Validações"},
	{Validate, "Validar Conteúdos", "Validações"},
	{ViewRanking, "Ver Ranking", "Visualização"},
	{ViewReports, "Ver Relatórios", "Administração"},
	{ManagePackages, "Gerenciar Pacotes", "Administração"},
	{ManageUsers, "Gerenciar Usuários", "Administração"},
	{ViewWiki, "Ver Wiki", "Visualização"},
	{DeleteValidation, "Excluir Validações", "Administração"},
	{BulkEditDates, "Alterar Datas em Lote", "Administração"},
}

func Known(k Key) bool {
	for _, d := range Catalog {
		if d.Key == k {
			return true
		}
	}
	return false
}

// ErrForbidden is returned when an action is attempted without the
// capability it needs.
var ErrForbidden = errors.New("você não tem permissão para esta ação")

// Capabilities is the derived view of a session user. The zero value
// represents "no session" and denies everything.
type Capabilities struct {
	user    *models.User
	isAdmin bool
	isUser  bool
	isGuest bool
}

// For derives capabilities once per user change. u may be nil.
func For(u *models.User) Capabilities {
	if u == nil {
		return Capabilities{}
	}
	cp := *u
	cp.Permissions = u.Permissions.Clone()
	return Capabilities{
		user:    &cp,
		isAdmin: u.AdminLevel == models.LevelAdminPrincipal,
		isUser:  u.AdminLevel == models.LevelUser || u.AdminLevel == models.LevelAdminPrincipal,
		isGuest: u.AdminLevel == models.LevelGuest,
	}
}

func (c Capabilities) Authenticated() bool { return c.user != nil }

// User returns a copy of the session user, or nil without a session.
func (c Capabilities) User() *models.User {
	if c.user == nil {
		return nil
	}
	cp := *c.user
	return &cp
}

func (c Capabilities) Email() string {
	if c.user == nil {
		return ""
	}
	return c.user.Email
}

func (c Capabilities) IsAdmin() bool { return c.isAdmin }
func (c Capabilities) IsUser() bool  { return c.isUser }
func (c Capabilities) IsGuest() bool { return c.isGuest }

// Can reports whether the user holds key. The principal admin holds every key.
func (c Capabilities) Can(key Key) bool {
	if c.user == nil {
		return false
	}
	if c.isAdmin {
		return true
	}
	return c.user.Permissions[string(key)]
}

func (c Capabilities) HasAnyPermission(keys ...Key) bool {
	if c.user == nil {
		return false
	}
	if c.isAdmin {
		return true
	}
	for _, k := range keys {
		if c.user.Permissions[string(k)] {
			return true
		}
	}
	return false
}

// HasPermission is the legacy level check: membership of the user's admin
// level in levels. It ignores the permission map.
func (c Capabilities) HasPermission(levels ...models.AdminLevel) bool {
	if c.user == nil {
		return false
	}
	for _, l := range levels {
		if c.user.AdminLevel == l {
			return true
		}
	}
	return false
}

// AdminOr reports whether the user is the principal admin or holds key.
// Several screens gate on exactly this combination.
func (c Capabilities) AdminOr(key Key) bool {
	return c.isAdmin || c.Can(key)
}

// Require returns ErrForbidden unless Can(key).
func (c Capabilities) Require(key Key) error {
	if c.Can(key) {
		return nil
	}
	return fmt.Errorf("%w (%s)", ErrForbidden, key)
}

// RequireAny returns ErrForbidden unless HasAnyPermission(keys...).
func (c Capabilities) RequireAny(keys ...Key) error {
	if c.HasAnyPermission(keys...) {
		return nil
	}
	return fmt.Errorf("%w (%v)", ErrForbidden, keys)
}

// RequireAdmin returns ErrForbidden unless the user is the principal admin.
func (c Capabilities) RequireAdmin() error {
	if c.isAdmin {
		return nil
	}
	return fmt.Errorf("%w (admin)", ErrForbidden)
}
