package permissions

import (
	"fmt"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"
)

type ProfileInfo struct {
	Profile     models.Profile
	Label       string
	Description string
}

var Profiles = []ProfileInfo{
	{models.ProfileValidator, "Validador", "Vê validações atribuídas, valida, vê ranking"},
	{models.ProfileRequester, "Solicitante", "Cria validações, vê todas validações, vê ranking"},
	{models.ProfileManager, "Gerente", "Faz quase tudo, menos gerenciar usuários"},
	{models.ProfileAdmin, "Admin", "Acesso total ao sistema"},
	{models.ProfileCustom, "Personalizado", "Permissões definidas manualmente"},
}

func presetGrants(p models.Profile) []Key {
	switch p {
	case models.ProfileValidator:
		return []Key{ViewDashboard, ViewAssigned, Validate, ViewRanking, ViewWiki}
	case models.ProfileRequester:
		return []Key{ViewDashboard, CreateValidation, ViewAllValidations, ViewRanking, ViewWiki}
	case models.ProfileManager:
		return []Key{ViewDashboard, CreateValidation, ViewAssigned, ViewAllValidations, Validate,
			ViewRanking, ViewReports, ManagePackages, ViewWiki}
	case models.ProfileAdmin:
		out := make([]Key, 0, len(Catalog))
		for _, d := range Catalog {
			out = append(out, d.Key)
		}
		return out
	}
	return nil
}

// Preset returns a fresh copy of a named preset's full map (every key
// present, granted or not). The custom profile has no preset.
func Preset(p models.Profile) (models.Permissions, bool) {
	if p == models.ProfileCustom || !p.Valid() {
		return nil, false
	}
	out := make(models.Permissions, len(Catalog))
	for _, d := range Catalog {
		out[string(d.Key)] = false
	}
	for _, k := range presetGrants(p) {
		out[string(k)] = true
	}
	return out, true
}

// ProfileOf is the profile a user is listed under: the principal admin is
// always shown as admin, users without a stored profile as validators.
func ProfileOf(u models.User) models.Profile {
	if u.AdminLevel == models.LevelAdminPrincipal {
		return models.ProfileAdmin
	}
	if u.Profile.Valid() {
		return u.Profile
	}
	return models.ProfileValidator
}

// Editor holds an in-progress permission edit for one user.
type Editor struct {
	profile     models.Profile
	permissions models.Permissions
}

// NewEditor starts from the stored profile and map, defaulting to the
// validator preset when either is missing.
func NewEditor(u models.User) *Editor {
	e := &Editor{profile: u.Profile}
	if !e.profile.Valid() {
		e.profile = models.ProfileValidator
	}
	if u.Permissions != nil {
		e.permissions = u.Permissions.Clone()
	} else {
		e.permissions, _ = Preset(models.ProfileValidator)
	}
	return e
}

func (e *Editor) Profile() models.Profile { return e.profile }

func (e *Editor) Permissions() models.Permissions { return e.permissions.Clone() }

// SelectProfile replaces the whole map with the preset. Choosing the custom
// profile keeps the current map as the starting point.
func (e *Editor) SelectProfile(p models.Profile) error {
	if !p.Valid() {
		return fmt.Errorf("perfil desconhecido: %q", p)
	}
	e.profile = p
	if perms, ok := Preset(p); ok {
		e.permissions = perms
	}
	return nil
}

// Set changes a single key. Any individual edit turns the profile into the
// custom one, even when the resulting map still equals a preset.
func (e *Editor) Set(k Key, v bool) error {
	if !Known(k) {
		return fmt.Errorf("permissão desconhecida: %q", k)
	}
	if e.permissions == nil {
		e.permissions = models.Permissions{}
	}
	e.permissions[string(k)] = v
	e.profile = models.ProfileCustom
	return nil
}

func (e *Editor) Toggle(k Key) error {
	return e.Set(k, !e.permissions[string(k)])
}

// Update is the body persisted with the users endpoint.
type Update struct {
	Profile     models.Profile     `json:"profile"`
	Permissions models.Permissions `json:"permissions"`
}

func (e *Editor) Update() Update {
	return Update{Profile: e.profile, Permissions: e.Permissions()}
}
