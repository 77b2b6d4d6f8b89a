package permissions

import "github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"

type NavItem struct {
	Name  string
	Href  string
	Icon  string
	Level []models.AdminLevel
}

var (
	everyone  = []models.AdminLevel{models.LevelGuest, models.LevelUser, models.LevelAdminPrincipal}
	members   = []models.AdminLevel{models.LevelUser, models.LevelAdminPrincipal}
	adminOnly = []models.AdminLevel{models.LevelAdminPrincipal}
)

// NavItems is the shell menu, gated by the legacy admin level.
var NavItems = []NavItem{
	{"Dashboard", "/dashboard", "LayoutDashboard", everyone},
	{"Nova Validação", "/nova-validacao", "PlusCircle", members},
	{"Central", "/central", "CheckSquare", everyone},
	{"Pacotes", "/pacotes", "Package", adminOnly},
	{"Ranking", "/ranking", "Trophy", everyone},
	{"Relatórios", "/relatorios", "BarChart3", adminOnly},
	{"Usuários", "/usuarios", "Users", adminOnly},
	{"Convites", "/convites", "Mail", adminOnly},
	{"Wiki", "/wiki", "BookOpen", members},
	{"Meu Perfil", "/perfil", "User", everyone},
}

// Navigation returns the menu entries visible to c.
func Navigation(c Capabilities) []NavItem {
	out := make([]NavItem, 0, len(NavItems))
	for _, it := range NavItems {
		if c.HasPermission(it.Level...) {
			out = append(out, it)
		}
	}
	return out
}
