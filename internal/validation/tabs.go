package validation

import (
	"fmt"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/permissions"
)

// Tab is a permission-gated view over the request collection.
type Tab string

const (
	TabReceived Tab = "recebidas"
	TabMine     Tab = "minhas"
	TabAll      Tab = "todas"
	TabPartial  Tab = "parcial"
	TabFinished Tab = "finalizadas"
)

var tabOrder = []Tab{TabReceived, TabMine, TabAll, TabPartial, TabFinished}

func (t Tab) Label() string {
	switch t {
	case TabReceived:
		return "Recebidas"
	case TabMine:
		return "Minhas Solicitações"
	case TabAll:
		return "Todas"
	case TabPartial:
		return "Aprovados Parcial"
	case TabFinished:
		return "Finalizadas"
	}
	return string(t)
}

func ParseTab(s string) (Tab, error) {
	for _, t := range tabOrder {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("aba desconhecida: %q", s)
}

// Visible reports whether c may open tab t.
func Visible(c permissions.Capabilities, t Tab) bool {
	if !c.Authenticated() {
		return false
	}
	switch t {
	case TabReceived:
		return c.HasAnyPermission(permissions.ViewAssigned, permissions.Validate)
	case TabMine:
		return c.HasAnyPermission(permissions.CreateValidation, permissions.ViewAllValidations)
	case TabAll:
		return c.Can(permissions.ViewAllValidations)
	case TabPartial, TabFinished:
		return true
	}
	return false
}

// Tabs lists the tabs c may open, in display order.
func Tabs(c permissions.Capabilities) []Tab {
	var out []Tab
	for _, t := range tabOrder {
		if Visible(c, t) {
			out = append(out, t)
		}
	}
	return out
}

// DefaultTab is the first visible tab.
func DefaultTab(c permissions.Capabilities) Tab {
	if ts := Tabs(c); len(ts) > 0 {
		return ts[0]
	}
	return TabPartial
}

// Matches is the tab predicate applied to a fetched record.
func Matches(c permissions.Capabilities, t Tab, r models.ValidationRequest) bool {
	me := c.Email()
	switch t {
	case TabReceived:
		return r.AssignedTo == me && r.Status.Open()
	case TabMine:
		return r.RequestedBy == me
	case TabAll:
		return true
	case TabPartial:
		return r.RequestedBy == me && r.Status == models.StatusPartialApproved
	case TabFinished:
		if !r.Status.Final() {
			return false
		}
		return c.Can(permissions.ViewAllValidations) || r.RequestedBy == me || r.AssignedTo == me
	}
	return false
}
