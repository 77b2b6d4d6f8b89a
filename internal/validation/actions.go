package validation

import (
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/permissions"
)

// Actions are the controls a request row offers to the current user.
type Actions struct {
	View     bool
	Validate bool
	Correct  bool
	Revert   bool
	Delete   bool
}

func ActionsFor(c permissions.Capabilities, r models.ValidationRequest) Actions {
	if !c.Authenticated() {
		return Actions{}
	}
	me := c.Email()
	return Actions{
		View:     true,
		Validate: r.AssignedTo == me && r.Status.Open(),
		Correct:  r.RequestedBy == me && Correctable(r.Status),
		Revert:   c.IsAdmin() && r.Status == models.StatusApproved,
		Delete:   c.AdminOr(permissions.DeleteValidation),
	}
}
