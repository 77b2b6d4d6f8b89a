package validation

import (
	"strings"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"
)

// CheckRevert validates a revert before it is sent.
func CheckRevert(r models.ValidationRequest, reason string) error {
	if r.Status != models.StatusApproved {
		return ErrNotRevertible
	}
	if strings.TrimSpace(reason) == "" {
		return Problems{{"reason", "Informe o motivo da reversão"}}
	}
	return nil
}
