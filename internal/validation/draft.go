package validation

import (
	"strings"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/api"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"
)

// Draft is the new-request form.
type Draft struct {
	Title             string
	Description       string
	DescriptionImages []string
	PackageID         models.ID
	AssignedTo        string
	Priority          models.Priority
	ContentURLs       []string
}

// Links returns the non-blank URLs in order, trimmed.
func (d Draft) Links() []string {
	out := make([]string, 0, len(d.ContentURLs))
	for _, u := range d.ContentURLs {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}

// Validate reports every missing required field at once.
func (d Draft) Validate() error {
	var p Problems
	if strings.TrimSpace(d.Title) == "" {
		p = append(p, Problem{"title", "Informe um título"})
	}
	if d.PackageID.IsZero() {
		p = append(p, Problem{"package_id", "Selecione um pacote de validação"})
	}
	if strings.TrimSpace(d.AssignedTo) == "" {
		p = append(p, Problem{"assigned_to", "Selecione um validador"})
	}
	if len(d.Links()) == 0 {
		p = append(p, Problem{"content_urls", "Adicione pelo menos um link de conteúdo"})
	}
	if d.Priority != "" && !d.Priority.Valid() {
		p = append(p, Problem{"priority", "Prioridade inválida"})
	}
	return p.orNil()
}

// Request builds the create payload. Blank links are dropped and the
// priority defaults to normal.
func (d Draft) Request() api.NewRequest {
	pr := d.Priority
	if pr == "" {
		pr = models.PriorityNormal
	}
	return api.NewRequest{
		Title:             strings.TrimSpace(d.Title),
		Description:       d.Description,
		DescriptionImages: d.DescriptionImages,
		PackageID:         d.PackageID,
		AssignedTo:        strings.TrimSpace(d.AssignedTo),
		Priority:          pr,
		ContentURLs:       d.Links(),
	}
}

// ValidatorChoices removes the current user from the validator list; a
// request cannot be assigned to its own author.
func ValidatorChoices(validators []models.User, me string) []models.User {
	out := make([]models.User, 0, len(validators))
	for _, v := range validators {
		if !v.Is(me) {
			out = append(out, v)
		}
	}
	return out
}
