package validation

import (
	"fmt"
	"strings"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/api"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"
)

// Correction collects replacements for the rejected links of a request.
// Replacements are keyed by link position, so duplicate URLs stay distinct.
type Correction struct {
	original []string
	rejected map[int]bool
	fixes    map[int]string
	Notes    string
}

func Correctable(s models.Status) bool {
	return s == models.StatusRejected || s == models.StatusPartialApproved
}

func NewCorrection(r models.ValidationRequest) (*Correction, error) {
	if !Correctable(r.Status) {
		return nil, ErrNotCorrectable
	}
	c := &Correction{
		original: append([]string(nil), r.ContentURLs...),
		rejected: map[int]bool{},
		fixes:    map[int]string{},
	}
	for i := range c.original {
		if i < len(r.ValidationPerLink) && r.ValidationPerLink[i].Status == models.LinkRejected {
			c.rejected[i] = true
		}
	}
	return c, nil
}

// Expected returns the positions that need a replacement, in order.
func (c *Correction) Expected() []int {
	out := make([]int, 0, len(c.rejected))
	for i := range c.original {
		if c.rejected[i] {
			out = append(out, i)
		}
	}
	return out
}

func (c *Correction) Original(i int) string {
	if i < 0 || i >= len(c.original) {
		return ""
	}
	return c.original[i]
}

// Set stores the replacement for rejected link i.
func (c *Correction) Set(i int, url string) error {
	if !c.rejected[i] {
		return fmt.Errorf("o link %d não foi reprovado", i)
	}
	c.fixes[i] = strings.TrimSpace(url)
	return nil
}

// SetAll assigns replacements to the expected positions in order.
func (c *Correction) SetAll(urls []string) error {
	exp := c.Expected()
	if len(urls) > len(exp) {
		return fmt.Errorf("%d links informados, %d reprovados", len(urls), len(exp))
	}
	for k, u := range urls {
		if err := c.Set(exp[k], u); err != nil {
			return err
		}
	}
	return nil
}

// URLs recombines the link list: rejected positions take their
// replacement, every other position keeps its original URL.
func (c *Correction) URLs() ([]string, error) {
	var missing Problems
	for _, i := range c.Expected() {
		if c.fixes[i] == "" {
			missing = append(missing, Problem{fmt.Sprintf("content_urls[%d]", i), "Preencha todos os novos links"})
		}
	}
	if len(missing) > 0 {
		return nil, missing
	}
	out := make([]string, len(c.original))
	for i, u := range c.original {
		if c.rejected[i] {
			out[i] = c.fixes[i]
		} else {
			out[i] = u
		}
	}
	return out, nil
}

func (c *Correction) Payload() (api.Correction, error) {
	urls, err := c.URLs()
	if err != nil {
		return api.Correction{}, err
	}
	return api.Correction{ContentURLs: urls, CorrectionNotes: c.Notes}, nil
}
