package validation

import (
	"fmt"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/api"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"
)

// Review is a validator's in-progress verdict on every link of a request.
type Review struct {
	links             []models.LinkValidation
	FinalObservations string
}

// NewReview starts from the record's per-link verdicts. Only when the
// record has none yet is the list built from content_urls, each entry
// pending with empty observations.
func NewReview(r models.ValidationRequest) *Review {
	rv := &Review{FinalObservations: r.FinalObservations}
	if len(r.ValidationPerLink) > 0 {
		rv.links = append([]models.LinkValidation(nil), r.ValidationPerLink...)
		return rv
	}
	rv.links = make([]models.LinkValidation, len(r.ContentURLs))
	for i, u := range r.ContentURLs {
		rv.links[i] = models.LinkValidation{URL: u, Status: models.LinkPending}
	}
	return rv
}

func (rv *Review) Links() []models.LinkValidation {
	return append([]models.LinkValidation(nil), rv.links...)
}

func (rv *Review) Len() int { return len(rv.links) }

// Set records a verdict for link i. Setting pendente undoes a verdict.
func (rv *Review) Set(i int, status models.LinkStatus, observations string) error {
	if i < 0 || i >= len(rv.links) {
		return fmt.Errorf("link %d fora do intervalo (0..%d)", i, len(rv.links)-1)
	}
	if !status.Valid() {
		return fmt.Errorf("status de link inválido: %q", status)
	}
	rv.links[i].Status = status
	rv.links[i].Observations = observations
	return nil
}

func (rv *Review) Approve(i int, observations string) error {
	return rv.Set(i, models.LinkApproved, observations)
}

func (rv *Review) Reject(i int, observations string) error {
	return rv.Set(i, models.LinkRejected, observations)
}

// Undecided lists the indexes still pending.
func (rv *Review) Undecided() []int {
	var out []int
	for i, l := range rv.links {
		if !l.Status.Decided() {
			out = append(out, i)
		}
	}
	return out
}

// Ready reports whether the review may be submitted: at least one link and
// no link left pending.
func (rv *Review) Ready() bool {
	return len(rv.links) > 0 && len(rv.Undecided()) == 0
}

// Verdict is the submit payload, or ErrUndecidedLinks.
func (rv *Review) Verdict() (api.Verdict, error) {
	if !rv.Ready() {
		return api.Verdict{}, ErrUndecidedLinks
	}
	return api.Verdict{ValidationPerLink: rv.Links(), FinalObservations: rv.FinalObservations}, nil
}
