package validation

import (
	"errors"
	"strings"
)

// Problem is one user-facing reason a form cannot be submitted.
type Problem struct {
	Field   string
	Message string
}

// Problems is returned before any network call when input is incomplete.
type Problems []Problem

func (p Problems) Error() string {
	msgs := make([]string, 0, len(p))
	for _, pr := range p {
		msgs = append(msgs, pr.Message)
	}
	return strings.Join(msgs, "; ")
}

func (p Problems) Has(field string) bool {
	for _, pr := range p {
		if pr.Field == field {
			return true
		}
	}
	return false
}

func (p Problems) orNil() error {
	if len(p) == 0 {
		return nil
	}
	return p
}

// AsProblems extracts validation problems from err.
func AsProblems(err error) (Problems, bool) {
	var p Problems
	if errors.As(err, &p) {
		return p, true
	}
	return nil, false
}

var (
	ErrUndecidedLinks = errors.New("todos os links precisam ser avaliados antes de finalizar")
	ErrNotCorrectable = errors.New("apenas validações reprovadas ou aprovadas parcialmente podem ser corrigidas")
	ErrNotRevertible  = errors.New("apenas validações aprovadas podem ser revertidas")
	ErrNotConfirmed   = errors.New("exclusão não confirmada")
)
