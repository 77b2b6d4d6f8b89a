package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/validation"
)

// emit prints v as indented JSON under --json and otherwise hands a
// tab-aligned writer to table.
func (a *app) emit(v any, table func(w io.Writer)) error {
	if a.flags.asJSON {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(v)
	}
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	table(tw)
	return tw.Flush()
}

func (a *app) say(format string, args ...any) {
	if a.flags.asJSON {
		return
	}
	fmt.Fprintf(a.out, format+"\n", args...)
}

func day(ts models.Timestamp) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Format("02/01/2006")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func actionNames(act validation.Actions) []string {
	out := []string{}
	if act.Validate {
		out = append(out, "validar")
	}
	if act.Correct {
		out = append(out, "corrigir")
	}
	if act.Revert {
		out = append(out, "reverter")
	}
	if act.Delete {
		out = append(out, "excluir")
	}
	return out
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ",")
}

func linkStatusLabel(s models.LinkStatus) string {
	switch s {
	case models.LinkApproved:
		return "aprovado"
	case models.LinkRejected:
		return "reprovado"
	default:
		return "pendente"
	}
}
