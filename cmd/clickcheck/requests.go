package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/media"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/validation"
)

func requestsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "requests",
		Aliases: []string{"req"},
		Short:   "List and act on validation requests",
	}
	cmd.AddCommand(requestsListCmd(a))
	cmd.AddCommand(requestsShowCmd(a))
	cmd.AddCommand(requestsValidatorsCmd(a))
	cmd.AddCommand(requestsCreateCmd(a))
	cmd.AddCommand(requestsValidateCmd(a))
	cmd.AddCommand(requestsCorrectCmd(a))
	cmd.AddCommand(requestsRevertCmd(a))
	cmd.AddCommand(requestsDeleteCmd(a))
	cmd.AddCommand(requestsBulkDateCmd(a))
	return cmd
}

func (a *app) lifecycle() *validation.Service {
	return validation.NewService(a.client, a.sess, a.logger)
}

type listRow struct {
	models.ValidationRequest
	Actions  []string `json:"actions"`
	Approved int      `json:"approved_count"`
	Links    int      `json:"link_count"`
	Overdue  bool     `json:"overdue"`
}

type listOut struct {
	Tab   string          `json:"tab"`
	Page  int             `json:"page"`
	Meta  models.PageMeta `json:"meta"`
	Items []listRow       `json:"items"`
}

func requestsListCmd(a *app) *cobra.Command {
	var (
		tab   string
		f     validation.Filter
		page  int
		limit int
		pkg   string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List one page of the request board",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.signedIn(ctx)
			if err != nil {
				return err
			}
			board := validation.NewBoard(a.client, sess, limit, a.logger)
			defer board.Close()

			f.Tab = validation.DefaultTab(sess.Capabilities())
			if tab != "" {
				if f.Tab, err = validation.ParseTab(tab); err != nil {
					return err
				}
			}
			f.PackageID = models.ID(pkg)
			if err := board.SetFilter(f); err != nil {
				return err
			}
			board.SetPage(page)
			if err := board.Refresh(ctx); err != nil {
				return err
			}
			v := board.View()
			now := time.Now()
			out := listOut{Tab: string(v.Filter.Tab), Page: v.Page, Meta: v.Meta, Items: []listRow{}}
			for _, r := range v.Items {
				approved, total := r.LinkCounts()
				out.Items = append(out.Items, listRow{
					ValidationRequest: r,
					Actions:           actionNames(validation.ActionsFor(sess.Capabilities(), r)),
					Approved:          approved,
					Links:             total,
					Overdue:           r.Overdue(now),
				})
			}
			return a.emit(out, func(w io.Writer) {
				fmt.Fprintf(w, "%s · página %d de %d · %d no total\n\n", v.Filter.Tab.Label(), v.Meta.Page, v.Meta.Pages, v.Meta.Total)
				fmt.Fprintln(w, "ID\tSTATUS\tPRIORIDADE\tTÍTULO\tSOLICITANTE\tVALIDADOR\tLINKS\tCRIADO\tAÇÕES")
				for _, r := range out.Items {
					pri := string(r.Priority)
					if r.Overdue {
						pri += " (atrasada)"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d/%d\t%s\t%s\n",
						r.ID, r.Status.Label(), pri, r.Title, r.RequestedBy, orDash(r.AssignedTo),
						r.Approved, r.Links, day(r.CreatedAt), joinOrDash(r.Actions))
				}
				if len(out.Items) == 0 {
					fmt.Fprintln(w, "Nenhuma validação encontrada")
				}
			})
		},
	}
	cmd.Flags().StringVar(&tab, "tab", "", "Board tab (default: the first tab you can see)")
	cmd.Flags().StringVar(&f.Search, "search", "", "Match title, package, requester or assignee")
	cmd.Flags().StringVar(&f.RequestedBy, "requested-by", "", "Requester email")
	cmd.Flags().StringVar(&f.AssignedTo, "assigned-to", "", "Validator email")
	cmd.Flags().StringVar(&pkg, "package", "", "Package id")
	cmd.Flags().StringVar(&f.StartDate, "start", "", "Created on or after (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.EndDate, "end", "", "Created on or before (YYYY-MM-DD)")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&limit, "limit", 20, "Rows per page")
	return cmd
}

func requestsShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a request with its links and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.signedIn(cmd.Context()); err != nil {
				return err
			}
			rec, err := a.lifecycle().Get(cmd.Context(), models.ID(args[0]))
			if err != nil {
				return err
			}
			return a.emit(rec, func(w io.Writer) { printRequest(w, *rec) })
		},
	}
}

func printRequest(w io.Writer, r models.ValidationRequest) {
	fmt.Fprintf(w, "#%s\t%s\n", r.ID, r.Title)
	fmt.Fprintf(w, "Status:\t%s\n", r.Status.Label())
	fmt.Fprintf(w, "Pacote:\t%s\n", orDash(r.PackageName))
	fmt.Fprintf(w, "Prioridade:\t%s\n", r.Priority)
	fmt.Fprintf(w, "Solicitante:\t%s\n", r.RequestedBy)
	fmt.Fprintf(w, "Validador:\t%s\n", orDash(r.AssignedTo))
	fmt.Fprintf(w, "Criado em:\t%s\n", day(r.CreatedAt))
	if r.ReturnCount > 0 {
		fmt.Fprintf(w, "Devoluções:\t%d\n", r.ReturnCount)
	}
	if r.Description != "" {
		fmt.Fprintf(w, "Descrição:\t%s\n", r.Description)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "#\tLINK\tSTATUS\tOBSERVAÇÕES")
	for i, l := range r.ValidationPerLink {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, l.URL, linkStatusLabel(l.Status), orDash(l.Observations))
	}
	if r.FinalObservations != "" {
		fmt.Fprintf(w, "\nObservações finais:\t%s\n", r.FinalObservations)
	}
	if len(r.History) > 0 {
		fmt.Fprintln(w, "\nQUANDO\tQUEM\tAÇÃO\tDETALHES")
		for _, h := range r.History {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", day(h.Timestamp), h.User, h.Action, orDash(h.Details))
		}
	}
}

func requestsValidatorsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validators",
		Short: "List who a new request can be assigned to",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			all, err := a.client.ListValidators(cmd.Context())
			if err != nil {
				return err
			}
			choices := validation.ValidatorChoices(all, sess.Capabilities().Email())
			return a.emit(choices, func(w io.Writer) {
				fmt.Fprintln(w, "EMAIL\tNOME")
				for _, u := range choices {
					fmt.Fprintf(w, "%s\t%s\n", u.Email, u.DisplayName())
				}
			})
		},
	}
}

func requestsCreateCmd(a *app) *cobra.Command {
	var (
		d      validation.Draft
		pkg    string
		pri    string
		images []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a validation request",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.signedIn(cmd.Context()); err != nil {
				return err
			}
			d.PackageID = models.ID(pkg)
			d.Priority = models.Priority(pri)
			if len(images) > 0 {
				urls, err := media.DataURLs(images)
				if err != nil {
					return err
				}
				d.DescriptionImages = urls
			}
			res, err := a.lifecycle().Create(cmd.Context(), d)
			if err != nil {
				return problemsError(err)
			}
			if a.flags.asJSON {
				return a.emit(map[string]any{"success": true, "id": res.ID}, nil)
			}
			a.say("Validação criada: #%s", res.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&d.Title, "title", "", "Title")
	cmd.Flags().StringVar(&d.Description, "description", "", "Description")
	cmd.Flags().StringVar(&pkg, "package", "", "Package id")
	cmd.Flags().StringVar(&d.AssignedTo, "assignee", "", "Validator email")
	cmd.Flags().StringVar(&pri, "priority", "normal", "baixa, normal, alta or urgente")
	cmd.Flags().StringArrayVar(&d.ContentURLs, "url", nil, "Content link (repeatable)")
	cmd.Flags().StringArrayVar(&images, "image", nil, "Image file attached to the description (repeatable)")
	return cmd
}

// problemsError flattens field problems into one readable error.
func problemsError(err error) error {
	p, ok := validation.AsProblems(err)
	if !ok {
		return err
	}
	lines := make([]string, 0, len(p))
	for _, pr := range p {
		lines = append(lines, fmt.Sprintf("  %s: %s", pr.Field, pr.Message))
	}
	return fmt.Errorf("dados inválidos:\n%s", strings.Join(lines, "\n"))
}

// parseIndexed reads "N=value" with a 1-based N.
func parseIndexed(s string) (int, string, error) {
	k, v, ok := strings.Cut(s, "=")
	if !ok {
		return 0, "", fmt.Errorf("esperado N=valor, recebido %q", s)
	}
	n, err := strconv.Atoi(strings.TrimSpace(k))
	if err != nil || n < 1 {
		return 0, "", fmt.Errorf("posição inválida %q", k)
	}
	return n - 1, strings.TrimSpace(v), nil
}

// parseVerdict reads "N=aprovado" or "N=reprovado:observações".
func parseVerdict(s string) (int, models.LinkStatus, string, error) {
	i, v, err := parseIndexed(s)
	if err != nil {
		return 0, "", "", err
	}
	status, obs, _ := strings.Cut(v, ":")
	st := models.LinkStatus(strings.TrimSpace(status))
	if !st.Decided() {
		return 0, "", "", fmt.Errorf("veredito inválido %q: use aprovado ou reprovado", status)
	}
	return i, st, strings.TrimSpace(obs), nil
}

func (a *app) printTransition(res resultLike) error {
	if a.flags.asJSON {
		return a.emit(res, nil)
	}
	if res.Request != nil {
		a.say("#%s agora está %s", res.ID, res.Request.Status.Label())
	} else {
		a.say("#%s atualizada", res.ID)
	}
	return nil
}

type resultLike struct {
	ID      models.ID                 `json:"id"`
	Request *models.ValidationRequest `json:"request,omitempty"`
}

func requestsValidateCmd(a *app) *cobra.Command {
	var (
		verdicts   []string
		approveAll bool
		final      string
	)
	cmd := &cobra.Command{
		Use:   "validate <id>",
		Short: "Record a verdict for every link and submit the review",
		Long: `Each --link sets one verdict by 1-based position:

  --link 1=aprovado --link "2=reprovado:logo cortado"

--approve-all approves every link not set explicitly. The review is only
sent when every link has a verdict.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := a.signedIn(ctx); err != nil {
				return err
			}
			svc := a.lifecycle()
			rec, err := svc.Get(ctx, models.ID(args[0]))
			if err != nil {
				return err
			}
			rv := validation.NewReview(*rec)
			for _, s := range verdicts {
				i, st, obs, err := parseVerdict(s)
				if err != nil {
					return err
				}
				if err := rv.Set(i, st, obs); err != nil {
					return err
				}
			}
			if approveAll {
				for _, i := range rv.Undecided() {
					if err := rv.Approve(i, ""); err != nil {
						return err
					}
				}
			}
			if cmd.Flags().Changed("observations") {
				rv.FinalObservations = final
			}
			if !rv.Ready() {
				missing := make([]string, 0)
				for _, i := range rv.Undecided() {
					missing = append(missing, strconv.Itoa(i+1))
				}
				return fmt.Errorf("%w (sem veredito: %s)", validation.ErrUndecidedLinks, strings.Join(missing, ", "))
			}
			res, err := svc.Validate(ctx, *rec, rv)
			if err != nil {
				return err
			}
			return a.printTransition(resultLike{ID: rec.ID, Request: res.Request})
		},
	}
	cmd.Flags().StringArrayVar(&verdicts, "link", nil, "N=aprovado or N=reprovado:observações (repeatable)")
	cmd.Flags().BoolVar(&approveAll, "approve-all", false, "Approve every link without a verdict")
	cmd.Flags().StringVar(&final, "observations", "", "Final observations")
	return cmd
}

func requestsCorrectCmd(a *app) *cobra.Command {
	var (
		replacements []string
		notes        string
	)
	cmd := &cobra.Command{
		Use:   "correct <id> [url...]",
		Short: "Replace the rejected links and resubmit",
		Long: `Positional URLs fill the rejected positions in order. --url N=<url>
replaces the link at 1-based position N instead.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := a.signedIn(ctx); err != nil {
				return err
			}
			svc := a.lifecycle()
			rec, err := svc.Get(ctx, models.ID(args[0]))
			if err != nil {
				return err
			}
			c, err := validation.NewCorrection(*rec)
			if err != nil {
				return err
			}
			if err := c.SetAll(args[1:]); err != nil {
				return err
			}
			for _, s := range replacements {
				i, u, err := parseIndexed(s)
				if err != nil {
					return err
				}
				if err := c.Set(i, u); err != nil {
					return err
				}
			}
			c.Notes = notes
			res, err := svc.Correct(ctx, *rec, c)
			if err != nil {
				return problemsError(err)
			}
			return a.printTransition(resultLike{ID: rec.ID, Request: res.Request})
		},
	}
	cmd.Flags().StringArrayVar(&replacements, "url", nil, "N=<new url> for the rejected link at position N (repeatable)")
	cmd.Flags().StringVar(&notes, "notes", "", "Correction notes")
	return cmd
}

func requestsRevertCmd(a *app) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "revert <id>",
		Short: "Send a finished request back to pending (admins only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := a.signedIn(ctx); err != nil {
				return err
			}
			svc := a.lifecycle()
			rec, err := svc.Get(ctx, models.ID(args[0]))
			if err != nil {
				return err
			}
			res, err := svc.Revert(ctx, *rec, reason)
			if err != nil {
				return problemsError(err)
			}
			return a.printTransition(resultLike{ID: rec.ID, Request: res.Request})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Why the request is reopened (required)")
	return cmd
}

func requestsDeleteCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a request permanently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := a.signedIn(ctx); err != nil {
				return err
			}
			svc := a.lifecycle()
			rec, err := svc.Get(ctx, models.ID(args[0]))
			if err != nil {
				return err
			}
			confirm := func(r models.ValidationRequest) bool {
				return yes || ask(cmd.InOrStdin(), cmd.ErrOrStderr(), fmt.Sprintf("Excluir a validação #%s (%s)?", r.ID, r.Title))
			}
			if err := svc.Delete(ctx, *rec, confirm); err != nil {
				return err
			}
			a.say("#%s excluída", rec.ID)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// ask prompts on w and reads a yes/no answer from r. Anything but s/sim/y/yes is no.
func ask(r io.Reader, w io.Writer, question string) bool {
	fmt.Fprintf(w, "%s [s/N] ", question)
	line, _ := bufio.NewReader(r).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "s", "sim", "y", "yes":
		return true
	}
	return false
}

func requestsBulkDateCmd(a *app) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "bulk-date <id>...",
		Short: "Override the creation date of several requests",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.signedIn(cmd.Context()); err != nil {
				return err
			}
			ids := make([]models.ID, 0, len(args))
			for _, s := range args {
				ids = append(ids, models.ID(s))
			}
			res, err := a.lifecycle().BulkUpdateDate(cmd.Context(), ids, strings.TrimSpace(date))
			if err != nil {
				return problemsError(err)
			}
			if a.flags.asJSON {
				return a.emit(res, nil)
			}
			a.say("%d validações atualizadas para %s", res.Updated, date)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "New creation date (YYYY-MM-DD)")
	return cmd
}
