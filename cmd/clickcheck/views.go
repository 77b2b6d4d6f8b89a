package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/api"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/goals"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/invites"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/packages"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/reports"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/users"
)

func dashboardCmd(a *app) *cobra.Command {
	var start, end string
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Counters and the most recent requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			svc := &reports.Service{API: a.client, Caps: sess}
			d, err := svc.Dashboard(cmd.Context(), start, end)
			if err != nil {
				return err
			}
			return a.emit(d, func(w io.Writer) {
				fmt.Fprintf(w, "Olá, %s\n\n", d.FirstName)
				fmt.Fprintf(w, "Total\t%d\n", d.Stats.Total)
				fmt.Fprintf(w, "Pendentes\t%d\n", d.Stats.Pending)
				fmt.Fprintf(w, "Aprovadas\t%d\n", d.Stats.Approved)
				fmt.Fprintf(w, "Reprovadas\t%d\n", d.Stats.Rejected)
				if len(d.Recent) > 0 {
					fmt.Fprintln(w, "\nRECENTES\tSTATUS\tCRIADO")
					for _, r := range d.Recent {
						fmt.Fprintf(w, "#%s %s\t%s\t%s\n", r.ID, r.Title, r.Status.Label(), day(r.CreatedAt))
					}
				}
			})
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "Period start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "Period end (YYYY-MM-DD)")
	return cmd
}

func rankingCmd(a *app) *cobra.Command {
	var showInactive bool
	cmd := &cobra.Command{
		Use:   "ranking",
		Short: "Score every user by approvals and returns",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			svc := &reports.Service{API: a.client, Caps: sess}
			active, inactive, err := svc.Ranking(cmd.Context())
			if err != nil {
				return err
			}
			out := map[string][]reports.Entry{"active": active, "inactive": inactive}
			return a.emit(out, func(w io.Writer) {
				fmt.Fprintln(w, "#\tNOME\tPONTOS\tAPROVOU\tAPROVADAS\tPARCIAIS\tREPROVADAS\tDEVOLUÇÕES")
				rows := active
				if showInactive {
					rows = append(append([]reports.Entry{}, active...), inactive...)
				}
				for i, e := range rows {
					fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%d\t%d\t%d\n", i+1, e.User.DisplayName(), e.Score,
						e.ApprovalsMade, e.ApprovalsReceived, e.PartialReceived, e.RejectionsReceived, e.ReturnPenalty)
				}
			})
		},
	}
	cmd.Flags().BoolVar(&showInactive, "all", false, "Include users without activity")
	return cmd
}

func reportCmd(a *app) *cobra.Command {
	var (
		f      reports.Filter
		status string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Period report with status and user breakdowns",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			def := reports.DefaultFilter(time.Now())
			if f.StartDate == "" {
				f.StartDate = def.StartDate
			}
			if f.EndDate == "" {
				f.EndDate = def.EndDate
			}
			if status != "" {
				f.Status = models.Status(status)
				if !f.Status.Valid() {
					return fmt.Errorf("status desconhecido %q", status)
				}
			}
			svc := &reports.Service{API: a.client, Caps: sess}
			rep, err := svc.Report(cmd.Context(), f)
			if err != nil {
				return err
			}
			return a.emit(rep, func(w io.Writer) {
				fmt.Fprintf(w, "Período\t%s a %s\n", rep.Filter.StartDate, rep.Filter.EndDate)
				fmt.Fprintf(w, "Validações\t%d\n", rep.Summary.Total)
				fmt.Fprintf(w, "Links\t%d\n", rep.Summary.TotalLinks)
				fmt.Fprintf(w, "Aprovação\t%.1f%%\n", rep.Summary.ApprovalRate)
				fmt.Fprintf(w, "Tempo médio\t%.1fh\n", rep.Summary.AvgHours)
				fmt.Fprintln(w, "\nSTATUS\tQTD")
				for _, s := range rep.Statuses {
					fmt.Fprintf(w, "%s\t%d\n", s.Label, s.Count)
				}
				fmt.Fprintln(w, "\nUSUÁRIO\tSOLICITOU\tVALIDOU")
				for _, u := range rep.Users {
					fmt.Fprintf(w, "%s\t%d\t%d\n", u.Name, u.Requested, u.Validated)
				}
			})
		},
	}
	cmd.Flags().StringVar(&f.StartDate, "start", "", "Period start (default: first day of this month)")
	cmd.Flags().StringVar(&f.EndDate, "end", "", "Period end (default: last day of this month)")
	cmd.Flags().StringVar(&f.User, "user", "", "Only requests this email requested or validated")
	cmd.Flags().StringVar(&status, "status", "", "Only this status")
	return cmd
}

func goalsCmd(a *app) *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "goals",
		Short: "Monthly goal progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			if month == "" {
				month = goals.CurrentMonth(time.Now())
			}
			if _, err := goals.ParseMonth(month); err != nil {
				return err
			}
			rows, err := (&goals.Service{API: a.client, Caps: sess}).Progress(cmd.Context(), month)
			if err != nil {
				return err
			}
			return a.emit(rows, func(w io.Writer) {
				fmt.Fprintln(w, "USUÁRIO\tPACOTE\tMETA\tFEITO\tPROGRESSO")
				for _, r := range rows {
					fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", r.UserName, r.PackageName, r.TargetCount, r.Achieved, r.Label)
				}
				if len(rows) == 0 {
					fmt.Fprintln(w, "Nenhuma meta para", month)
				}
			})
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "Month as YYYY-MM (default: current month)")
	cmd.AddCommand(goalsSetCmd(a))
	return cmd
}

func goalsSetCmd(a *app) *cobra.Command {
	var (
		g      models.Goal
		user   string
		pkg    string
		target int
		id     string
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Create or update a monthly goal (admins only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			g.UserID, g.PackageID, g.TargetCount = models.ID(user), models.ID(pkg), models.Count(target)
			if g.Month == "" {
				g.Month = goals.CurrentMonth(time.Now())
			}
			svc := &goals.Service{API: a.client, Caps: sess}
			if id != "" {
				err = svc.Update(cmd.Context(), models.ID(id), g)
			} else {
				err = svc.Create(cmd.Context(), g)
			}
			if err != nil {
				return problemsError(err)
			}
			a.say("Meta salva")
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Goal id to update (omit to create)")
	cmd.Flags().StringVar(&user, "user", "", "User id")
	cmd.Flags().StringVar(&pkg, "package", "", "Package id")
	cmd.Flags().IntVar(&target, "target", 0, "Target count")
	cmd.Flags().StringVar(&g.Month, "month", "", "Month as YYYY-MM (default: current month)")
	return cmd
}

func (a *app) invites() *invites.Service {
	return &invites.Service{API: a.client, FrontendURL: a.cfg.Frontend.URL, Caps: a.sess}
}

func invitesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invites",
		Short: "Manage sign-up invites",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List invites (admins only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.signedIn(cmd.Context()); err != nil {
				return err
			}
			svc := a.invites()
			list, err := svc.List(cmd.Context())
			if err != nil {
				return err
			}
			return a.emit(list, func(w io.Writer) {
				fmt.Fprintln(w, "ID\tEMAIL\tNÍVEL\tSTATUS\tEXPIRA\tLINK")
				for _, in := range list {
					link := "-"
					if in.Status == models.InvitePending && in.Token != "" {
						link = svc.Link(in.Token)
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", in.ID, in.Email, in.AdminLevel, in.Status, day(in.ExpiresAt), link)
				}
				if len(list) == 0 {
					fmt.Fprintln(w, "Nenhum convite encontrado")
				}
			})
		},
	})
	cmd.AddCommand(invitesCreateCmd(a))
	cmd.AddCommand(invitesDeleteCmd(a))
	cmd.AddCommand(&cobra.Command{
		Use:   "verify <token>",
		Short: "Check an invite token before signing up",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Invites are checked before the invitee has an account.
			if _, err := a.boot(cmd.Context()); err != nil {
				return err
			}
			svc := a.invites()
			v := svc.Verify(cmd.Context(), args[0])
			out := map[string]any{"verification": v}
			if v.Valid {
				out["accept_url"] = svc.AcceptURL(args[0])
			}
			return a.emit(out, func(w io.Writer) {
				if !v.Valid {
					fmt.Fprintf(w, "Convite inválido:\t%s\n", v.Error)
					return
				}
				fmt.Fprintf(w, "Email:\t%s\n", v.Email)
				fmt.Fprintf(w, "Nível:\t%s\n", v.AdminLevel)
				fmt.Fprintf(w, "Expira:\t%s\n", day(v.ExpiresAt))
				fmt.Fprintf(w, "Aceitar:\t%s\n", out["accept_url"])
			})
		},
	})
	return cmd
}

func invitesCreateCmd(a *app) *cobra.Command {
	var (
		in    api.NewInvite
		level string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Invite someone by email (admins only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.signedIn(cmd.Context()); err != nil {
				return err
			}
			in.AdminLevel = models.AdminLevel(level)
			created, err := a.invites().Create(cmd.Context(), in)
			if err != nil {
				return problemsError(err)
			}
			return a.emit(created, func(w io.Writer) {
				fmt.Fprintf(w, "Convite criado para\t%s\n", created.Email)
				fmt.Fprintf(w, "Link do convite:\t%s\n", created.InviteURL)
			})
		},
	}
	cmd.Flags().StringVar(&in.Email, "email", "", "Invitee email")
	cmd.Flags().StringVar(&level, "level", string(models.LevelUser), "convidado, user or admin_principal")
	cmd.Flags().IntVar(&in.ExpiresIn, "days", 7, "Days until the invite expires (1-30)")
	return cmd
}

func invitesDeleteCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an invite (admins only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.signedIn(cmd.Context()); err != nil {
				return err
			}
			confirm := func() bool {
				return yes || ask(cmd.InOrStdin(), cmd.ErrOrStderr(), "Excluir este convite?")
			}
			if err := a.invites().Delete(cmd.Context(), models.ID(args[0]), confirm); err != nil {
				return err
			}
			a.say("Convite excluído")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func packagesCmd(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "packages",
		Short: "List content packages",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			list, err := (&packages.Service{API: a.client, Caps: sess}).List(cmd.Context(), !all)
			if err != nil {
				return err
			}
			return a.emit(list, func(w io.Writer) {
				fmt.Fprintln(w, "ID\tNOME\tTIPO\tATIVO\tCRITÉRIOS")
				for _, p := range list {
					fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%d\n", p.ID, p.Name, p.Type, bool(p.Active), len(p.Criteria))
				}
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include inactive packages (needs manage_packages)")
	return cmd
}

func usersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List users with their manager (needs manage_users)",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			list, err := (&users.Admin{API: a.client, Caps: sess}).List(cmd.Context())
			if err != nil {
				return err
			}
			return a.emit(list, func(w io.Writer) {
				fmt.Fprintln(w, "ID\tEMAIL\tNOME\tNÍVEL\tPERFIL\tGESTOR")
				for _, u := range list {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", u.ID, u.Email, u.DisplayName(), u.AdminLevel,
						orDash(string(u.Profile)), orDash(users.ManagerName(list, u.ManagerID)))
				}
			})
		},
	}
}

func profileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Edit your own profile",
	}

	var form users.ProfileForm
	set := &cobra.Command{
		Use:   "set",
		Short: "Update nickname, phone or department",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			cur := users.FormFor(*sess.User())
			if cmd.Flags().Changed("nickname") {
				cur.Nickname = form.Nickname
			}
			if cmd.Flags().Changed("phone") {
				cur.Phone = form.Phone
			}
			if cmd.Flags().Changed("department") {
				cur.Department = form.Department
			}
			p := &users.Profile{API: a.client, Caps: sess, Session: sess}
			if err := p.Save(cmd.Context(), cur); err != nil {
				return err
			}
			a.say("Perfil atualizado")
			return nil
		},
	}
	set.Flags().StringVar(&form.Nickname, "nickname", "", "Nickname")
	set.Flags().StringVar(&form.Phone, "phone", "", "Phone")
	set.Flags().StringVar(&form.Department, "department", "", "Department")
	cmd.AddCommand(set)

	cmd.AddCommand(&cobra.Command{
		Use:   "photo <file>",
		Short: "Upload a profile picture (images up to 5MB)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			p := &users.Profile{API: a.client, Caps: sess, Session: sess}
			url, err := p.UploadPhoto(cmd.Context(), filepath.Base(args[0]), f)
			if err != nil {
				return err
			}
			a.say("Foto atualizada: %s", url)
			return nil
		},
	})
	return cmd
}
