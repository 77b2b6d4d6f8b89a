package main

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/permissions"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/session"
)

func loginCmd(a *app) *cobra.Command {
	var (
		invite    string
		noBrowser bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Start a Google sign-in",
		Long: `Prints (and opens) the sign-in URL. Google redirects to the front-end
callback page; finish with "clickcheck callback <code>", or pass the
token the backend handed over with --token.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.boot(ctx)
			if err != nil {
				return err
			}
			sess := session.FromContext(ctx)
			if st == session.Authenticated {
				a.say("Já conectado como %s", sess.User().Email)
				return nil
			}
			u := sess.LoginURL(invite)
			if !noBrowser {
				if err := openBrowser(u); err != nil {
					a.logger.Printf("[Login] open browser failed err=%v", err)
				}
			}
			if a.flags.asJSON {
				return a.emit(map[string]string{"login_url": u}, nil)
			}
			a.say("Abra no navegador:\n  %s", u)
			a.say("Depois de entrar, execute `clickcheck callback <code>` com o código recebido.")
			return nil
		},
	}
	cmd.Flags().StringVar(&invite, "invite", "", "Invite token to bind the new account to")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Only print the sign-in URL")
	return cmd
}

func openBrowser(u string) error {
	var c *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		c = exec.Command("open", u)
	case "windows":
		c = exec.Command("rundll32", "url.dll,FileProtocolHandler", u)
	default:
		c = exec.Command("xdg-open", u)
	}
	return c.Start()
}

func callbackCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "callback <code>",
		Short: "Exchange an OAuth authorization code for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess := session.FromContext(ctx)
			outcome, err := sess.CompleteCallback(ctx, args[0])
			switch {
			case err != nil:
				return fmt.Errorf("login falhou (%s): %w", outcome, err)
			case outcome != session.OutcomeSuccess:
				return fmt.Errorf("login falhou (%s)", outcome)
			}
			if sess.State() != session.Authenticated {
				a.say("Token salvo, mas o servidor ainda não confirmou a sessão. Tente `clickcheck whoami` em instantes.")
				return nil
			}
			a.say("Conectado como %s", sess.User().Email)
			return nil
		},
	}
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := session.FromContext(cmd.Context()).Logout(cmd.Context()); err != nil {
				return err
			}
			a.say("Sessão encerrada")
			return nil
		},
	}
}

type whoami struct {
	Email      string   `json:"email"`
	Name       string   `json:"name"`
	AdminLevel string   `json:"admin_level"`
	Profile    string   `json:"profile"`
	Granted    []string `json:"permissions"`
	Navigation []string `json:"navigation"`
}

func whoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and what they may do",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			c := sess.Capabilities()
			u := c.User()
			out := whoami{
				Email:      u.Email,
				Name:       u.DisplayName(),
				AdminLevel: string(u.AdminLevel),
				Profile:    string(u.Profile),
			}
			for _, d := range permissions.Catalog {
				if c.Can(d.Key) {
					out.Granted = append(out.Granted, string(d.Key))
				}
			}
			for _, n := range permissions.Navigation(c) {
				out.Navigation = append(out.Navigation, n.Name)
			}
			return a.emit(out, func(w io.Writer) {
				fmt.Fprintf(w, "Email:\t%s\n", out.Email)
				fmt.Fprintf(w, "Nome:\t%s\n", out.Name)
				fmt.Fprintf(w, "Nível:\t%s\n", out.AdminLevel)
				fmt.Fprintf(w, "Perfil:\t%s\n", orDash(out.Profile))
				fmt.Fprintf(w, "Permissões:\t%v\n", out.Granted)
				fmt.Fprintf(w, "Menu:\t%v\n", out.Navigation)
			})
		},
	}
}
