package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	apiURL     string
	token      string
	asJSON     bool
	verbose    bool
}

func rootCmd() *cobra.Command {
	f := &globalFlags{}
	a := &app{}

	cmd := &cobra.Command{
		Use:   "clickcheck",
		Short: "Clickcheck content validation client",
		Long: `Clickcheck drives the Grupo Click content validation workflow from the
terminal: sign in with Google, list and act on validation requests, and
read the dashboard, ranking, reports and goals.

The serve command runs the same operations behind a local HTTP API with a
background poller and a websocket feed.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger := log.New(io.Discard, "", 0)
			if f.verbose {
				logger = log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
			}
			cfg, err := loadConfig(f, logger)
			if err != nil {
				return err
			}
			if err := a.init(cfg, f, logger, cmd.OutOrStdout()); err != nil {
				return err
			}
			cmd.SetContext(withSession(cmd.Context(), a))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&f.configPath, "config", "", "Config file (default ~/.config/clickcheck/config.yaml)")
	cmd.PersistentFlags().StringVar(&f.apiURL, "api-url", "", "Backend base URL")
	cmd.PersistentFlags().StringVar(&f.token, "token", "", "Session token to adopt before running the command")
	cmd.PersistentFlags().BoolVar(&f.asJSON, "json", false, "Print JSON instead of tables")
	cmd.PersistentFlags().BoolVarP(&f.verbose, "verbose", "v", false, "Log backend calls to stderr")

	cmd.AddCommand(loginCmd(a))
	cmd.AddCommand(callbackCmd(a))
	cmd.AddCommand(logoutCmd(a))
	cmd.AddCommand(whoamiCmd(a))
	cmd.AddCommand(requestsCmd(a))
	cmd.AddCommand(dashboardCmd(a))
	cmd.AddCommand(rankingCmd(a))
	cmd.AddCommand(reportCmd(a))
	cmd.AddCommand(goalsCmd(a))
	cmd.AddCommand(invitesCmd(a))
	cmd.AddCommand(packagesCmd(a))
	cmd.AddCommand(usersCmd(a))
	cmd.AddCommand(profileCmd(a))
	cmd.AddCommand(watchCmd(a))
	cmd.AddCommand(serveCmd(a))
	cmd.AddCommand(devserverCmd())

	return cmd
}
