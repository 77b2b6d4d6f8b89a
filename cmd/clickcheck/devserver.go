package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/fakebackend"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"
)

var demoUsers = []models.User{
	{Email: "admin@grupoclick.dev", FullName: "Admin Demo", AdminLevel: models.LevelAdminPrincipal},
	{Email: "validador@grupoclick.dev", FullName: "Vera Validadora", AdminLevel: models.LevelUser,
		Profile: models.ProfileValidator, Permissions: models.Permissions{
			"validate": true, "view_assigned": true, "view_ranking": true, "view_dashboard": true,
		}},
	{Email: "solicitante@grupoclick.dev", FullName: "Sol Solicitante", AdminLevel: models.LevelUser,
		Profile: models.ProfileRequester, Permissions: models.Permissions{
			"create_validation": true, "view_ranking": true, "view_dashboard": true,
		}},
}

// seedDemo fills s with a small team, two packages and a request in each
// lifecycle state.
func seedDemo(s *fakebackend.Server) {
	for _, u := range demoUsers {
		s.AddUser(u)
	}
	stories := s.AddPackage(models.Package{Name: "Stories", Type: models.PackageArtwork, Active: true,
		Criteria: []models.Criterion{{Name: "Logo visível", Required: true, Weight: 3}}})
	s.AddPackage(models.Package{Name: "Copy de campanha", Type: models.PackageCopy, Active: true})

	req, val := demoUsers[2].Email, demoUsers[1].Email
	s.AddRequest(models.ValidationRequest{
		Title: "Stories de lançamento", PackageID: stories.ID, RequestedBy: req, AssignedTo: val,
		Priority:    models.PriorityHigh,
		ContentURLs: []string{"https://cdn.example.com/st-1.png", "https://cdn.example.com/st-2.png"},
	})
	s.AddRequest(models.ValidationRequest{
		Title: "Stories de outubro", PackageID: stories.ID, RequestedBy: req, AssignedTo: val,
		Status:      models.StatusPartialApproved,
		ContentURLs: []string{"https://cdn.example.com/out-1.png", "https://cdn.example.com/out-2.png"},
		ValidationPerLink: []models.LinkValidation{
			{URL: "https://cdn.example.com/out-1.png", Status: models.LinkApproved},
			{URL: "https://cdn.example.com/out-2.png", Status: models.LinkRejected, Observations: "Logo cortado"},
		},
	})
	s.AddRequest(models.ValidationRequest{
		Title: "Stories de setembro", PackageID: stories.ID, RequestedBy: req, AssignedTo: val,
		Status:            models.StatusApproved,
		ContentURLs:       []string{"https://cdn.example.com/set-1.png"},
		ValidationPerLink: []models.LinkValidation{{URL: "https://cdn.example.com/set-1.png", Status: models.LinkApproved}},
	})
}

func devserverCmd() *cobra.Command {
	var (
		port     string
		frontend string
		empty    bool
	)
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run an in-memory backend for local development",
		Long: `Starts a fake of the PHP API seeded with demo users, packages and
requests, and prints a token for each demo user. Point the client at it
with --api-url http://localhost:<port>.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fake := fakebackend.New()
			fake.FrontendURL = frontend
			if !empty {
				seedDemo(fake)
			}
			printDemoTokens(cmd.OutOrStdout(), fake, port)
			return serveUntilDone(cmd.Context(), &http.Server{
				Addr:              ":" + port,
				Handler:           fake,
				ReadHeaderTimeout: 5 * time.Second,
			})
		},
	}
	cmd.Flags().StringVar(&port, "port", "8089", "Listen port")
	cmd.Flags().StringVar(&frontend, "frontend-url", "http://localhost:5173", "Base of invite links")
	cmd.Flags().BoolVar(&empty, "empty", false, "Start without demo data")
	return cmd
}

func printDemoTokens(w io.Writer, fake *fakebackend.Server, port string) {
	fmt.Fprintf(w, "Fake backend on http://localhost:%s\n\n", port)
	for _, u := range demoUsers {
		if _, ok := fake.User(u.Email); !ok {
			continue
		}
		fmt.Fprintf(w, "%s\n  clickcheck --api-url http://localhost:%s --token %s whoami\n", u.Email, port, fake.TokenFor(u.Email))
	}
}

func serveUntilDone(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Println("Shutting down devserver...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
