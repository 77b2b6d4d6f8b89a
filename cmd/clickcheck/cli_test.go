package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/fakebackend"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/permissions"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/validation"
)

const (
	adminEmail     = "ana@grupoclick.com"
	validatorEmail = "bia@grupoclick.com"
	requesterEmail = "caio@grupoclick.com"
)

type cliEnv struct {
	t         *testing.T
	fake      *fakebackend.Server
	pkg       models.Package
	tokenFile string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	fake := fakebackend.New()
	fake.AddUser(models.User{Email: adminEmail, FullName: "Ana Souza", AdminLevel: models.LevelAdminPrincipal})
	fake.AddUser(models.User{Email: validatorEmail, FullName: "Bia Lima", Permissions: models.Permissions{
		"validate": true, "view_assigned": true, "view_ranking": true,
	}})
	fake.AddUser(models.User{Email: requesterEmail, FullName: "Caio Reis", Permissions: models.Permissions{
		"create_validation": true, "view_ranking": true, "view_dashboard": true,
	}})
	pkg := fake.AddPackage(models.Package{Name: "Stories", Active: true})

	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	tokenFile := filepath.Join(dir, "token")
	t.Setenv("CLICKCHECK_CONFIG", filepath.Join(dir, "missing.yaml"))
	t.Setenv("CLICKCHECK_TOKEN_FILE", tokenFile)
	t.Setenv("CLICKCHECK_API_URL", srv.URL)
	t.Setenv("DATABASE_URL", "")
	return &cliEnv{t: t, fake: fake, pkg: pkg, tokenFile: tokenFile}
}

// run executes one CLI invocation with stdin as its input.
func (e *cliEnv) run(stdin string, args ...string) (string, error) {
	e.t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *cliEnv) as(email string, args ...string) (string, error) {
	e.t.Helper()
	return e.run("", append([]string{"--token", e.fake.TokenFor(email)}, args...)...)
}

func (e *cliEnv) seed(status models.Status, links ...models.LinkValidation) models.ValidationRequest {
	urls := make([]string, 0, len(links))
	for _, l := range links {
		urls = append(urls, l.URL)
	}
	return e.fake.AddRequest(models.ValidationRequest{
		Title:             "Campanha de outubro",
		PackageID:         e.pkg.ID,
		RequestedBy:       requesterEmail,
		AssignedTo:        validatorEmail,
		Status:            status,
		ContentURLs:       urls,
		ValidationPerLink: links,
	})
}

func link(url string, st models.LinkStatus) models.LinkValidation {
	return models.LinkValidation{URL: url, Status: st}
}

func TestWhoami_RequiresSession(t *testing.T) {
	e := newCLIEnv(t)
	_, err := e.run("", "whoami")
	if !errors.Is(err, errNotSignedIn) {
		t.Fatalf("expected errNotSignedIn, got %v", err)
	}
}

func TestWhoami_TokenIsKeptForLaterRuns(t *testing.T) {
	e := newCLIEnv(t)
	out, err := e.as(validatorEmail, "whoami")
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if !strings.Contains(out, validatorEmail) || !strings.Contains(out, "validate") {
		t.Fatalf("unexpected output %q", out)
	}

	out, err = e.run("", "--json", "whoami")
	if err != nil {
		t.Fatalf("second whoami: %v", err)
	}
	var got whoami
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode: %v out=%q", err, out)
	}
	if got.Email != validatorEmail {
		t.Fatalf("expected %s, got %#v", validatorEmail, got)
	}
}

func TestCallbackAndLogout(t *testing.T) {
	e := newCLIEnv(t)
	e.fake.RegisterCode("code-123", requesterEmail)

	out, err := e.run("", "callback", "code-123")
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	if !strings.Contains(out, requesterEmail) {
		t.Fatalf("expected signed in message, got %q", out)
	}
	if _, err := os.Stat(e.tokenFile); err != nil {
		t.Fatalf("expected token file: %v", err)
	}

	if _, err := e.run("", "logout"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := e.run("", "whoami"); !errors.Is(err, errNotSignedIn) {
		t.Fatalf("expected signed out, got %v", err)
	}
}

func TestCallback_UnknownCode(t *testing.T) {
	e := newCLIEnv(t)
	_, err := e.run("", "callback", "nope")
	if err == nil || !strings.Contains(err.Error(), "login_failed") {
		t.Fatalf("expected login_failed, got %v", err)
	}
}

func TestLogin_PrintsBackendURLWithoutClientID(t *testing.T) {
	e := newCLIEnv(t)
	t.Setenv("CLICKCHECK_GOOGLE_CLIENT_ID", "")
	out, err := e.run("", "--json", "login", "--no-browser", "--invite", "inv-1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode: %v out=%q", err, out)
	}
	if !strings.Contains(got["login_url"], "invite=inv-1") {
		t.Fatalf("expected invite bound login url, got %q", got["login_url"])
	}
}

func TestRequestsList_ReceivedTab(t *testing.T) {
	e := newCLIEnv(t)
	open := e.seed(models.StatusPending, link("https://a", models.LinkPending))
	e.seed(models.StatusApproved, link("https://b", models.LinkApproved))

	out, err := e.as(validatorEmail, "--json", "requests", "list", "--tab", "recebidas")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var got listOut
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode: %v out=%q", err, out)
	}
	if got.Tab != "recebidas" || len(got.Items) != 1 || got.Items[0].ID != open.ID {
		t.Fatalf("unexpected board %#v", got)
	}
	if got.Items[0].Links != 1 || len(got.Items[0].Actions) == 0 || got.Items[0].Actions[0] != "validar" {
		t.Fatalf("unexpected row %#v", got.Items[0])
	}
}

func TestRequestsList_HiddenTab(t *testing.T) {
	e := newCLIEnv(t)
	_, err := e.as(validatorEmail, "requests", "list", "--tab", "todas")
	if !errors.Is(err, permissions.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := e.as(validatorEmail, "requests", "list", "--tab", "nope"); err == nil {
		t.Fatalf("expected unknown tab error")
	}
}

func TestRequestsValidate_PartialApproval(t *testing.T) {
	e := newCLIEnv(t)
	r := e.seed(models.StatusPending, link("https://a", models.LinkPending), link("https://b", models.LinkPending))

	_, err := e.as(validatorEmail, "requests", "validate", r.ID.String(),
		"--link", "1=aprovado", "--link", "2=reprovado:Logo cortado", "--observations", "Quase lá")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	got, _ := e.fake.Request(r.ID)
	if got.Status != models.StatusPartialApproved {
		t.Fatalf("expected aprovado_parcial, got %s", got.Status)
	}
	if got.ValidationPerLink[1].Observations != "Logo cortado" || got.FinalObservations != "Quase lá" {
		t.Fatalf("unexpected record %#v", got)
	}
}

func TestRequestsValidate_UndecidedNeverReachesBackend(t *testing.T) {
	e := newCLIEnv(t)
	r := e.seed(models.StatusPending, link("https://a", models.LinkPending), link("https://b", models.LinkPending))

	_, err := e.as(validatorEmail, "requests", "validate", r.ID.String(), "--link", "1=aprovado")
	if !errors.Is(err, validation.ErrUndecidedLinks) {
		t.Fatalf("expected ErrUndecidedLinks, got %v", err)
	}
	if got, _ := e.fake.Request(r.ID); got.Status != models.StatusPending {
		t.Fatalf("expected request untouched, got %s", got.Status)
	}

	if _, err := e.as(validatorEmail, "requests", "validate", r.ID.String(), "--approve-all"); err != nil {
		t.Fatalf("approve-all: %v", err)
	}
	if got, _ := e.fake.Request(r.ID); got.Status != models.StatusApproved {
		t.Fatalf("expected aprovado, got %s", got.Status)
	}
}

func TestRequestsCorrect_ReplacesRejectedLinks(t *testing.T) {
	e := newCLIEnv(t)
	r := e.seed(models.StatusPartialApproved,
		link("https://ok", models.LinkApproved),
		link("https://bad", models.LinkRejected))

	if _, err := e.as(requesterEmail, "requests", "correct", r.ID.String(), "https://fixed", "--notes", "Logo ajustado"); err != nil {
		t.Fatalf("correct: %v", err)
	}
	got, _ := e.fake.Request(r.ID)
	if got.Status != models.StatusPending || got.ContentURLs[1] != "https://fixed" || got.ContentURLs[0] != "https://ok" {
		t.Fatalf("unexpected record %#v", got)
	}
	if got.ReturnCount != 1 {
		t.Fatalf("expected return_count 1, got %d", got.ReturnCount)
	}
}

func TestRequestsCorrect_ByPosition(t *testing.T) {
	e := newCLIEnv(t)
	r := e.seed(models.StatusRejected,
		link("https://same", models.LinkRejected),
		link("https://same", models.LinkRejected))

	_, err := e.as(requesterEmail, "requests", "correct", r.ID.String(), "--url", "2=https://two", "--url", "1=https://one")
	if err != nil {
		t.Fatalf("correct: %v", err)
	}
	got, _ := e.fake.Request(r.ID)
	if got.ContentURLs[0] != "https://one" || got.ContentURLs[1] != "https://two" {
		t.Fatalf("unexpected urls %v", got.ContentURLs)
	}
}

func TestRequestsRevert(t *testing.T) {
	e := newCLIEnv(t)
	r := e.seed(models.StatusApproved, link("https://a", models.LinkApproved))

	if _, err := e.as(validatorEmail, "requests", "revert", r.ID.String(), "--reason", "x"); !errors.Is(err, permissions.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-admin, got %v", err)
	}
	if _, err := e.as(adminEmail, "requests", "revert", r.ID.String()); err == nil {
		t.Fatalf("expected missing reason error")
	}
	if _, err := e.as(adminEmail, "requests", "revert", r.ID.String(), "--reason", "Cliente pediu ajuste"); err != nil {
		t.Fatalf("revert: %v", err)
	}
	if got, _ := e.fake.Request(r.ID); got.Status != models.StatusPending {
		t.Fatalf("expected pendente, got %s", got.Status)
	}
}

func TestRequestsDelete_Confirmation(t *testing.T) {
	e := newCLIEnv(t)
	r := e.seed(models.StatusPending, link("https://a", models.LinkPending))
	token := e.fake.TokenFor(adminEmail)

	_, err := e.run("n\n", "--token", token, "requests", "delete", r.ID.String())
	if !errors.Is(err, validation.ErrNotConfirmed) {
		t.Fatalf("expected ErrNotConfirmed, got %v", err)
	}
	if _, ok := e.fake.Request(r.ID); !ok {
		t.Fatalf("request should still exist")
	}

	if _, err := e.run("s\n", "--token", token, "requests", "delete", r.ID.String()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := e.fake.Request(r.ID); ok {
		t.Fatalf("request should be gone")
	}
}

func TestRequestsDelete_NonAdminForbidden(t *testing.T) {
	e := newCLIEnv(t)
	r := e.seed(models.StatusPending, link("https://a", models.LinkPending))
	if _, err := e.as(requesterEmail, "requests", "delete", r.ID.String(), "--yes"); !errors.Is(err, permissions.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestRequestsCreate(t *testing.T) {
	e := newCLIEnv(t)
	_, err := e.as(requesterEmail, "requests", "create", "--title", "Posts")
	if err == nil || !strings.Contains(err.Error(), "dados inválidos") {
		t.Fatalf("expected field problems, got %v", err)
	}

	out, err := e.as(requesterEmail, "--json", "requests", "create",
		"--title", "Posts de novembro",
		"--package", e.pkg.ID.String(),
		"--assignee", validatorEmail,
		"--priority", "alta",
		"--url", "https://a", "--url", " ", "--url", "https://b")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	var res struct {
		ID models.ID `json:"id"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode: %v out=%q", err, out)
	}
	got, ok := e.fake.Request(res.ID)
	if !ok || len(got.ContentURLs) != 2 || got.Priority != models.PriorityHigh {
		t.Fatalf("unexpected stored request %#v", got)
	}
}

func TestRequestsBulkDate_Gated(t *testing.T) {
	e := newCLIEnv(t)
	r := e.seed(models.StatusPending, link("https://a", models.LinkPending))

	if _, err := e.as(requesterEmail, "requests", "bulk-date", "--date", "2025-01-02", r.ID.String()); !errors.Is(err, permissions.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := e.as(adminEmail, "requests", "bulk-date", "--date", "02/01/2025", r.ID.String()); err == nil {
		t.Fatalf("expected date problem")
	}
	if _, err := e.as(adminEmail, "requests", "bulk-date", "--date", "2025-01-02", r.ID.String()); err != nil {
		t.Fatalf("bulk-date: %v", err)
	}
	if got, _ := e.fake.Request(r.ID); got.CreatedAt.Format("2006-01-02") != "2025-01-02" {
		t.Fatalf("expected new creation date, got %s", got.CreatedAt)
	}
}

func TestViews(t *testing.T) {
	e := newCLIEnv(t)
	e.seed(models.StatusApproved, link("https://a", models.LinkApproved))

	out, err := e.as(requesterEmail, "dashboard")
	if err != nil || !strings.Contains(out, "Olá, Caio") {
		t.Fatalf("dashboard: %v %q", err, out)
	}
	out, err = e.as(requesterEmail, "--json", "ranking")
	if err != nil {
		t.Fatalf("ranking: %v", err)
	}
	var rank map[string][]json.RawMessage
	if err := json.Unmarshal([]byte(out), &rank); err != nil || len(rank["active"]) == 0 {
		t.Fatalf("unexpected ranking %q err=%v", out, err)
	}
	if _, err := e.as(requesterEmail, "report"); !errors.Is(err, permissions.ErrForbidden) {
		t.Fatalf("expected report to be forbidden, got %v", err)
	}
	if _, err := e.as(adminEmail, "report", "--status", "aprovado"); err != nil {
		t.Fatalf("report: %v", err)
	}
	if _, err := e.as(adminEmail, "report", "--status", "talvez"); err == nil {
		t.Fatalf("expected unknown status error")
	}
	if _, err := e.as(adminEmail, "goals", "--month", "2025-13"); err == nil {
		t.Fatalf("expected bad month error")
	}
}

func TestInvites(t *testing.T) {
	e := newCLIEnv(t)
	out, err := e.as(adminEmail, "--json", "invites", "create", "--email", "novo@grupoclick.com", "--days", "3")
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}
	var inv models.Invite
	if err := json.Unmarshal([]byte(out), &inv); err != nil {
		t.Fatalf("decode: %v out=%q", err, out)
	}
	if inv.Token == "" || !strings.Contains(inv.InviteURL, inv.Token) {
		t.Fatalf("expected invite link, got %#v", inv)
	}

	out, err = e.run("", "--json", "invites", "verify", inv.Token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !strings.Contains(out, `"valid": true`) || !strings.Contains(out, "accept_url") {
		t.Fatalf("unexpected verification %q", out)
	}

	if _, err := e.as(validatorEmail, "invites", "list"); !errors.Is(err, permissions.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestParseVerdict(t *testing.T) {
	i, st, obs, err := parseVerdict("2=reprovado: Logo cortado ")
	if err != nil || i != 1 || st != models.LinkRejected || obs != "Logo cortado" {
		t.Fatalf("unexpected %d %s %q %v", i, st, obs, err)
	}
	for _, bad := range []string{"aprovado", "0=aprovado", "x=aprovado", "1=pendente", "1=talvez"} {
		if _, _, _, err := parseVerdict(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestAsk(t *testing.T) {
	var prompt bytes.Buffer
	if !ask(strings.NewReader("Sim\n"), &prompt, "Excluir?") {
		t.Fatalf("expected yes")
	}
	if ask(strings.NewReader(""), &prompt, "Excluir?") {
		t.Fatalf("expected no on empty input")
	}
	if !strings.Contains(prompt.String(), "[s/N]") {
		t.Fatalf("expected prompt, got %q", prompt.String())
	}
}

func TestSeedDemo(t *testing.T) {
	fake := fakebackend.New()
	seedDemo(fake)
	for _, u := range demoUsers {
		if _, ok := fake.User(u.Email); !ok {
			t.Fatalf("expected demo user %s", u.Email)
		}
	}
	var out bytes.Buffer
	printDemoTokens(&out, fake, "8089")
	if strings.Count(out.String(), "--token ") != len(demoUsers) {
		t.Fatalf("expected one token per demo user, got %q", out.String())
	}
}
