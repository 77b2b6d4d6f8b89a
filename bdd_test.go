package main

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cucumber/godog"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/api"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/fakebackend"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/permissions"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/session"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/tokenstore"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/validation"
)

// bddTestContext drives the real client stack against the in-memory
// backend: api.Client for transport, session.Session for identity and
// validation.Service for lifecycle intents.
type bddTestContext struct {
	fake     *fakebackend.Server
	server   *httptest.Server
	packages map[string]models.ID

	client *api.Client
	sess   *session.Session
	svc    *validation.Service

	current models.ID
	lastErr error
}

var failureKinds = map[string]error{
	"forbidden":       permissions.ErrForbidden,
	"undecided":       validation.ErrUndecidedLinks,
	"not correctable": validation.ErrNotCorrectable,
	"unauthorized":    api.ErrUnauthorized,
}

func (ctx *bddTestContext) reset() {
	if ctx.server != nil {
		ctx.server.Close()
	}
	ctx.fake = fakebackend.New()
	ctx.server = httptest.NewServer(ctx.fake)
	ctx.packages = map[string]models.ID{}
	ctx.client, ctx.sess, ctx.svc = nil, nil, nil
	ctx.current = ""
	ctx.lastErr = nil
}

func (ctx *bddTestContext) close() {
	if ctx.server != nil {
		ctx.server.Close()
		ctx.server = nil
	}
}

func (ctx *bddTestContext) aPackage(name string) error {
	p := ctx.fake.AddPackage(models.Package{Name: name, Type: models.PackageArtwork, Active: true})
	ctx.packages[name] = p.ID
	return nil
}

func (ctx *bddTestContext) anAdmin(email string) error {
	ctx.fake.AddUser(models.User{Email: email, FullName: email, AdminLevel: models.LevelAdminPrincipal})
	return nil
}

func (ctx *bddTestContext) aValidator(email string) error {
	return ctx.aUserWithPermissions(email, "validate,view_assigned")
}

func (ctx *bddTestContext) aRequester(email string) error {
	return ctx.aUserWithPermissions(email, "create_validation")
}

func (ctx *bddTestContext) aUserWithPermissions(email, keys string) error {
	perms := models.Permissions{}
	for _, k := range splitList(keys) {
		perms[k] = true
	}
	ctx.fake.AddUser(models.User{Email: email, FullName: email, AdminLevel: models.LevelUser, Permissions: perms})
	return nil
}

func (ctx *bddTestContext) iAmSignedInAs(email string) error {
	if _, ok := ctx.fake.User(email); !ok {
		return fmt.Errorf("unknown user %q", email)
	}
	store := tokenstore.NewMemoryStore(ctx.fake.TokenFor(email))
	ctx.client = api.New(ctx.server.URL, store)
	ctx.sess = session.New(store, ctx.client, session.Options{})
	st, err := ctx.sess.Init(context.Background(), "")
	if err != nil {
		return err
	}
	if st != session.Authenticated {
		return fmt.Errorf("expected an authenticated session, got %s", st)
	}
	ctx.svc = validation.NewService(ctx.client, ctx.sess, nil)
	return nil
}

func (ctx *bddTestContext) seed(status models.Status, title, from, to, links string, rejected int) error {
	pkg, ok := ctx.packages["P1"]
	if !ok {
		return errors.New("package P1 was not created")
	}
	urls := splitList(links)
	r := models.ValidationRequest{
		Title:       title,
		PackageID:   pkg,
		RequestedBy: from,
		AssignedTo:  to,
		Status:      status,
		ContentURLs: urls,
	}
	if status != models.StatusPending {
		for i, u := range urls {
			l := models.LinkValidation{URL: u, Status: models.LinkApproved}
			if i == rejected-1 {
				l.Status = models.LinkRejected
				l.Observations = "refazer"
			}
			r.ValidationPerLink = append(r.ValidationPerLink, l)
		}
	}
	ctx.current = ctx.fake.AddRequest(r).ID
	return nil
}

func (ctx *bddTestContext) aPendingRequest(title, from, to, links string) error {
	return ctx.seed(models.StatusPending, title, from, to, links, 0)
}

func (ctx *bddTestContext) aPartiallyApprovedRequest(title, from, to, links string, rejected int) error {
	return ctx.seed(models.StatusPartialApproved, title, from, to, links, rejected)
}

func (ctx *bddTestContext) anApprovedRequest(title, from, to, links string) error {
	return ctx.seed(models.StatusApproved, title, from, to, links, 0)
}

// fetch loads the current request the way the signed-in user sees it.
func (ctx *bddTestContext) fetch() (models.ValidationRequest, error) {
	if ctx.svc == nil {
		return models.ValidationRequest{}, errors.New("nobody is signed in")
	}
	r, err := ctx.svc.Get(context.Background(), ctx.current)
	if err != nil {
		return models.ValidationRequest{}, err
	}
	return *r, nil
}

func (ctx *bddTestContext) record(res api.Result, err error) {
	ctx.lastErr = err
	if err == nil && !res.ID.IsZero() {
		ctx.current = res.ID
	}
}

func (ctx *bddTestContext) iCreateARequest(title, pkg, validator string, table *godog.Table) error {
	var urls []string
	for i, row := range table.Rows {
		if i == 0 {
			continue
		}
		urls = append(urls, row.Cells[0].Value)
	}
	ctx.record(ctx.svc.Create(context.Background(), validation.Draft{
		Title:       title,
		PackageID:   ctx.packages[pkg],
		AssignedTo:  validator,
		ContentURLs: urls,
	}))
	return ctx.lastErr
}

func (ctx *bddTestContext) iApproveAndRejectWithObservations(approve, reject int, observations string) error {
	r, err := ctx.fetch()
	if err != nil {
		return err
	}
	rv := validation.NewReview(r)
	if err := rv.Approve(approve-1, ""); err != nil {
		return err
	}
	if err := rv.Reject(reject-1, "fora do padrão"); err != nil {
		return err
	}
	rv.FinalObservations = observations
	ctx.record(ctx.svc.Validate(context.Background(), r, rv))
	return ctx.lastErr
}

func (ctx *bddTestContext) iApproveLinkAndSubmit(n int) error {
	r, err := ctx.fetch()
	if err != nil {
		return err
	}
	rv := validation.NewReview(r)
	if err := rv.Approve(n-1, ""); err != nil {
		return err
	}
	ctx.record(ctx.svc.Validate(context.Background(), r, rv))
	return nil
}

func (ctx *bddTestContext) iReplaceLinkWith(n int, url string) error {
	r, err := ctx.fetch()
	if err != nil {
		return err
	}
	c, err := validation.NewCorrection(r)
	if err != nil {
		return err
	}
	if err := c.Set(n-1, url); err != nil {
		return err
	}
	ctx.record(ctx.svc.Correct(context.Background(), r, c))
	return ctx.lastErr
}

func (ctx *bddTestContext) iRevertTheRequestWithReason(reason string) error {
	r, err := ctx.fetch()
	if err != nil {
		return err
	}
	ctx.record(ctx.svc.Revert(context.Background(), r, reason))
	return nil
}

func (ctx *bddTestContext) theActionShouldFailWith(kind string) error {
	want, ok := failureKinds[kind]
	if !ok {
		return fmt.Errorf("unknown failure kind %q", kind)
	}
	if !errors.Is(ctx.lastErr, want) {
		return fmt.Errorf("expected %s failure, got %v", kind, ctx.lastErr)
	}
	return nil
}

// stored reads the backend's own copy, bypassing the client.
func (ctx *bddTestContext) stored() (models.ValidationRequest, error) {
	r, ok := ctx.fake.Request(ctx.current)
	if !ok {
		return r, fmt.Errorf("request %s not found", ctx.current)
	}
	return r, nil
}

func (ctx *bddTestContext) theRequestStatusShouldBe(status string) error {
	r, err := ctx.stored()
	if err != nil {
		return err
	}
	if string(r.Status) != status {
		return fmt.Errorf("expected status %q, got %q", status, r.Status)
	}
	return nil
}

func (ctx *bddTestContext) theRequestShouldHaveLinks(count int, status string) error {
	r, err := ctx.stored()
	if err != nil {
		return err
	}
	if len(r.ValidationPerLink) != count {
		return fmt.Errorf("expected %d link entries, got %d", count, len(r.ValidationPerLink))
	}
	for i, l := range r.ValidationPerLink {
		if string(l.Status) != status {
			return fmt.Errorf("link %d: expected %q, got %q", i+1, status, l.Status)
		}
	}
	return nil
}

func (ctx *bddTestContext) theFinalObservationsShouldBe(want string) error {
	r, err := ctx.stored()
	if err != nil {
		return err
	}
	if r.FinalObservations != want {
		return fmt.Errorf("expected observations %q, got %q", want, r.FinalObservations)
	}
	return nil
}

func (ctx *bddTestContext) theRequestLinksShouldBe(links string) error {
	r, err := ctx.stored()
	if err != nil {
		return err
	}
	if got := strings.Join(r.ContentURLs, ","); got != links {
		return fmt.Errorf("expected links %q, got %q", links, got)
	}
	return nil
}

func (ctx *bddTestContext) theReturnCountShouldBe(n int) error {
	r, err := ctx.stored()
	if err != nil {
		return err
	}
	if int(r.ReturnCount) != n {
		return fmt.Errorf("expected return count %d, got %d", n, r.ReturnCount)
	}
	return nil
}

func (ctx *bddTestContext) theHistoryShouldContain(action, details string) error {
	r, err := ctx.stored()
	if err != nil {
		return err
	}
	h, ok := r.LastHistory(action)
	if !ok {
		return fmt.Errorf("no %q entry in history %+v", action, r.History)
	}
	if h.Details != details {
		return fmt.Errorf("expected details %q, got %q", details, h.Details)
	}
	return nil
}

func (ctx *bddTestContext) theTabShouldList(tab, titles string) error {
	t, err := validation.ParseTab(tab)
	if err != nil {
		return err
	}
	board := validation.NewBoard(ctx.client, ctx.sess, 0, nil)
	defer board.Close()
	if err := board.SetTab(t); err != nil {
		return err
	}
	if err := board.Refresh(context.Background()); err != nil {
		return err
	}
	var got []string
	for _, r := range board.View().Items {
		got = append(got, r.Title)
	}
	if strings.Join(got, ",") != titles {
		return fmt.Errorf("expected tab %s to list %q, got %q", tab, titles, strings.Join(got, ","))
	}
	return nil
}

func (ctx *bddTestContext) theTabShouldBeHidden(tab string) error {
	t, err := validation.ParseTab(tab)
	if err != nil {
		return err
	}
	if validation.Visible(ctx.sess.Capabilities(), t) {
		return fmt.Errorf("expected tab %s to be hidden", tab)
	}
	board := validation.NewBoard(ctx.client, ctx.sess, 0, nil)
	defer board.Close()
	if err := board.SetTab(t); !errors.Is(err, permissions.ErrForbidden) {
		return fmt.Errorf("expected the board to refuse tab %s, got %v", tab, err)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func InitializeScenario(sc *godog.ScenarioContext) {
	testCtx := &bddTestContext{}

	sc.Before(func(ctx context.Context, s *godog.Scenario) (context.Context, error) {
		testCtx.reset()
		return ctx, nil
	})
	sc.After(func(ctx context.Context, s *godog.Scenario, err error) (context.Context, error) {
		testCtx.close()
		return ctx, nil
	})

	sc.Step(`^a package "([^"]*)"$`, testCtx.aPackage)
	sc.Step(`^an admin "([^"]*)"$`, testCtx.anAdmin)
	sc.Step(`^a validator "([^"]*)"$`, testCtx.aValidator)
	sc.Step(`^a requester "([^"]*)"$`, testCtx.aRequester)
	sc.Step(`^a user "([^"]*)" with permissions "([^"]*)"$`, testCtx.aUserWithPermissions)
	sc.Step(`^I am signed in as "([^"]*)"$`, testCtx.iAmSignedInAs)

	sc.Step(`^a pending request "([^"]*)" from "([^"]*)" to "([^"]*)" with links "([^"]*)"$`, testCtx.aPendingRequest)
	sc.Step(`^a partially approved request "([^"]*)" from "([^"]*)" to "([^"]*)" with links "([^"]*)" where link (\d+) was rejected$`, testCtx.aPartiallyApprovedRequest)
	sc.Step(`^an approved request "([^"]*)" from "([^"]*)" to "([^"]*)" with links "([^"]*)"$`, testCtx.anApprovedRequest)

	sc.Step(`^I create a request "([^"]*)" in package "([^"]*)" for "([^"]*)" with links:$`, testCtx.iCreateARequest)
	sc.Step(`^I approve link (\d+), reject link (\d+) and submit with observations "([^"]*)"$`, testCtx.iApproveAndRejectWithObservations)
	sc.Step(`^I approve link (\d+) and submit$`, testCtx.iApproveLinkAndSubmit)
	sc.Step(`^I replace link (\d+) with "([^"]*)"$`, testCtx.iReplaceLinkWith)
	sc.Step(`^I revert the request with reason "([^"]*)"$`, testCtx.iRevertTheRequestWithReason)

	sc.Step(`^the action should fail with "([^"]*)"$`, testCtx.theActionShouldFailWith)
	sc.Step(`^the request status should be "([^"]*)"$`, testCtx.theRequestStatusShouldBe)
	sc.Step(`^the request should have (\d+) "([^"]*)" links$`, testCtx.theRequestShouldHaveLinks)
	sc.Step(`^the final observations should be "([^"]*)"$`, testCtx.theFinalObservationsShouldBe)
	sc.Step(`^the request links should be "([^"]*)"$`, testCtx.theRequestLinksShouldBe)
	sc.Step(`^the return count should be (\d+)$`, testCtx.theReturnCountShouldBe)
	sc.Step(`^the history should contain a "([^"]*)" entry with details "([^"]*)"$`, testCtx.theHistoryShouldContain)
	sc.Step(`^the tab "([^"]*)" should list "([^"]*)"$`, testCtx.theTabShouldList)
	sc.Step(`^the tab "([^"]*)" should be hidden$`, testCtx.theTabShouldBeHidden)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
			Strict:   true,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
