package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	accountdomain "github.com/gatherly/gatherly/internal/account/domain"
	accountrepo "github.com/gatherly/gatherly/internal/account/repository"
	accountservice "github.com/gatherly/gatherly/internal/account/service"
	"github.com/gatherly/gatherly/internal/clock"
	"github.com/gatherly/gatherly/internal/config"
	invitationdomain "github.com/gatherly/gatherly/internal/invitation/domain"
	invitationrepo "github.com/gatherly/gatherly/internal/invitation/repository"
	membershipdomain "github.com/gatherly/gatherly/internal/membership/domain"
	membershiprepo "github.com/gatherly/gatherly/internal/membership/repository"
	membershipservice "github.com/gatherly/gatherly/internal/membership/service"
	obsmetrics "github.com/gatherly/gatherly/internal/observability/metrics"
	organizationdomain "github.com/gatherly/gatherly/internal/organization/domain"
	organizationrepo "github.com/gatherly/gatherly/internal/organization/repository"
	organizationservice "github.com/gatherly/gatherly/internal/organization/service"
	"github.com/gatherly/gatherly/internal/providers/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type testApp struct {
	router *gin.Engine
	clk    *clock.FakeClock
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&organizationdomain.Organization{},
		&accountdomain.Account{},
		&membershipdomain.Membership{},
		&invitationdomain.Token{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	clk := clock.NewFakeClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	cfg := config.Config{BaseURL: "http://localhost:8080"}

	m, err := obsmetrics.New(obsmetrics.Config{}, noop.NewMeterProvider())
	require.NoError(t, err)

	orgRepo := organizationrepo.NewRepository(conn)
	acctRepo := accountrepo.NewRepository(conn)
	ledger := membershiprepo.NewRepository(conn)
	tokens := invitationrepo.NewRepository(conn)

	srv := NewServer(
		cfg,
		log,
		conn,
		organizationservice.NewService(conn, log, clk, orgRepo, ledger, node),
		accountservice.NewService(conn, log, clk, acctRepo, ledger, node),
		membershipservice.NewService(conn, log, clk, m, ledger, tokens, orgRepo, acctRepo, &email.NoOpProvider{}, node, cfg),
	)

	router := gin.New()
	router.Use(ErrorHandlingMiddleware())
	srv.RegisterAPIRoutes(router)

	return &testApp{router: router, clk: clk}
}

func (a *testApp) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testApp) decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (a *testApp) createOrg(t *testing.T, name string) string {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/organizations", fmt.Sprintf(`{"name":%q}`, name))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return a.decode(t, w)["id"].(string)
}

func (a *testApp) createAccount(t *testing.T, emailAddr string) string {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/accounts", fmt.Sprintf(`{"email":%q}`, emailAddr))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return a.decode(t, w)["id"].(string)
}

func TestInviteAcceptFlow(t *testing.T) {
	app := newTestApp(t)
	orgID := app.createOrg(t, "Gatherly HQ")
	aliceID := app.createAccount(t, "alice@example.com")

	w := app.do(t, http.MethodPost, "/api/organizations/"+orgID+"/invite",
		`{"email":"alice@example.com","role":"organizer"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := app.decode(t, w)
	token := body["token"].(string)
	require.NotEmpty(t, token)
	assert.Equal(t, true, body["delivered"])

	w = app.do(t, http.MethodPost,
		fmt.Sprintf("/api/organizations/%s/add-account/%s?token=%s", orgID, aliceID, token), "")
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = app.do(t, http.MethodGet, "/api/organizations/"+orgID+"/accounts", "")
	require.Equal(t, http.StatusOK, w.Code)
	accounts := app.decode(t, w)["data"].([]interface{})
	require.Len(t, accounts, 1)

	// The consumed token is gone for everyone, including a second account.
	bobID := app.createAccount(t, "bob@example.com")
	w = app.do(t, http.MethodPost,
		fmt.Sprintf("/api/organizations/%s/add-account/%s?token=%s", orgID, bobID, token), "")
	assert.Equal(t, http.StatusGone, w.Code, w.Body.String())
}

func TestChangeRoleAndManagedOrganizations(t *testing.T) {
	app := newTestApp(t)
	orgID := app.createOrg(t, "Gatherly HQ")
	aliceID := app.createAccount(t, "alice@example.com")

	w := app.do(t, http.MethodPost, "/api/organizations/"+orgID+"/invite",
		`{"email":"alice@example.com","role":"member"}`)
	require.Equal(t, http.StatusOK, w.Code)
	token := app.decode(t, w)["token"].(string)

	w = app.do(t, http.MethodPost,
		fmt.Sprintf("/api/organizations/%s/add-account/%s?token=%s", orgID, aliceID, token), "")
	require.Equal(t, http.StatusNoContent, w.Code)

	w = app.do(t, http.MethodGet, "/api/accounts/"+aliceID+"/managed-organizations", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, app.decode(t, w)["data"])

	w = app.do(t, http.MethodPost,
		fmt.Sprintf("/api/organizations/%s/change-role/%s", orgID, aliceID),
		`{"from":"member","to":"admin"}`)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = app.do(t, http.MethodGet, "/api/accounts/"+aliceID+"/managed-organizations", "")
	require.Equal(t, http.StatusOK, w.Code)
	managed := app.decode(t, w)["data"].([]interface{})
	require.Len(t, managed, 1)

	// Repeating the same change finds no member row to move.
	w = app.do(t, http.MethodPost,
		fmt.Sprintf("/api/organizations/%s/change-role/%s", orgID, aliceID),
		`{"from":"member","to":"admin"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestErrorStatusMapping(t *testing.T) {
	app := newTestApp(t)
	orgID := app.createOrg(t, "Gatherly HQ")
	aliceID := app.createAccount(t, "alice@example.com")
	unknownID := "99999999999999"

	t.Run("unknown organization", func(t *testing.T) {
		w := app.do(t, http.MethodGet, "/api/organizations/"+unknownID, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		w := app.do(t, http.MethodGet, "/api/organizations/not-a-number", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown token", func(t *testing.T) {
		w := app.do(t, http.MethodPost,
			fmt.Sprintf("/api/organizations/%s/add-account/%s?token=nope", orgID, aliceID), "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		w := app.do(t, http.MethodPost,
			fmt.Sprintf("/api/organizations/%s/add-account/%s", orgID, aliceID), "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("remove a non member", func(t *testing.T) {
		w := app.do(t, http.MethodPost,
			fmt.Sprintf("/api/organizations/%s/remove-account/%s", orgID, aliceID), "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invite without email", func(t *testing.T) {
		w := app.do(t, http.MethodPost, "/api/organizations/"+orgID+"/invite", `{"role":"member"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("change role outside the catalog", func(t *testing.T) {
		w := app.do(t, http.MethodPost,
			fmt.Sprintf("/api/organizations/%s/change-role/%s", orgID, aliceID),
			`{"from":"member","to":"superuser"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("duplicate account email", func(t *testing.T) {
		w := app.do(t, http.MethodPost, "/api/accounts", `{"email":"alice@example.com"}`)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("occupied target role", func(t *testing.T) {
		for _, role := range []string{"member", "admin"} {
			w := app.do(t, http.MethodPost, "/api/organizations/"+orgID+"/invite",
				fmt.Sprintf(`{"email":"alice@example.com","role":%q}`, role))
			require.Equal(t, http.StatusOK, w.Code)
			token := app.decode(t, w)["token"].(string)
			w = app.do(t, http.MethodPost,
				fmt.Sprintf("/api/organizations/%s/add-account/%s?token=%s", orgID, aliceID, token), "")
			require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
		}

		w := app.do(t, http.MethodPost,
			fmt.Sprintf("/api/organizations/%s/change-role/%s", orgID, aliceID),
			`{"from":"member","to":"admin"}`)
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}
