package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breachscan/internal/fingerprint"
	"breachscan/internal/identity"
	"breachscan/internal/kvstore"
	"breachscan/internal/match"
	"breachscan/internal/scan/index"
	"breachscan/internal/scan/models"
	"breachscan/internal/scan/service"
	"breachscan/internal/scan/store"
	"breachscan/internal/scan/txstatus"
)

const testOwner = "0x1234abcd"

type testServer struct {
	srv    *httptest.Server
	engine *service.Engine
	token  string
}

func newTestServer(t *testing.T, matcher match.Matcher) *testServer {
	t.Helper()
	log := slog.New(slog.DiscardHandler)
	kv := kvstore.NewMemory()
	sealer, err := fingerprint.NewSealer([]byte("handler-test-key"))
	require.NoError(t, err)

	engine := service.New(service.Config{
		Records:         store.New(kv, log),
		Index:           index.NewManager(kv, log),
		Encrypter:       sealer,
		Matcher:         matcher,
		Status:          txstatus.New(0),
		Logger:          log,
		ResolutionDelay: 10 * time.Millisecond,
		OpTimeout:       time.Second,
	})
	t.Cleanup(engine.Close)

	jwtSvc := identity.NewJWTService("handler-test-signing-key", "breachscan-test")
	token, err := jwtSvc.GenerateToken(testOwner, time.Hour)
	require.NoError(t, err)

	r := chi.NewRouter()
	New(engine, log, nil, jwtSvc).Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, engine: engine, token: token}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+ts.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestSubmit_RequiresAuth(t *testing.T) {
	ts := newTestServer(t, match.NewCorpus(nil))

	req, err := http.NewRequest(http.MethodPost, ts.srv.URL+"/scans",
		bytes.NewBufferString(`{"password":"pw1"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSubmit_RejectsGarbageToken(t *testing.T) {
	ts := newTestServer(t, match.NewCorpus(nil))
	ts.token = "not-a-jwt"

	resp := ts.do(t, http.MethodPost, "/scans", map[string]string{"password": "pw1"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSubmit_Accepted(t *testing.T) {
	ts := newTestServer(t, match.NewCorpus(nil))

	resp := ts.do(t, http.MethodPost, "/scans", map[string]string{"password": "pw1"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	body := decode[map[string]string](t, resp)
	require.NotEmpty(t, body["id"])

	// The record is visible immediately, owned by the token subject, and the
	// fingerprint never leaves the server.
	get := ts.do(t, http.MethodGet, "/scans/"+body["id"], nil)
	require.Equal(t, http.StatusOK, get.StatusCode)
	rec := decode[map[string]any](t, get)
	assert.Equal(t, testOwner, rec["owner"])
	assert.Equal(t, string(models.StatusProcessing), rec["status"])
	assert.NotContains(t, rec, "hash")
	assert.NotContains(t, rec, "fingerprint")
}

func TestSubmit_EmptyPassword(t *testing.T) {
	ts := newTestServer(t, match.NewCorpus(nil))

	resp := ts.do(t, http.MethodPost, "/scans", map[string]string{"password": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmit_UnsupportedMediaType(t *testing.T) {
	ts := newTestServer(t, match.NewCorpus(nil))

	req, err := http.NewRequest(http.MethodPost, ts.srv.URL+"/scans",
		bytes.NewBufferString("password=pw1"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+ts.token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestGet_NotFound(t *testing.T) {
	ts := newTestServer(t, match.NewCorpus(nil))

	resp := ts.do(t, http.MethodGet, "/scans/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestList_FiltersByStatusAndQuery(t *testing.T) {
	sealer, err := fingerprint.NewSealer([]byte("handler-test-key"))
	require.NoError(t, err)
	corpus := match.NewCorpus([]match.CorpusEntry{{
		Digest: fingerprint.Digest(sealer.DigestKey(), "leaked"),
		Source: "test corpus",
	}})
	ts := newTestServer(t, corpus)

	resp := ts.do(t, http.MethodPost, "/scans", map[string]string{"password": "leaked"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	breachedID := decode[map[string]string](t, resp)["id"]

	resp = ts.do(t, http.MethodPost, "/scans", map[string]string{"password": "clean"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	ts.engine.WaitResolutions()

	all := decode[[]map[string]any](t, ts.do(t, http.MethodGet, "/scans", nil))
	require.Len(t, all, 2)

	breached := decode[[]map[string]any](t, ts.do(t, http.MethodGet, "/scans?status=breached", nil))
	require.Len(t, breached, 1)
	assert.Equal(t, breachedID, breached[0]["id"])
	assert.Equal(t, "test corpus", breached[0]["breachSource"])
	assert.Contains(t, breached[0], "severity")
	assert.Contains(t, breached[0], "severityBand")

	byID := decode[[]map[string]any](t, ts.do(t, http.MethodGet, "/scans?q="+breachedID, nil))
	require.Len(t, byID, 1)
	assert.Equal(t, breachedID, byID[0]["id"])

	none := decode[[]map[string]any](t, ts.do(t, http.MethodGet, "/scans?q=zzz-no-match", nil))
	assert.Empty(t, none)
}

func TestStats(t *testing.T) {
	ts := newTestServer(t, match.NewCorpus(nil))

	resp := ts.do(t, http.MethodPost, "/scans", map[string]string{"password": "pw1"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	ts.engine.WaitResolutions()

	stats := decode[models.Stats](t, ts.do(t, http.MethodGet, "/scans/stats", nil))
	assert.Equal(t, models.Stats{Total: 1, Safe: 1}, stats)
}

func TestStatus_ReflectsLastOperation(t *testing.T) {
	ts := newTestServer(t, match.NewCorpus(nil))

	before := decode[statusResponse](t, ts.do(t, http.MethodGet, "/scans/status", nil))
	assert.False(t, before.Visible)

	resp := ts.do(t, http.MethodPost, "/scans", map[string]string{"password": "pw1"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	after := decode[statusResponse](t, ts.do(t, http.MethodGet, "/scans/status", nil))
	require.True(t, after.Visible)
	assert.Equal(t, txstatus.StateSuccess, after.Update.State)
}

func TestVerify(t *testing.T) {
	ts := newTestServer(t, match.NewCorpus(nil))

	resp := ts.do(t, http.MethodPost, "/scans", map[string]string{"password": "pw1"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	id := decode[map[string]string](t, resp)["id"]

	verified := ts.do(t, http.MethodPost, "/scans/"+id+"/verify", nil)
	require.Equal(t, http.StatusOK, verified.StatusCode)
	rec := decode[map[string]any](t, verified)
	assert.Equal(t, id, rec["id"])

	missing := ts.do(t, http.MethodPost, "/scans/nope/verify", nil)
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}
