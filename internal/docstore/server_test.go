package docstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HarshGadhecha/SpendWise/internal/auth"
	"github.com/HarshGadhecha/SpendWise/internal/certs"
	"github.com/HarshGadhecha/SpendWise/internal/common"
	"github.com/HarshGadhecha/SpendWise/internal/service"
)

type serverFixture struct {
	backend *SQLiteStore
	tokens  *auth.TokenManager
	http    *httptest.Server
}

func newServerFixture(t *testing.T, cfg ServerConfig) *serverFixture {
	t.Helper()
	backend := newTestSQLite(t)
	tokens, err := auth.NewTokenManager("test-secret", "", time.Hour)
	require.NoError(t, err)

	srv := NewServer(backend, tokens, cfg)
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		_ = srv.Close()
		ts.Close()
	})
	return &serverFixture{backend: backend, tokens: tokens, http: ts}
}

func (f *serverFixture) client(t *testing.T, userID string) *Client {
	t.Helper()
	token, _, err := f.tokens.Issue(service.Identity{UserID: userID})
	require.NoError(t, err)
	c, err := NewClient(f.http.URL, token, 2*time.Second)
	require.NoError(t, err)
	return c
}

func TestClient_Contract(t *testing.T) {
	f := newServerFixture(t, ServerConfig{RatePerMinute: 6000, Burst: 1000})
	documentStoreContract(t, f.client(t, "u1"), f.client(t, "u2"))
}

func TestServer_ScopesDocumentsToCaller(t *testing.T) {
	ctx := context.Background()
	f := newServerFixture(t, ServerConfig{RatePerMinute: 6000, Burst: 1000})
	alice := f.client(t, "alice")
	bob := f.client(t, "bob")

	// The server stamps the owner from the token.
	require.NoError(t, alice.Set(ctx, "wallets", "w1", service.Document{"id": "w1", "name": "Cash"}))
	stored, err := f.backend.Get(ctx, "wallets", "w1")
	require.NoError(t, err)
	assert.Equal(t, "alice", stored[service.OwnerField])

	_, err = bob.Get(ctx, "wallets", "w1")
	assert.ErrorIs(t, err, common.ErrNotFound)

	err = bob.Set(ctx, "wallets", "w1", service.Document{"id": "w1"})
	assert.ErrorIs(t, err, common.ErrRemote)

	err = bob.Set(ctx, "wallets", "w2", service.Document{"id": "w2", "userId": "alice"})
	assert.ErrorIs(t, err, common.ErrRemote)

	err = bob.Set(ctx, UsersCollection, "alice", service.Document{"id": "alice"})
	assert.ErrorIs(t, err, common.ErrRemote)

	err = bob.Delete(ctx, "wallets", "w1")
	assert.ErrorIs(t, err, common.ErrRemote)

	docs, err := bob.Query(ctx, service.Query{Collection: "wallets", OwnerID: "bob"})
	require.NoError(t, err)
	assert.Empty(t, docs)

	require.NoError(t, bob.Set(ctx, UsersCollection, "bob", service.Document{"id": "bob", "email": "b@example.com"}))
	profile, err := bob.Get(ctx, UsersCollection, "bob")
	require.NoError(t, err)
	assert.Equal(t, "b@example.com", profile["email"])
}

func TestServer_RejectsMissingToken(t *testing.T) {
	f := newServerFixture(t, ServerConfig{})

	resp, err := http.Get(f.http.URL + "/v1/wallets")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	c, err := NewClient(f.http.URL, "forged", time.Second)
	require.NoError(t, err)
	_, err = c.Query(context.Background(), service.Query{Collection: "wallets", OwnerID: "u1"})
	assert.ErrorIs(t, err, common.ErrRemote)

	resp, err = http.Get(f.http.URL + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_RateLimit(t *testing.T) {
	ctx := context.Background()
	f := newServerFixture(t, ServerConfig{RatePerMinute: 1, Burst: 2})
	c := f.client(t, "u1")
	q := service.Query{Collection: "wallets", OwnerID: "u1"}

	_, err := c.Query(ctx, q)
	require.NoError(t, err)
	_, err = c.Query(ctx, q)
	require.NoError(t, err)

	_, err = c.Query(ctx, q)
	assert.ErrorIs(t, err, common.ErrUnavailable, "429 is transient")

	// Limits are per user.
	_, err = f.client(t, "u2").Query(ctx, q)
	require.NoError(t, err)
}

func TestClient_ListenOverWebSocket(t *testing.T) {
	ctx := context.Background()
	f := newServerFixture(t, ServerConfig{RatePerMinute: 6000, Burst: 1000})
	c := f.client(t, "u1")

	var rec recorder
	stop, err := c.Listen(ctx, service.Query{Collection: "goals", OwnerID: "u1"}, rec.record)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Set(ctx, "goals", "g1", service.Document{"id": "g1"}))
	require.Eventually(t, func() bool { return rec.count() == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"g1"}, ids(rec.last()))

	stop()
	require.NoError(t, c.Set(ctx, "goals", "g2", service.Document{"id": "g2"}))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 2, rec.count())
}

func TestClient_UnreachableServerIsUnavailable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c, err := NewClient(url, "t", time.Second)
	require.NoError(t, err)
	err = c.Set(context.Background(), "wallets", "w", service.Document{"id": "w"})
	assert.ErrorIs(t, err, common.ErrUnavailable)
	assert.True(t, common.IsRetryable(err))

	_, err = c.Listen(context.Background(), service.Query{Collection: "wallets", OwnerID: "u"}, func([]service.Document) {})
	assert.ErrorIs(t, err, common.ErrUnavailable)
}

func TestClient_DeadlineIsTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer slow.Close()

	c, err := NewClient(slow.URL, "t", 5*time.Second)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = c.Delete(ctx, "wallets", "w")
	assert.ErrorIs(t, err, common.ErrTimeout)
	assert.NotErrorIs(t, err, common.ErrUnavailable)
}

func TestNewClient_RejectsBadURL(t *testing.T) {
	for _, raw := range []string{"", "not a url", "localhost:8080"} {
		_, err := NewClient(raw, "t", time.Second)
		assert.ErrorIs(t, err, common.ErrInvalidConfig, raw)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, Config{Driver: DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(ctx, Config{Driver: "mongo"})
	assert.ErrorIs(t, err, common.ErrInvalidConfig)

	for _, driver := range []string{DriverSQLite, DriverPostgres, DriverHTTP} {
		_, err = Open(ctx, Config{Driver: driver})
		assert.ErrorIs(t, err, common.ErrMissingConfig, driver)
	}

	c, err := Open(ctx, Config{Driver: DriverHTTP, URL: "https://example.com/api"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(c.(*Client).endpoint(nil, "wallets").String(), "https://example.com/api/v1/wallets"))
}

func TestOpen_HTTPSWithCAFile(t *testing.T) {
	ctx := context.Background()
	backend := newTestSQLite(t)
	tokens, err := auth.NewTokenManager("test-secret", "", time.Hour)
	require.NoError(t, err)
	token, _, err := tokens.Issue(service.Identity{UserID: "alice"})
	require.NoError(t, err)

	issuer := certs.NewIssuer(t.TempDir(), []string{"127.0.0.1"})
	tlsConfig, err := issuer.TLSConfig()
	require.NoError(t, err)

	srv := NewServer(backend, tokens, ServerConfig{})
	ts := httptest.NewUnstartedServer(srv)
	ts.TLS = tlsConfig
	ts.StartTLS()
	t.Cleanup(func() {
		_ = srv.Close()
		ts.Close()
	})

	trusted, err := Open(ctx, Config{Driver: DriverHTTP, URL: ts.URL, Token: token, CAFile: issuer.CertFile(), Timeout: 2 * time.Second})
	require.NoError(t, err)
	defer func() { _ = trusted.Close() }()
	require.NoError(t, trusted.Set(ctx, "wallets", "w1", service.Document{"id": "w1"}))

	untrusted, err := Open(ctx, Config{Driver: DriverHTTP, URL: ts.URL, Token: token, Timeout: 2 * time.Second})
	require.NoError(t, err)
	defer func() { _ = untrusted.Close() }()
	_, err = untrusted.Get(ctx, "wallets", "w1")
	assert.Error(t, err)

	_, err = Open(ctx, Config{Driver: DriverHTTP, URL: ts.URL, CAFile: filepath.Join(t.TempDir(), "missing.crt")})
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}
