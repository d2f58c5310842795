package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"streamflix/authd/internal/auth"
	"streamflix/authd/internal/catalog"
	"streamflix/authd/internal/config"
	"streamflix/authd/internal/lockout"
	"streamflix/authd/internal/model"
	"streamflix/authd/internal/session"
	"streamflix/authd/internal/store/memory"
	"streamflix/authd/internal/verification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type inbox struct {
	mu   sync.Mutex
	msgs []string
}

func (b *inbox) Send(_ context.Context, _, payload string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, payload)
	return nil
}

func (b *inbox) lastCode() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.msgs) == 0 {
		return ""
	}
	last := b.msgs[len(b.msgs)-1]
	return last[len(last)-6:]
}

// Helper to create a test server with an in-memory store
func newTestServer(t *testing.T) (*Server, *inbox) {
	t.Helper()
	st := memory.NewStore()
	box := &inbox{}

	svc := auth.NewService(
		st,
		lockout.NewGuard(st, lockout.Config{}),
		verification.NewManager(st, box, verification.Config{HashCost: bcrypt.MinCost}),
		session.NewManager(st, 0),
	)
	cat := catalog.NewService(st)
	_, err := cat.Seed(context.Background(), catalog.DefaultItems)
	require.NoError(t, err)

	return NewServer(config.Config{ChallengeSecret: "test-secret"}, svc, cat), box
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

var aliceBody = map[string]string{
	"username": "alice",
	"password": "Abcdef1!",
	"name":     "Alice",
	"phone":    "+919876543210",
	"email":    "alice@x.com",
}

func signIn(t *testing.T, h http.Handler, box *inbox) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/v1/auth/login", "", map[string]string{"username": "alice", "password": "Abcdef1!"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	login := decode[loginResponse](t, rec)

	rec = do(t, h, http.MethodPost, "/v1/auth/verify", "", verifyRequest{Challenge: login.Challenge, Code: box.lastCode()})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[verifyResponse](t, rec).Token
}

func TestHealth(t *testing.T) {
	server, _ := newTestServer(t)
	rec := do(t, server.Handler(), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestSignInFlow(t *testing.T) {
	server, box := newTestServer(t)
	h := server.Handler()

	rec := do(t, h, http.MethodPost, "/v1/auth/register", "", aliceBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reg := decode[map[string]model.User](t, rec)
	assert.Equal(t, "alice", reg["user"].Username)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = do(t, h, http.MethodPost, "/v1/auth/login", "", map[string]string{"username": "alice", "password": "Abcdef1!"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	login := decode[loginResponse](t, rec)
	assert.Equal(t, auth.StateAwaitingVerification, login.State)
	require.NotEmpty(t, login.Challenge)

	rec = do(t, h, http.MethodPost, "/v1/auth/resend", "", resendRequest{Challenge: login.Challenge})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	wrong := "000000"
	if box.lastCode() == wrong {
		wrong = "999999"
	}
	rec = do(t, h, http.MethodPost, "/v1/auth/verify", "", verifyRequest{Challenge: login.Challenge, Code: wrong})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	failed := decode[errorResponse](t, rec)
	assert.Equal(t, string(auth.KindCodeMismatch), failed.Error.Code)
	assert.Equal(t, auth.StateAwaitingVerification, failed.State)

	rec = do(t, h, http.MethodPost, "/v1/auth/verify", "", verifyRequest{Challenge: login.Challenge, Code: box.lastCode()})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	verified := decode[verifyResponse](t, rec)
	assert.Equal(t, auth.StateAuthenticated, verified.State)
	require.NotEmpty(t, verified.Token)

	rec = do(t, h, http.MethodGet, "/v1/me", verified.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	me := decode[map[string]model.User](t, rec)
	assert.Equal(t, "alice", me["user"].Username)

	rec = do(t, h, http.MethodPost, "/v1/auth/logout", verified.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, auth.StateAnonymous, decode[map[string]auth.State](t, rec)["state"])

	rec = do(t, h, http.MethodGet, "/v1/me", verified.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterErrors(t *testing.T) {
	server, _ := newTestServer(t)
	h := server.Handler()

	weak := map[string]string{}
	for k, v := range aliceBody {
		weak[k] = v
	}
	weak["password"] = "aaa"
	rec := do(t, h, http.MethodPost, "/v1/auth/register", "", weak)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	res := decode[errorResponse](t, rec)
	assert.Equal(t, string(auth.KindValidation), res.Error.Code)
	assert.Greater(t, len(res.Error.Reasons), 1)

	rec = do(t, h, http.MethodPost, "/v1/auth/register", "", aliceBody)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(t, h, http.MethodPost, "/v1/auth/register", "", aliceBody)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/auth/register", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestLoginLockoutStatus(t *testing.T) {
	server, _ := newTestServer(t)
	h := server.Handler()
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/v1/auth/register", "", aliceBody).Code)

	bad := map[string]string{"username": "alice", "password": "nope"}
	for i := 1; i <= 3; i++ {
		rec := do(t, h, http.MethodPost, "/v1/auth/login", "", bad)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		res := decode[errorResponse](t, rec)
		assert.Equal(t, i, res.Error.Attempts)
		if i == 3 {
			assert.Equal(t, auth.StateLocked, res.State)
		} else {
			assert.Equal(t, auth.StateAnonymous, res.State)
		}
	}

	rec := do(t, h, http.MethodPost, "/v1/auth/login", "", map[string]string{"username": "alice", "password": "Abcdef1!"})
	require.Equal(t, http.StatusLocked, rec.Code)
	res := decode[errorResponse](t, rec)
	assert.Equal(t, string(auth.KindAccountLocked), res.Error.Code)
	assert.Equal(t, 3, res.Error.Attempts)
	assert.Equal(t, auth.StateLocked, res.State)

	rec = do(t, h, http.MethodPost, "/v1/auth/login", "", map[string]string{"username": "ghost", "password": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVerifyRejectsBadChallenge(t *testing.T) {
	server, _ := newTestServer(t)
	h := server.Handler()

	rec := do(t, h, http.MethodPost, "/v1/auth/verify", "", verifyRequest{Challenge: "garbage", Code: "123456"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "challenge_invalid", decode[errorResponse](t, rec).Error.Code)

	other := newChallengeSigner("other-secret")
	forged, err := other.issue("alice")
	require.NoError(t, err)
	rec = do(t, h, http.MethodPost, "/v1/auth/verify", "", verifyRequest{Challenge: forged, Code: "123456"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChallengeExpires(t *testing.T) {
	c := newChallengeSigner("secret")
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return start }

	tok, err := c.issue("alice")
	require.NoError(t, err)
	username, err := c.parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)

	c.now = func() time.Time { return start.Add(challengeExpiry + time.Minute) }
	_, err = c.parse(tok)
	assert.ErrorIs(t, err, errChallengeInvalid)
}

func TestProtectedRoutesNeedSession(t *testing.T) {
	server, _ := newTestServer(t)
	h := server.Handler()

	for _, path := range []string{"/v1/me", "/v1/catalog", "/v1/profile"} {
		rec := do(t, h, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		rec = do(t, h, http.MethodGet, path, "not-a-session", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestCatalogAndProfile(t *testing.T) {
	server, box := newTestServer(t)
	h := server.Handler()
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/v1/auth/register", "", aliceBody).Code)
	token := signIn(t, h, box)

	rec := do(t, h, http.MethodGet, "/v1/catalog", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[map[string][]model.CatalogItem](t, rec)["items"], len(catalog.DefaultItems))

	rec = do(t, h, http.MethodGet, "/v1/catalog?q=dark", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode[map[string][]model.CatalogItem](t, rec)["items"]
	require.Len(t, items, 1)
	assert.Equal(t, "The Dark Knight", items[0].Title)

	rec = do(t, h, http.MethodPut, "/v1/profile", token, profileRequest{Phone: "12", Email: "bad"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, decode[errorResponse](t, rec).Error.Reasons, 2)

	rec = do(t, h, http.MethodPut, "/v1/profile", token, profileRequest{Phone: "+12345678901", Email: "new@x.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[map[string]model.User](t, rec)["user"]
	assert.Equal(t, "+12345678901", updated.Phone)
	assert.Equal(t, "new@x.com", updated.Email)
}
