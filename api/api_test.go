package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mezonai/starnotary/chain"
	"github.com/mezonai/starnotary/mempool"
	"github.com/mezonai/starnotary/notary"
	"github.com/mezonai/starnotary/ratelimit"
	"github.com/mezonai/starnotary/store"
	"github.com/mezonai/starnotary/verifier"
)

const addrA = "142BDCeSGbXjWKaAnYXbMpZ6sbrSAo3DpZ"

func sign(message string) string { return "sig:" + message }

func newTestRouter(t *testing.T, limiter *ratelimit.RateLimiter) (*gin.Engine, *clock.Mock) {
	t.Helper()
	s, mock := newTestServer(t, ":0", limiter)
	return s.Router(), mock
}

func newTestServer(t *testing.T, addr string, limiter *ratelimit.RateLimiter) (*APIServer, *clock.Mock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	bs, err := store.CreateStore(&store.StoreConfig{Type: store.MemoryStoreType})
	require.NoError(t, err)
	t.Cleanup(bs.MustClose)

	mock := clock.NewMock()
	mock.Set(time.Unix(1544562431, 0))
	bc, err := chain.NewBlockchain(bs, chain.WithClock(mock))
	require.NoError(t, err)
	_, err = bc.Initialize(context.Background())
	require.NoError(t, err)

	v := verifier.Func(func(message, _, signature string) bool { return signature == sign(message) })
	mp, err := mempool.NewMempool(v, mempool.WithClock(mock))
	require.NoError(t, err)
	t.Cleanup(mp.Close)

	svc, err := notary.NewService(bc, mp)
	require.NoError(t, err)
	return NewAPIServer(svc, mp, addr, limiter), mock
}

func do(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestRegistrationFlow(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w := do(t, r, http.MethodPost, "/requestValidation", AddressReq{Address: addrA})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var challenge mempool.Challenge
	decode(t, w, &challenge)
	assert.Equal(t, addrA+":1544562431:starRegistry", challenge.Message)
	assert.Equal(t, int64(300), challenge.ValidationWindow)
	assert.Contains(t, w.Body.String(), `"walletAddress"`)

	w = do(t, r, http.MethodPost, "/requestValidation", AddressReq{Address: addrA})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, r, http.MethodPost, "/message-signature/validate", SignatureReq{Address: addrA, Signature: "bad"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_signature")

	w = do(t, r, http.MethodPost, "/message-signature/validate", SignatureReq{Address: addrA, Signature: sign(challenge.Message)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var sigResp SignatureResp
	decode(t, w, &sigResp)
	assert.True(t, sigResp.RegisterStar)
	assert.True(t, sigResp.Status.SignatureValid)

	star := notary.Star{RA: "16h 29m 1.0s", Dec: "68° 52' 56.9", Story: "Found star using https://www.google.com/sky/"}
	w = do(t, r, http.MethodPost, "/block", StarReq{Address: addrA, Star: star})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Hash   string          `json:"hash"`
		Height uint64          `json:"height"`
		Body   notary.StarBody `json:"body"`
	}
	decode(t, w, &created)
	assert.Equal(t, uint64(1), created.Height)
	assert.Equal(t, star.Story, created.Body.Star.StoryDecoded)

	w = do(t, r, http.MethodPost, "/block", StarReq{Address: addrA, Star: star})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "not_authorized")

	w = do(t, r, http.MethodGet, "/stars/hash:"+created.Hash, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, "/stars/walletaddress:"+addrA, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stars []json.RawMessage
	decode(t, w, &stars)
	assert.Len(t, stars, 1)

	w = do(t, r, http.MethodGet, "/chain/height", nil)
	assert.JSONEq(t, `{"height":2}`, w.Body.String())

	w = do(t, r, http.MethodGet, "/chain/validate", nil)
	assert.JSONEq(t, `{"valid":true,"offending":[]}`, w.Body.String())
}

func TestGetBlock(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w := do(t, r, http.MethodGet, "/stars/block/0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var genesis map[string]interface{}
	decode(t, w, &genesis)
	assert.Equal(t, "First block in the chain - Genesis block", genesis["body"])
	assert.Equal(t, "", genesis["previousBlockHash"])

	w = do(t, r, http.MethodGet, "/stars/block/7", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "block_not_found")

	w = do(t, r, http.MethodGet, "/stars/block/-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, "/stars/hash:deadbeef", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "block_not_found")

	w = do(t, r, http.MethodGet, "/stars/walletaddress:nobody", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = do(t, r, http.MethodGet, "/stars/height:1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_request")
}

func TestExpiredRequest(t *testing.T) {
	r, mock := newTestRouter(t, nil)

	w := do(t, r, http.MethodPost, "/requestValidation", AddressReq{Address: addrA})
	require.Equal(t, http.StatusOK, w.Code)
	var challenge mempool.Challenge
	decode(t, w, &challenge)

	mock.Add(mempool.DefaultValidationWindow)
	w = do(t, r, http.MethodPost, "/message-signature/validate", SignatureReq{Address: addrA, Signature: sign(challenge.Message)})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "no_pending_request")
}

func TestMalformedBodies(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/requestValidation", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/requestValidation", AddressReq{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_star")

	w = do(t, r, http.MethodPost, "/block", StarReq{Address: addrA, Star: notary.Star{RA: "1"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	big := bytes.Repeat([]byte("a"), 32*1024)
	w = do(t, r, http.MethodPost, "/requestValidation", AddressReq{Address: string(big)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWriteRoutesAreRateLimited(t *testing.T) {
	limiter := ratelimit.NewRateLimiterWithClock(&ratelimit.RateLimiterConfig{
		MaxRequests:     1,
		WindowSize:      time.Minute,
		CleanupInterval: time.Minute,
	}, clock.NewMock())
	t.Cleanup(limiter.Stop)
	r, _ := newTestRouter(t, limiter)

	assert.Equal(t, http.StatusOK, do(t, r, http.MethodPost, "/requestValidation", AddressReq{Address: addrA}).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, r, http.MethodPost, "/requestValidation", AddressReq{Address: "other"}).Code)

	// Reads are not limited.
	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/stars/block/0", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/stars/block/0", nil).Code)
}

func TestHealthAndMetrics(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w := do(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"mempool_size":0`)

	w = do(t, r, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "starnotary_block_height")
}

func TestStartReportsBindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	s, _ := newTestServer(t, ln.Addr().String(), nil)
	err = s.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), ln.Addr().String())
}

func TestStartAndShutdown(t *testing.T) {
	s, _ := newTestServer(t, "127.0.0.1:0", nil)
	require.NoError(t, s.Start())
	require.NoError(t, s.Shutdown(context.Background()))

	select {
	case err := <-s.Err():
		t.Fatalf("clean shutdown reported %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}
