package api

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"quoteflow/common"
	"quoteflow/srv"
	"quoteflow/srv/sqlite"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const (
	testUserId      = "user_alice"
	testToken       = "token-alice"
	otherUserId     = "user_bob"
	otherUserToken  = "token-bob"
	testApiBasePath = "/api/v1"
)

type testServer struct {
	ctrl    Controller
	router  *gin.Engine
	storage *sqlite.Storage
}

// newTestServer wires a controller to in-memory sqlite and the in-memory
// change streamer.
func newTestServer(t *testing.T) testServer {
	gin.SetMode(gin.TestMode)

	storage := sqlite.NewTestSqliteStorage(t, "api_test")
	service := srv.NewDelegator(storage, srv.NewMemoryStreamer())
	ctrl, err := NewController(service, common.ServerConfig{
		Tokens: map[string]string{
			testToken:      testUserId,
			otherUserToken: otherUserId,
		},
	})
	require.NoError(t, err)

	router, err := DefineRoutes(ctrl)
	require.NoError(t, err)

	return testServer{ctrl: ctrl, router: router, storage: storage}
}

func (s testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, testApiBasePath+path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	var result T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result), w.Body.String())
	return result
}

func requireStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
}

