package client

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civitas-labs/dispatch-api/schema"
)

func TestAuthenticateSendsSignedTimestamp(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	mock := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/auth", r.URL.Path)

		var req struct {
			Timestamp string `json:"timestamp"`
			Signature string `json:"signature"`
			Principal string `json:"principal"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		assert.Equal(t, hex.EncodeToString(pub), req.Principal)
		sig, err := hex.DecodeString(req.Signature)
		require.NoError(t, err)
		assert.True(t, ed25519.Verify(pub, []byte(req.Timestamp), sig))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"jwt_token": "test-token"})
	}))
	defer mock.Close()

	c := New(mock.URL, nil)
	require.NoError(t, c.Authenticate(priv))
	assert.Equal(t, "test-token", c.token)
}

func TestBearerTokenIsAttached(t *testing.T) {
	mock := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"requests": []schema.HelpRequest{}})
	}))
	defer mock.Close()

	c := New(mock.URL, nil)
	c.SetToken("abc")

	_, err := c.GetAllRequests()
	require.NoError(t, err)
}

func TestGetAllRequestsDecodesList(t *testing.T) {
	mock := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/requests", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"requests": []schema.HelpRequest{
				{ID: 1, Status: schema.StatusAccepted, AssignedOfficer: "officer-1"},
				{ID: 2, Status: schema.StatusPending},
			},
		})
	}))
	defer mock.Close()

	c := New(mock.URL, nil)
	reqs, err := c.GetAllRequests()
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, uint64(1), reqs[0].ID)
	assert.Equal(t, schema.StatusAccepted, reqs[0].Status)
	assert.Equal(t, "officer-1", reqs[0].AssignedOfficer)
}

func TestStatusFilterQuery(t *testing.T) {
	mock := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pending", r.URL.Query().Get("status"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"requests": []schema.HelpRequest{}})
	}))
	defer mock.Close()

	c := New(mock.URL, nil)
	_, err := c.GetRequestsByStatus(schema.StatusPending)
	require.NoError(t, err)
}

func TestErrorEnvelopeDecoding(t *testing.T) {
	mock := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code":    1201,
			"message": "help request is not pending",
		})
	}))
	defer mock.Close()

	c := New(mock.URL, nil)
	err := c.AcceptRequest(7)
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, int64(1201), apiErr.Code)
	assert.Contains(t, apiErr.Error(), "not pending")

	assert.True(t, IsPreconditionFailed(err))
	assert.False(t, IsNotFound(err))
	assert.False(t, IsUnauthorized(err))
}

func TestErrorPredicates(t *testing.T) {
	statuses := map[int]func(error) bool{
		http.StatusNotFound:  IsNotFound,
		http.StatusConflict:  IsPreconditionFailed,
		http.StatusForbidden: IsUnauthorized,
	}

	for status, predicate := range statuses {
		status, predicate := status, predicate
		mock := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(map[string]interface{}{"code": 999, "message": "nope"})
		}))

		err := New(mock.URL, nil).CompleteRequest(1)
		require.Error(t, err)
		assert.True(t, predicate(err), "predicate for http %d", status)
		mock.Close()
	}

	assert.False(t, IsNotFound(nil))
	assert.False(t, IsPreconditionFailed(assert.AnError))
}

func TestSendMessageRoundTrip(t *testing.T) {
	mock := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/requests/3/messages", r.URL.Path)

		var req struct {
			Sender  string `json:"sender"`
			Message string `json:"message"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "C", req.Sender)
		assert.Equal(t, "help", req.Message)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"result": schema.ChatMessage{RequestID: 3, Sequence: 0, Sender: "C", Message: "help"},
		})
	}))
	defer mock.Close()

	c := New(mock.URL, nil)
	msg, err := c.SendMessage(3, "C", "help")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), msg.Sequence)
	assert.Equal(t, "help", msg.Message)
}

func TestPrincipalDerivation(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(pub), Principal(priv))
}
