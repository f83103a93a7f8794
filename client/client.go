// Package client is the typed HTTP client of the dispatch API. It is the
// transport underneath the syncer package and any Go tooling talking to
// the server.
package client

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/civitas-labs/dispatch-api/schema"
)

// APIError is a decoded error envelope from the server.
type APIError struct {
	StatusCode int
	Code       int64  `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (http %d): %s", e.Code, e.StatusCode, e.Message)
}

// IsNotFound reports whether the call failed because the entity does not
// exist.
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == http.StatusNotFound
}

// IsPreconditionFailed reports whether the call was rejected by a
// lifecycle status guard, e.g. accepting a request that is no longer
// pending. Such calls are not retried; the caller re-polls instead.
func IsPreconditionFailed(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == http.StatusConflict
}

// IsUnauthorized reports whether the caller's role forbids the action.
func IsUnauthorized(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == http.StatusForbidden
}

type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

func New(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 10 * time.Second,
		}
	}

	return &Client{
		endpoint:   endpoint,
		httpClient: httpClient,
	}
}

// SetToken installs a bearer token obtained elsewhere.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Principal derives the principal string of an ed25519 private key.
func Principal(priv ed25519.PrivateKey) string {
	return hex.EncodeToString(priv.Public().(ed25519.PublicKey))
}

// Authenticate signs the current timestamp with the private key and
// trades it at the server for a JWT, which is kept for subsequent calls.
func (c *Client) Authenticate(priv ed25519.PrivateKey) error {
	timestamp := strconv.FormatInt(time.Now().UnixNano()/int64(time.Millisecond), 10)
	signature := ed25519.Sign(priv, []byte(timestamp))

	var resp struct {
		Token string `json:"jwt_token"`
	}

	if err := c.do(http.MethodPost, "/api/auth", map[string]string{
		"timestamp": timestamp,
		"signature": hex.EncodeToString(signature),
		"principal": Principal(priv),
	}, &resp); err != nil {
		return err
	}

	c.token = resp.Token
	return nil
}

func (c *Client) Register(name, mobile string, userType schema.UserRole) (*schema.UserProfile, error) {
	var resp struct {
		Result *schema.UserProfile `json:"result"`
	}
	err := c.do(http.MethodPost, "/api/accounts", map[string]interface{}{
		"name":      name,
		"mobile":    mobile,
		"user_type": userType,
	}, &resp)
	return resp.Result, err
}

func (c *Client) Profile() (*schema.UserProfile, error) {
	var resp struct {
		Result *schema.UserProfile `json:"result"`
	}
	err := c.do(http.MethodGet, "/api/accounts/me", nil, &resp)
	return resp.Result, err
}

func (c *Client) SaveProfile(name, mobile string) error {
	return c.do(http.MethodPatch, "/api/accounts/me", map[string]string{
		"name":   name,
		"mobile": mobile,
	}, nil)
}

// Role returns the caller's role and whether it is the admin.
func (c *Client) Role() (schema.UserRole, bool, error) {
	var resp struct {
		Role    schema.UserRole `json:"role"`
		IsAdmin bool            `json:"is_admin"`
	}
	err := c.do(http.MethodGet, "/api/accounts/me/role", nil, &resp)
	return resp.Role, resp.IsAdmin, err
}

func (c *Client) SendSOS(loc schema.Location) (*schema.HelpRequest, error) {
	var resp struct {
		Result *schema.HelpRequest `json:"result"`
	}
	err := c.do(http.MethodPost, "/api/requests", map[string]interface{}{
		"location": loc,
	}, &resp)
	return resp.Result, err
}

func (c *Client) AcceptRequest(requestID uint64) error {
	return c.do(http.MethodPatch, fmt.Sprintf("/api/requests/%d/accept", requestID), nil, nil)
}

func (c *Client) CompleteRequest(requestID uint64) error {
	return c.do(http.MethodPatch, fmt.Sprintf("/api/requests/%d/complete", requestID), nil, nil)
}

func (c *Client) GetAllRequests() ([]schema.HelpRequest, error) {
	var resp struct {
		Requests []schema.HelpRequest `json:"requests"`
	}
	err := c.do(http.MethodGet, "/api/requests", nil, &resp)
	return resp.Requests, err
}

func (c *Client) GetRequestsByStatus(status schema.RequestStatus) ([]schema.HelpRequest, error) {
	var resp struct {
		Requests []schema.HelpRequest `json:"requests"`
	}
	err := c.do(http.MethodGet, "/api/requests?status="+string(status), nil, &resp)
	return resp.Requests, err
}

func (c *Client) GetRequest(requestID uint64) (*schema.HelpRequest, error) {
	var resp struct {
		Result *schema.HelpRequest `json:"result"`
	}
	err := c.do(http.MethodGet, fmt.Sprintf("/api/requests/%d", requestID), nil, &resp)
	return resp.Result, err
}

func (c *Client) SendMessage(requestID uint64, sender, message string) (*schema.ChatMessage, error) {
	var resp struct {
		Result *schema.ChatMessage `json:"result"`
	}
	err := c.do(http.MethodPost, fmt.Sprintf("/api/requests/%d/messages", requestID), map[string]string{
		"sender":  sender,
		"message": message,
	}, &resp)
	return resp.Result, err
}

func (c *Client) GetMessages(requestID uint64) ([]schema.ChatMessage, error) {
	var resp struct {
		Messages []schema.ChatMessage `json:"messages"`
	}
	err := c.do(http.MethodGet, fmt.Sprintf("/api/requests/%d/messages", requestID), nil, &resp)
	return resp.Messages, err
}

func (c *Client) ListAccounts() ([]schema.UserProfile, error) {
	var resp struct {
		Accounts []schema.UserProfile `json:"accounts"`
	}
	err := c.do(http.MethodGet, "/api/admin/accounts", nil, &resp)
	return resp.Accounts, err
}

func (c *Client) GetAccount(principal string) (*schema.UserProfile, error) {
	var resp struct {
		Result *schema.UserProfile `json:"result"`
	}
	err := c.do(http.MethodGet, "/api/admin/accounts/"+principal, nil, &resp)
	return resp.Result, err
}

func (c *Client) AssignRole(principal string, role schema.UserRole) error {
	return c.do(http.MethodPut, "/api/admin/accounts/"+principal+"/role", map[string]interface{}{
		"role": role,
	}, nil)
}

func (c *Client) do(method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, c.endpoint+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil {
			apiErr.Message = "cannot decode error response"
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
