package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lukasbauer/samanta/internal/llm"
)

// uuidSalt matches the Memobase SDKs so user IDs line up with other clients.
const uuidSalt = "memobase_client"

// UserID maps an opaque session key onto the Memobase user UUID.
func UserID(sessionKey string) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(sessionKey+uuidSalt)).String()
}

// MemobaseClient implements the Store interface using the Memobase REST API.
type MemobaseClient struct {
	baseURL    string
	apiKey     string
	maxTokens  int
	httpClient *http.Client

	known sync.Map // user UUIDs that are known to exist
}

// MemobaseConfig holds configuration for the Memobase client.
type MemobaseConfig struct {
	ProjectURL       string // e.g., "http://localhost:8019"
	APIKey           string
	MaxContextTokens int // budget for the injected user context, default 500
	HTTPClient       *http.Client
}

// NewMemobaseClient creates a new Memobase client.
func NewMemobaseClient(cfg MemobaseConfig) *MemobaseClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	maxTokens := cfg.MaxContextTokens
	if maxTokens <= 0 {
		maxTokens = 500
	}
	return &MemobaseClient{
		baseURL:    cfg.ProjectURL,
		apiKey:     cfg.APIKey,
		maxTokens:  maxTokens,
		httpClient: httpClient,
	}
}

// memobaseResponse is the envelope of every Memobase API response.
type memobaseResponse struct {
	Data   json.RawMessage `json:"data"`
	Errno  int             `json:"errno"`
	Errmsg string          `json:"errmsg"`
}

type blobMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (c *MemobaseClient) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Memobase API error: %s - %s", resp.Status, string(respBody))
	}

	var env memobaseResponse
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if env.Errno != 0 {
		return nil, fmt.Errorf("Memobase API error %d: %s", env.Errno, env.Errmsg)
	}
	return env.Data, nil
}

// ensureUser creates the Memobase user on first use.
func (c *MemobaseClient) ensureUser(ctx context.Context, uid string) error {
	if _, ok := c.known.Load(uid); ok {
		return nil
	}
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/users/"+url.PathEscape(uid), nil); err != nil {
		if _, err := c.do(ctx, http.MethodPost, "/api/v1/users", map[string]any{"id": uid, "data": map[string]any{}}); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
	}
	c.known.Store(uid, struct{}{})
	return nil
}

// Context returns the memory prompt for the user behind sessionKey.
func (c *MemobaseClient) Context(ctx context.Context, sessionKey string) (string, error) {
	uid := UserID(sessionKey)
	if err := c.ensureUser(ctx, uid); err != nil {
		return "", err
	}
	path := fmt.Sprintf("/api/v1/users/context/%s?max_token_size=%d", url.PathEscape(uid), c.maxTokens)
	data, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	var out struct {
		Context string `json:"context"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("failed to decode context: %w", err)
	}
	return out.Context, nil
}

// Insert appends an exchange to the user's chat buffer.
func (c *MemobaseClient) Insert(ctx context.Context, sessionKey string, messages []llm.Message) error {
	uid := UserID(sessionKey)
	if err := c.ensureUser(ctx, uid); err != nil {
		return err
	}
	blob := make([]blobMessage, len(messages))
	for i, m := range messages {
		blob[i] = blobMessage{Role: m.Role, Content: m.Content}
	}
	_, err := c.do(ctx, http.MethodPost, "/api/v1/blobs/insert/"+url.PathEscape(uid), map[string]any{
		"blob_type": "chat",
		"blob_data": map[string]any{"messages": blob},
	})
	return err
}

// Flush asks Memobase to process the user's buffered chat into memory.
func (c *MemobaseClient) Flush(ctx context.Context, sessionKey string) error {
	uid := UserID(sessionKey)
	_, err := c.do(ctx, http.MethodPost, "/api/v1/users/buffer/"+url.PathEscape(uid)+"/chat", nil)
	return err
}
