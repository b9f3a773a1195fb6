package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// CapacityResponse — состояние слотов из API.
type CapacityResponse struct {
	MaxCapacity int `json:"max_capacity"`
	InFlight    int `json:"in_flight"`
	Available   int `json:"available"`
}

// PassResponse — ответ на запрос прохода.
type PassResponse struct {
	Status string `json:"status"`
}

// MirrorResponse — зеркало из API.
type MirrorResponse struct {
	RepositoryID    int64  `json:"repository_id"`
	FullPath        string `json:"full_path"`
	MirrorEnabled   bool   `json:"mirror_enabled"`
	Archived        bool   `json:"archived"`
	PendingDelete   bool   `json:"pending_delete"`
	Status          string `json:"status"`
	NextExecutionAt string `json:"next_execution_at,omitempty"`
	ScheduledAt     string `json:"scheduled_at,omitempty"`
	RetryCount      int    `json:"retry_count"`
	HardFailed      bool   `json:"hard_failed"`
	LastError       string `json:"last_error,omitempty"`
	Eligible        bool   `json:"eligible"`
	UpdatedAt       string `json:"updated_at"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для API планировщика.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetCapacity возвращает состояние слотов.
func (c *Client) GetCapacity() (*CapacityResponse, error) {
	var capacity CapacityResponse
	err := c.get("/api/v1/capacity", &capacity)
	return &capacity, err
}

// TriggerPass запрашивает внеочередной проход.
func (c *Client) TriggerPass() (*PassResponse, error) {
	var pass PassResponse
	err := c.post("/api/v1/passes", nil, &pass)
	return &pass, err
}

// GetMirror возвращает зеркало по ID репозитория.
func (c *Client) GetMirror(id int64) (*MirrorResponse, error) {
	var mirror MirrorResponse
	err := c.get(mirrorPath(id), &mirror)
	return &mirror, err
}

// ForceSync принудительно ставит зеркало в очередь планирования.
func (c *Client) ForceSync(id int64) (*MirrorResponse, error) {
	var mirror MirrorResponse
	err := c.post(mirrorPath(id)+"/force-sync", nil, &mirror)
	return &mirror, err
}

func mirrorPath(id int64) string {
	return "/api/v1/mirrors/" + strconv.FormatInt(id, 10)
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
