package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// StepResponse — шаг из API.
type StepResponse struct {
	IRI      string `json:"iri"`
	Code     string `json:"code"`
	Pipeline string `json:"pipeline"`
	Order    int64  `json:"order"`
	Status   string `json:"status"`
	CanStart *bool  `json:"can_start,omitempty"`
}

// PipelineResponse — созданный пайплайн из API.
type PipelineResponse struct {
	IRI   string         `json:"iri"`
	Steps []StepResponse `json:"steps"`
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

// APIError — ошибка, которую вернул сервер.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

// Error реализует интерфейс error.
func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsNotFound проверяет, что сервер ответил 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Команды смены статуса шага: имя команды → путь API.
var commands = map[string]string{
	"boot":    "/boot",
	"execute": "/execute",
	"ready":   "/ready",
	"done":    "/done",
	"fail":    "/fail",
}

// --- Client ---

// Client — HTTP-клиент для API init daemon.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Steps ---

// CanStart спрашивает, может ли шаг стартовать.
func (c *Client) CanStart(code string) (bool, error) {
	resp, err := c.do(http.MethodGet, "/canStart?"+stepQuery(code), "", nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return false, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("failed to read response: %w", err)
	}
	ok, err := strconv.ParseBool(strings.TrimSpace(string(body)))
	if err != nil {
		return false, fmt.Errorf("unexpected canStart response %q", body)
	}
	return ok, nil
}

// WaitCanStart опрашивает CanStart с интервалом interval, пока шаг
// не сможет стартовать или не истечёт timeout (0 — без ограничения).
func (c *Client) WaitCanStart(code string, interval, timeout time.Duration) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		ok, err := c.CanStart(code)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if !deadline.IsZero() && time.Now().Add(interval).After(deadline) {
			return fmt.Errorf("step %s cannot start after %s", code, timeout)
		}
		time.Sleep(interval)
	}
}

// Command выполняет команду смены статуса: boot, execute, ready, done, fail.
func (c *Client) Command(command, code string) error {
	path, ok := commands[command]
	if !ok {
		return fmt.Errorf("unknown command %q", command)
	}

	resp, err := c.do(http.MethodPut, path+"?"+stepQuery(code), "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

// GetStep возвращает шаг по коду.
func (c *Client) GetStep(code string) (*StepResponse, error) {
	var step StepResponse
	err := c.doData(http.MethodGet, "/steps/"+url.PathEscape(code), "", nil, &step)
	return &step, err
}

// --- Pipelines ---

// LoadPipeline отправляет определение пайплайна (YAML или JSON).
func (c *Client) LoadPipeline(definition []byte) (*PipelineResponse, error) {
	var p PipelineResponse
	err := c.doData(http.MethodPost, "/pipelines", "application/yaml", definition, &p)
	return &p, err
}

// --- HTTP helpers ---

func stepQuery(code string) string {
	return url.Values{"step": {code}}.Encode()
}

func (c *Client) doData(method, path, contentType string, body []byte, result any) error {
	resp, err := c.do(method, path, contentType, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
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

func (c *Client) do(method, path, contentType string, body []byte) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err == nil {
		apiErr.Code = er.Error.Code
		apiErr.Message = er.Error.Message
	}
	return apiErr
}
