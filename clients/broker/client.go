package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dcbradley/netblast/models/api"
)

// ErrNoServerAvailable is returned by GetWork in client mode when the broker had no free server
var ErrNoServerAvailable = errors.New("no server available")

// BrokerError is a reply that the broker marked as failed
type BrokerError struct {
	StatusCode int
	Message    string
}

func (e *BrokerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("broker returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("broker returned status %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/") + "/", httpClient: httpClient}
}

type RegisterRequest struct {
	Hostname   string
	IP4        string
	IP6        string
	ServerPort int
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*api.RegisterResponse, error) {
	form := url.Values{"hostname": {req.Hostname}}
	setIfNotEmpty(form, "ip4", req.IP4)
	setIfNotEmpty(form, "ip6", req.IP6)
	if req.ServerPort > 0 {
		form.Set("server_port", strconv.Itoa(req.ServerPort))
	}

	var resp api.RegisterResponse
	if _, err := c.do(ctx, "register", form, &resp); err != nil {
		return nil, err
	}
	if resp.WorkerID == "" || resp.Cookie == "" {
		return nil, fmt.Errorf("broker registration reply is missing worker id or cookie")
	}
	return &resp, nil
}

// GetWork asks for a role. mode may be empty, "client" or "server".
func (c *Client) GetWork(ctx context.Context, workerID, cookie, mode string) (*api.WorkResponse, error) {
	form := credentialsForm(workerID, cookie)
	setIfNotEmpty(form, "mode", mode)

	var resp api.WorkResponse
	hasBody, err := c.do(ctx, "get_work", form, &resp)
	if err != nil {
		return nil, err
	}
	if !hasBody {
		return nil, ErrNoServerAvailable
	}
	if !resp.Success {
		return nil, &BrokerError{StatusCode: http.StatusOK, Message: resp.Error}
	}
	return &resp, nil
}

func (c *Client) KeepAlive(ctx context.Context, workerID, cookie string) error {
	return c.doStatus(ctx, "keep_alive", credentialsForm(workerID, cookie))
}

// ReportFlow submits a finished run; start is sent as fractional unix seconds
func (c *Client) ReportFlow(
	ctx context.Context,
	workerID, cookie string,
	start time.Time,
	duration time.Duration,
	sent int64,
) (string, error) {
	form := credentialsForm(workerID, cookie)
	form.Set("start", strconv.FormatFloat(float64(start.UnixNano())/float64(time.Second), 'f', 6, 64))
	form.Set("duration", strconv.FormatFloat(duration.Seconds(), 'f', 6, 64))
	form.Set("bytes", strconv.FormatInt(sent, 10))

	var resp api.FlowResponse
	if _, err := c.do(ctx, "report_flow", form, &resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", &BrokerError{StatusCode: http.StatusOK, Message: resp.Error}
	}
	return resp.FlowID, nil
}

func (c *Client) Close(ctx context.Context, workerID, cookie string) error {
	return c.doStatus(ctx, "close", credentialsForm(workerID, cookie))
}

func (c *Client) doStatus(ctx context.Context, op string, form url.Values) error {
	var resp api.StatusResponse
	if _, err := c.do(ctx, op, form, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return &BrokerError{StatusCode: http.StatusOK, Message: resp.Error}
	}
	return nil
}

// do posts the form and decodes a JSON reply into out. hasBody is false for an empty 200.
func (c *Client) do(ctx context.Context, op string, form url.Values, out any) (hasBody bool, err error) {
	form.Set("r", op)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("failed to build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to send %s request: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("failed to read %s response: %w", op, err)
	}

	if resp.StatusCode != http.StatusOK {
		var status api.StatusResponse
		_ = json.Unmarshal(body, &status)
		return false, &BrokerError{StatusCode: resp.StatusCode, Message: status.Error}
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return true, fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return true, nil
}

func credentialsForm(workerID, cookie string) url.Values {
	return url.Values{"worker_id": {workerID}, "cookie": {cookie}}
}

func setIfNotEmpty(form url.Values, key, value string) {
	if value != "" {
		form.Set(key, value)
	}
}
