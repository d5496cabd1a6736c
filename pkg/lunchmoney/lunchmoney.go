package lunchmoney

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Client talks to the Lunch Money transactions API. Creates are best-effort
// per chunk: a failed chunk is logged and the remaining chunks still go out.
// Updates are the opposite - losing a targeted update silently is not
// acceptable, so any failure comes back as an *UpdateError.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
	logger  *log.Logger
}

// UpdateError wraps a failed update call with the sink-assigned id it was
// targeting.
type UpdateError struct {
	ID  int64
	Err error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("failed to update transaction %d in lunch money: %v", e.ID, e.Err)
}

func (e *UpdateError) Unwrap() error { return e.Err }

func NewClient(baseURL, token string, logger *log.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		httpc:   &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

type createRequest struct {
	Transactions []Payload `json:"transactions"`
	ApplyRules   bool      `json:"apply_rules"`
}

type createResponse struct {
	IDs   []int64         `json:"ids"`
	Error json.RawMessage `json:"error"`
}

type updateRequest struct {
	Transaction Payload `json:"transaction"`
}

// CreateTransactions uploads payloads in chunks of chunkSize and returns the
// sink-assigned id for every transaction that made it, keyed by external id.
// A chunk that fails, either in transport or with an error field in the
// response, is logged and skipped; the rest of the batch continues.
func (c *Client) CreateTransactions(payloads []Payload, chunkSize int) map[string]int64 {
	if chunkSize < 1 {
		chunkSize = 1
	}

	ids := make(map[string]int64)
	for start := 0; start < len(payloads); start += chunkSize {
		end := start + chunkSize
		if end > len(payloads) {
			end = len(payloads)
		}
		chunk := payloads[start:end]

		resp, err := c.create(chunk)
		if err != nil {
			c.logger.Error("create request failed", "error", err, "chunk_start", start)
			continue
		}
		if len(resp.Error) > 0 {
			c.logger.Error("lunch money rejected chunk", "error", string(resp.Error), "chunk_start", start)
			continue
		}
		if len(resp.IDs) != len(chunk) {
			c.logger.Warn("unexpected response structure", "ids", len(resp.IDs), "sent", len(chunk))
		}
		for i, p := range chunk {
			if i < len(resp.IDs) {
				ids[p.ExternalID] = resp.IDs[i]
			}
		}
	}
	return ids
}

func (c *Client) create(chunk []Payload) (*createResponse, error) {
	body, err := json.Marshal(createRequest{Transactions: chunk, ApplyRules: true})
	if err != nil {
		return nil, fmt.Errorf("encoding transactions: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/transactions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out createResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &out, nil
}

// UpdateTransaction updates the transaction Lunch Money knows as id with the
// given payload.
func (c *Client) UpdateTransaction(id int64, p Payload) error {
	body, err := json.Marshal(updateRequest{Transaction: p})
	if err != nil {
		return &UpdateError{ID: id, Err: fmt.Errorf("encoding transaction: %w", err)}
	}

	req, err := http.NewRequest(http.MethodPut, fmt.Sprintf("%s/transactions/%d", c.baseURL, id), bytes.NewReader(body))
	if err != nil {
		return &UpdateError{ID: id, Err: err}
	}
	c.setHeaders(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &UpdateError{ID: id, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return &UpdateError{ID: id, Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))}
	}

	data, _ := io.ReadAll(resp.Body)
	c.logger.Info("updated transaction", "lunch_money_id", id, "response", strings.TrimSpace(string(data)))
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
}
