// Package ticketing creates helpdesk tickets in Odoo for escalated
// bookings. Only the JSON-RPC execute_kw surface needed for ticket
// creation is implemented.
package ticketing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"booking_portal_backend/platform/config"
)

// Ticket is the helpdesk ticket to create.
type Ticket struct {
	Subject        string
	Description    string
	RequesterName  string
	RequesterEmail string
}

// Client creates helpdesk tickets.
type Client interface {
	// CreateTicket creates a ticket and returns its Odoo id.
	CreateTicket(ctx context.Context, ticket Ticket) (int, error)
}

// OdooClient talks to the Odoo JSON-RPC endpoint.
type OdooClient struct {
	url      string
	database string
	userID   int
	apiKey   string
	client   *http.Client
}

// NewOdooClient creates a client for the configured Odoo instance.
func NewOdooClient(cfg config.TicketingConfig) *OdooClient {
	return &OdooClient{
		url:      cfg.GetOdooURL(),
		database: cfg.GetOdooDatabase(),
		userID:   cfg.GetOdooUserID(),
		apiKey:   cfg.GetOdooAPIKey(),
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

var _ Client = (*OdooClient)(nil)

type jsonRPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  jsonRPCParams `json:"params"`
	ID      int64         `json:"id"`
}

type jsonRPCParams struct {
	Service string        `json:"service"`
	Method  string        `json:"method"`
	Args    []interface{} `json:"args"`
}

type jsonRPCResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Message string `json:"message"`
		Data    struct {
			Message string `json:"message"`
		} `json:"data"`
	} `json:"error"`
}

// CreateTicket creates a helpdesk.ticket record via execute_kw.
func (o *OdooClient) CreateTicket(ctx context.Context, ticket Ticket) (int, error) {
	record := map[string]interface{}{
		"name":          ticket.Subject,
		"description":   ticket.Description,
		"partner_name":  ticket.RequesterName,
		"partner_email": ticket.RequesterEmail,
	}

	result, err := o.executeKw(ctx, "helpdesk.ticket", "create", []interface{}{record})
	if err != nil {
		return 0, fmt.Errorf("create helpdesk ticket: %w", err)
	}

	var ticketID int
	if err := json.Unmarshal(result, &ticketID); err != nil {
		return 0, fmt.Errorf("decode ticket id: %w", err)
	}
	return ticketID, nil
}

func (o *OdooClient) executeKw(ctx context.Context, model, method string, args []interface{}) (json.RawMessage, error) {
	payload := jsonRPCRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params: jsonRPCParams{
			Service: "object",
			Method:  "execute_kw",
			Args: []interface{}{
				o.database, o.userID, o.apiKey,
				model, method, args,
			},
		},
		ID: time.Now().UnixNano(),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url+"/jsonrpc", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("odoo rpc status %d: %s", resp.StatusCode, string(data))
	}

	var rpcResp jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("decode odoo response: %w", err)
	}
	if rpcResp.Error != nil {
		message := rpcResp.Error.Data.Message
		if message == "" {
			message = rpcResp.Error.Message
		}
		return nil, fmt.Errorf("odoo rpc error: %s", message)
	}

	return rpcResp.Result, nil
}

// NoopClient is used when ticketing is not configured. CreateTicket
// fails so callers surface the missing configuration instead of
// silently swallowing escalations.
type NoopClient struct{}

func (NoopClient) CreateTicket(ctx context.Context, ticket Ticket) (int, error) {
	return 0, fmt.Errorf("ticketing is not configured")
}

// NewClient picks the real client when ticketing is configured.
func NewClient(cfg config.TicketingConfig) Client {
	if cfg.IsTicketingEnabled() {
		return NewOdooClient(cfg)
	}
	return NoopClient{}
}
