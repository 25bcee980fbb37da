// Package aptos talks to an Aptos fullnode REST API: account resources, view
// functions and ledger info.
package aptos

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/traderadar/backend/internal/apperr"
	"github.com/traderadar/backend/internal/config"
	"github.com/traderadar/backend/internal/upstream"
)

type Client struct {
	http *upstream.Client
}

func New(cfg config.AptosConfig) *Client {
	return &Client{http: upstream.New(cfg.NodeURL, cfg.Timeout)}
}

type LedgerInfo struct {
	ChainID         int             `json:"chain_id"`
	Epoch           upstream.Number `json:"epoch"`
	LedgerVersion   upstream.Number `json:"ledger_version"`
	BlockHeight     upstream.Number `json:"block_height"`
	LedgerTimestamp upstream.Number `json:"ledger_timestamp"`
}

func (c *Client) LedgerInfo(ctx context.Context) (LedgerInfo, error) {
	var info LedgerInfo
	if err := c.http.GetJSON(ctx, "/", nil, &info); err != nil {
		return LedgerInfo{}, err
	}
	return info, nil
}

type viewRequest struct {
	Function      string   `json:"function"`
	TypeArguments []string `json:"type_arguments"`
	Arguments     []any    `json:"arguments"`
}

// View calls a #[view] function and returns its raw return values. An abort
// inside the function comes back from the node as 400 and surfaces as an
// Invalid error.
func (c *Client) View(ctx context.Context, function string, typeArgs []string, args []any) ([]json.RawMessage, error) {
	if typeArgs == nil {
		typeArgs = []string{}
	}
	if args == nil {
		args = []any{}
	}
	var out []json.RawMessage
	err := c.http.PostJSON(ctx, "/view", viewRequest{
		Function:      function,
		TypeArguments: typeArgs,
		Arguments:     args,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

type resourceEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Resource decodes the data of one Move resource stored at address. A
// missing account or resource is a NotFound error.
func (c *Client) Resource(ctx context.Context, address, resourceType string, destination any) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return apperr.Errorf(apperr.KindInvalid, "aptos resource", "address is required")
	}
	path := "/accounts/" + url.PathEscape(address) + "/resource/" + url.PathEscape(resourceType)

	var envelope resourceEnvelope
	if err := c.http.GetJSON(ctx, path, nil, &envelope); err != nil {
		return err
	}
	if err := json.Unmarshal(envelope.Data, destination); err != nil {
		return apperr.E(apperr.KindUpstream, "decode "+resourceType, err)
	}
	return nil
}

// viewString reads a single u64/u128 return value, which the node encodes as
// a JSON string.
func viewString(values []json.RawMessage, index int) (string, error) {
	if index >= len(values) {
		return "", fmt.Errorf("view returned %d values, want at least %d", len(values), index+1)
	}
	var text string
	if err := json.Unmarshal(values[index], &text); err != nil {
		return "", fmt.Errorf("decode view value %d: %w", index, err)
	}
	return text, nil
}
