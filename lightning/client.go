/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package lightning

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/krutt/endur/internal/request"
	"github.com/pkg/errors"
)

// Client is the HTTP implementation of Node. It talks to the admin API of an
// ldk-node daemon. All transport failures are converted into errors; the
// client never panics on a bad response.
type Client struct {
	baseURL   string
	authToken string
}

// NewClient creates a Node client for the daemon at baseURL. authToken may be
// empty when the daemon runs without authentication.
func NewClient(baseURL, authToken string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		authToken: authToken,
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, payload interface{}) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		buf, err := request.ToJsonReq(payload)
		if err != nil {
			return nil, errors.Wrap(err, "encoding node request")
		}
		body = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}

	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	return req, nil
}

// NodeID returns the public identity of the local node.
func (c *Client) NodeID(ctx context.Context) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/node/id", nil)
	if err != nil {
		return "", err
	}

	var response struct {
		NodeID string `json:"node_id"`
	}
	if _, err := request.Call(req, &response); err != nil {
		return "", errors.Wrap(err, "fetching node id")
	}
	return response.NodeID, nil
}

// ListBalances reports the node's total on-chain and lightning holdings.
func (c *Client) ListBalances(ctx context.Context) (BalanceSnapshot, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/balances", nil)
	if err != nil {
		return BalanceSnapshot{}, err
	}

	var snapshot BalanceSnapshot
	if _, err := request.Call(req, &snapshot); err != nil {
		return BalanceSnapshot{}, errors.Wrap(err, "listing balances")
	}
	return snapshot, nil
}

// ListChannels reports all channels known to the node runtime.
func (c *Client) ListChannels(ctx context.Context) ([]ChannelDetails, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/channels", nil)
	if err != nil {
		return nil, err
	}

	var response struct {
		Channels []ChannelDetails `json:"channels"`
	}
	if _, err := request.Call(req, &response); err != nil {
		return nil, errors.Wrap(err, "listing channels")
	}
	return response.Channels, nil
}

// SendSpontaneousPayment sends a keysend payment to the destination node.
func (c *Client) SendSpontaneousPayment(ctx context.Context, amountMsat uint64, destinationNodeID string) (PaymentID, error) {
	payload := map[string]interface{}{
		"amount_msat": amountMsat,
		"node_id":     destinationNodeID,
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/payments/spontaneous", payload)
	if err != nil {
		return "", err
	}

	var response struct {
		PaymentID PaymentID `json:"payment_id"`
	}
	if _, err := request.Call(req, &response); err != nil {
		return "", errors.Wrap(err, "sending spontaneous payment")
	}
	return response.PaymentID, nil
}

// ReceivePayment creates a bolt11 invoice for the given amount.
func (c *Client) ReceivePayment(ctx context.Context, amountMsat uint64, description string, expirySecs uint32) (Invoice, error) {
	payload := map[string]interface{}{
		"amount_msat": amountMsat,
		"description": description,
		"expiry_secs": expirySecs,
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/invoices", payload)
	if err != nil {
		return Invoice{}, err
	}

	var invoice Invoice
	if _, err := request.Call(req, &invoice); err != nil {
		return Invoice{}, errors.Wrap(err, "creating invoice")
	}
	return invoice, nil
}

// NewAddress derives a fresh on-chain receive address.
func (c *Client) NewAddress(ctx context.Context) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/addresses/new", nil)
	if err != nil {
		return "", err
	}

	var response struct {
		Address string `json:"address"`
	}
	if _, err := request.Call(req, &response); err != nil {
		return "", errors.Wrap(err, "deriving address")
	}
	return response.Address, nil
}
