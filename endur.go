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
package endur

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/krutt/endur/lightning"
)

// PriceSource supplies the BTC/USD reference price. CachedPrice returns zero
// when no quote is available; zero is never a price.
type PriceSource interface {
	CachedPrice(ctx context.Context) decimal.Decimal
	LatestPrice(ctx context.Context) (decimal.Decimal, error)
}

// Endur is the peg-maintenance service. It owns no ambient state: the node
// handle and price source are injected by the caller. Peg evaluations are
// serialized internally, so the monitor loop and API handlers can share one
// StableChannel as long as they go through the same Endur.
type Endur struct {
	node   lightning.Node
	prices PriceSource

	// evalMu guards the read-modify-write of a StableChannel across one
	// full evaluation.
	evalMu sync.Mutex
}

// NewEndur creates the peg-maintenance service around a node runtime handle
// and a price source.
func NewEndur(node lightning.Node, prices PriceSource) *Endur {
	return &Endur{node: node, prices: prices}
}

// Node returns the underlying node runtime handle.
func (e *Endur) Node() lightning.Node {
	return e.node
}

// Status is a point-in-time view of the node behind the service.
type Status struct {
	Running  bool                      `json:"running"`
	NodeID   string                    `json:"node_id,omitempty"`
	Balances lightning.BalanceSnapshot `json:"balances"`
}

// Status reports whether the node runtime is reachable and its current
// holdings. An unreachable node yields Running=false, not an error.
func (e *Endur) Status(ctx context.Context) Status {
	nodeID, err := e.node.NodeID(ctx)
	if err != nil {
		return Status{Running: false}
	}

	balances, err := e.node.ListBalances(ctx)
	if err != nil {
		return Status{Running: true, NodeID: nodeID}
	}

	return Status{Running: true, NodeID: nodeID, Balances: balances}
}

// CreateInvoice asks the node for a bolt11 invoice of amountSats.
func (e *Endur) CreateInvoice(ctx context.Context, amountSats uint64, description string) (lightning.Invoice, error) {
	return e.node.ReceivePayment(ctx, amountSats*1000, description, 3600)
}

// NewAddress derives a fresh on-chain receive address from the node.
func (e *Endur) NewAddress(ctx context.Context) (string, error) {
	return e.node.NewAddress(ctx)
}

// Balances returns the node's raw balance snapshot.
func (e *Endur) Balances(ctx context.Context) (lightning.BalanceSnapshot, error) {
	return e.node.ListBalances(ctx)
}
