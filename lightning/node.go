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

import "context"

// Node is the surface of the external node runtime the peg engine depends on.
// Implementations are expected to be blocking; timeouts belong to the
// underlying transport, not to callers.
type Node interface {
	// NodeID returns the public identity of the local node.
	NodeID(ctx context.Context) (string, error)

	// ListBalances reports the node's total on-chain and lightning holdings.
	ListBalances(ctx context.Context) (BalanceSnapshot, error)

	// ListChannels reports all channels known to the node runtime.
	ListChannels(ctx context.Context) ([]ChannelDetails, error)

	// SendSpontaneousPayment sends a keysend payment of amountMsat to the
	// destination node without a pre-negotiated invoice.
	SendSpontaneousPayment(ctx context.Context, amountMsat uint64, destinationNodeID string) (PaymentID, error)

	// ReceivePayment creates a bolt11 invoice for the given amount.
	ReceivePayment(ctx context.Context, amountMsat uint64, description string, expirySecs uint32) (Invoice, error)

	// NewAddress derives a fresh on-chain receive address.
	NewAddress(ctx context.Context) (string, error)
}
