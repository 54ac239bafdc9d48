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
	"encoding/hex"
	"fmt"
)

// ChannelID identifies a channel on the node runtime. The all-zero value is
// the "unset" sentinel used before a channel has been adopted.
type ChannelID [32]byte

// ZeroChannelID is the unset sentinel.
var ZeroChannelID = ChannelID{}

// IsZero reports whether the channel ID is the unset sentinel.
func (c ChannelID) IsZero() bool {
	return c == ZeroChannelID
}

func (c ChannelID) String() string {
	return hex.EncodeToString(c[:])
}

// ChannelIDFromHex parses a 64-character hex string into a ChannelID.
// An empty string parses to the unset sentinel.
func ChannelIDFromHex(s string) (ChannelID, error) {
	var id ChannelID
	if s == "" {
		return id, nil
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid channel id %q: %w", s, err)
	}
	if len(raw) != 32 {
		return id, fmt.Errorf("invalid channel id length: got %d bytes, want 32", len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// MarshalText renders the channel ID as hex for JSON payloads.
func (c ChannelID) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses a hex channel ID.
func (c *ChannelID) UnmarshalText(text []byte) error {
	id, err := ChannelIDFromHex(string(text))
	if err != nil {
		return err
	}
	*c = id
	return nil
}

// PaymentID identifies a payment attempt on the node runtime.
type PaymentID string

// BalanceSnapshot is the node's view of total holdings at one point in time.
type BalanceSnapshot struct {
	TotalOnchainSats   uint64 `json:"total_onchain_balance_sats"`
	TotalLightningSats uint64 `json:"total_lightning_balance_sats"`
}

// ChannelDetails describes one channel as reported by the node runtime.
type ChannelDetails struct {
	ChannelID                        ChannelID `json:"channel_id"`
	CounterpartyNodeID               string    `json:"counterparty_node_id"`
	ChannelValueSats                 uint64    `json:"channel_value_sats"`
	OutboundCapacityMsat             uint64    `json:"outbound_capacity_msat"`
	UnspendablePunishmentReserveSats *uint64   `json:"unspendable_punishment_reserve,omitempty"`
	IsChannelReady                   bool      `json:"is_channel_ready"`
}

// OurBalanceSats is this side's channel balance: the spendable outbound
// capacity plus the unspendable punishment reserve the node holds back.
func (c ChannelDetails) OurBalanceSats() uint64 {
	reserve := uint64(0)
	if c.UnspendablePunishmentReserveSats != nil {
		reserve = *c.UnspendablePunishmentReserveSats
	}
	return c.OutboundCapacityMsat/1000 + reserve
}

// Invoice is a bolt11 payment request created by the node.
type Invoice struct {
	Bolt11      string `json:"bolt11"`
	Description string `json:"description"`
	AmountMsat  uint64 `json:"amount_msat"`
	ExpirySecs  uint32 `json:"expiry_secs"`
}
