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
package model

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/krutt/endur/lightning"
)

// StableChannel is the persistent peg record for one managed channel. It is
// created once at startup and mutated in place by every reconciliation and
// stability check. The record itself is not synchronized; callers go through
// one evaluating service, which serializes evaluations against it.
type StableChannel struct {
	ChannelID    lightning.ChannelID `json:"channel_id"`
	IsReceiver   bool                `json:"is_receiver"`
	Counterparty string              `json:"counterparty"`
	ExpectedUSD  USD                 `json:"expected_usd"`

	// LatestPrice is the most recently observed or used BTC/USD price.
	// Zero means unknown.
	LatestPrice decimal.Decimal `json:"latest_price"`

	OnchainBTC Bitcoin `json:"onchain_btc"`
	OnchainUSD USD     `json:"onchain_usd"`

	ReceiverBTC Bitcoin `json:"receiver_btc"`
	ReceiverUSD USD     `json:"receiver_usd"`
	ProviderBTC Bitcoin `json:"provider_btc"`
	ProviderUSD USD     `json:"provider_usd"`

	// RiskLevel above 100 suppresses corrective payments even when the peg
	// deviation would otherwise warrant one.
	RiskLevel int `json:"risk_level"`

	// PaymentMade records that a corrective payment was attempted, not that
	// it confirmed.
	PaymentMade bool `json:"payment_made"`
}

// NewStableChannel creates the peg record for one managed channel.
// channelID may be the zero sentinel, in which case the first channel
// reported by the node runtime is adopted on first reconciliation.
//
// A non-positive expectedUSD is a degenerate configuration: the deviation
// arithmetic divides by it, so it is rejected here rather than tolerated
// during evaluation.
func NewStableChannel(channelID lightning.ChannelID, counterparty string, expectedUSD USD, isReceiver bool, riskLevel int) (*StableChannel, error) {
	if !expectedUSD.IsPositive() {
		return nil, errors.New("expected USD peg target must be positive")
	}
	if counterparty == "" {
		return nil, errors.New("counterparty node id is required")
	}

	return &StableChannel{
		ChannelID:    channelID,
		IsReceiver:   isReceiver,
		Counterparty: counterparty,
		ExpectedUSD:  expectedUSD,
		RiskLevel:    riskLevel,
	}, nil
}

// DollarsFromPar returns the receiver's signed deviation from the peg target.
func (sc *StableChannel) DollarsFromPar() USD {
	return sc.ReceiverUSD.Sub(sc.ExpectedUSD)
}

// PercentFromPar returns the absolute deviation from the peg target as a
// percentage of the target.
func (sc *StableChannel) PercentFromPar() decimal.Decimal {
	return sc.DollarsFromPar().PercentOf(sc.ExpectedUSD)
}
