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

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/krutt/endur/audit"
	"github.com/krutt/endur/lightning"
	"github.com/krutt/endur/model"
)

// StabilityDeadbandPercent is the tolerance window around the peg, in
// percent of the target. Deviations at or below it trigger no action; the
// deadband keeps price-feed noise from churning corrective payments.
var StabilityDeadbandPercent = decimal.NewFromFloat(0.1)

// maxRiskLevel is the risk threshold above which corrective payments are
// suppressed regardless of direction.
const maxRiskLevel = 100

// CurrentPrice returns the BTC/USD price to use for an evaluation,
// preferring the cached quote and falling back to a fresh fetch. Zero means
// no valid price could be obtained.
func (e *Endur) CurrentPrice(ctx context.Context) decimal.Decimal {
	cached := e.prices.CachedPrice(ctx)
	if cached.IsPositive() {
		return cached
	}

	price, err := e.prices.LatestPrice(ctx)
	if err != nil {
		logrus.WithError(err).Warn("price fetch failed")
		return decimal.Zero
	}
	return price
}

// UpdateBalances refreshes the peg record's on-chain and channel balances
// from the node runtime. It reports whether a matching channel was found;
// on a miss the previous receiver/provider values are kept (stale data is
// tolerated, not zeroed). It never returns a hard error: collaborator
// failures are logged, audited, and reported as a false result.
func (e *Endur) UpdateBalances(ctx context.Context, sc *model.StableChannel) bool {
	e.evalMu.Lock()
	defer e.evalMu.Unlock()
	return e.updateBalances(ctx, sc)
}

func (e *Endur) updateBalances(ctx context.Context, sc *model.StableChannel) bool {
	if sc.LatestPrice.IsZero() {
		sc.LatestPrice = e.prices.CachedPrice(ctx)

		if sc.LatestPrice.IsZero() {
			sc.LatestPrice = e.CurrentPrice(ctx)
		}
	}

	balances, err := e.node.ListBalances(ctx)
	if err != nil {
		logrus.WithError(err).Warn("listing node balances failed")
		auditReconcileFailure(sc, err)
		return false
	}
	sc.OnchainBTC = model.BitcoinFromSats(int64(balances.TotalOnchainSats))
	sc.OnchainUSD = convertToUSD(sc.OnchainBTC, sc.LatestPrice)

	channels, err := e.node.ListChannels(ctx)
	if err != nil {
		logrus.WithError(err).Warn("listing node channels failed")
		auditReconcileFailure(sc, err)
		return false
	}

	channel, found := selectChannel(channels, sc.ChannelID)
	if !found {
		logrus.Warnf("no matching channel found for ID: %s", sc.ChannelID)
		audit.Record(audit.EventBalanceUpdate, map[string]interface{}{
			"channel_id":    sc.ChannelID.String(),
			"channel_found": false,
			"receiver_btc":  sc.ReceiverBTC.String(),
			"provider_btc":  sc.ProviderBTC.String(),
			"receiver_usd":  sc.ReceiverUSD.String(),
			"provider_usd":  sc.ProviderUSD.String(),
			"btc_price":     sc.LatestPrice.String(),
		})
		return false
	}

	if sc.ChannelID.IsZero() {
		// Adopt the first reported channel permanently. List order can
		// change between invocations; the adopted ID pins the selection.
		sc.ChannelID = channel.ChannelID
		logrus.Infof("set active channel ID to: %s", sc.ChannelID)
	}

	ourBalanceSats := channel.OurBalanceSats()
	theirBalanceSats := int64(0)
	if channel.ChannelValueSats > ourBalanceSats {
		theirBalanceSats = int64(channel.ChannelValueSats - ourBalanceSats)
	}

	if sc.IsReceiver {
		sc.ReceiverBTC = model.BitcoinFromSats(int64(ourBalanceSats))
		sc.ProviderBTC = model.BitcoinFromSats(theirBalanceSats)
	} else {
		sc.ProviderBTC = model.BitcoinFromSats(int64(ourBalanceSats))
		sc.ReceiverBTC = model.BitcoinFromSats(theirBalanceSats)
	}

	sc.ReceiverUSD = convertToUSD(sc.ReceiverBTC, sc.LatestPrice)
	sc.ProviderUSD = convertToUSD(sc.ProviderBTC, sc.LatestPrice)

	audit.Record(audit.EventBalanceUpdate, map[string]interface{}{
		"channel_id":    sc.ChannelID.String(),
		"channel_found": true,
		"receiver_btc":  sc.ReceiverBTC.String(),
		"provider_btc":  sc.ProviderBTC.String(),
		"receiver_usd":  sc.ReceiverUSD.String(),
		"provider_usd":  sc.ProviderUSD.String(),
		"btc_price":     sc.LatestPrice.String(),
	})

	return true
}

// auditReconcileFailure records a failed balance refresh. The payload
// carries the last-known balances so the audit stream shows what the
// evaluation would have acted on.
func auditReconcileFailure(sc *model.StableChannel, err error) {
	audit.Record(audit.EventBalanceUpdate, map[string]interface{}{
		"channel_id":    sc.ChannelID.String(),
		"channel_found": false,
		"error":         err.Error(),
		"receiver_btc":  sc.ReceiverBTC.String(),
		"provider_btc":  sc.ProviderBTC.String(),
		"receiver_usd":  sc.ReceiverUSD.String(),
		"provider_usd":  sc.ProviderUSD.String(),
		"btc_price":     sc.LatestPrice.String(),
	})
}

// CheckStability performs one peg evaluation: it resolves a price, refreshes
// balances, computes the deviation from par, and sends at most one
// corrective payment. All expected operational failures (missing price,
// missing channel, failed payment) terminate the evaluation quietly; the
// next scheduled invocation starts fresh. Evaluations are serialized, so
// concurrent callers block rather than interleave.
func (e *Endur) CheckStability(ctx context.Context, sc *model.StableChannel, price decimal.Decimal) {
	e.evalMu.Lock()
	defer e.evalMu.Unlock()

	currentPrice := price
	if !currentPrice.IsPositive() {
		currentPrice = e.prices.CachedPrice(ctx)
		if !currentPrice.IsPositive() {
			audit.Record(audit.EventStabilitySkip, map[string]interface{}{
				"reason": "no valid price available",
			})
			return
		}
	}

	sc.LatestPrice = currentPrice
	if !e.updateBalances(ctx, sc) {
		audit.Record(audit.EventBalanceUpdateFailed, map[string]interface{}{
			"channel_id": sc.ChannelID.String(),
		})
		return
	}

	dollarsFromPar := sc.DollarsFromPar()
	percentFromPar := sc.PercentFromPar()
	action := decideAction(sc)

	audit.Record(audit.EventStabilityCheck, map[string]interface{}{
		"expected_usd":         sc.ExpectedUSD.Decimal().String(),
		"current_receiver_usd": sc.ReceiverUSD.Decimal().String(),
		"percent_from_par":     percentFromPar.String(),
		"btc_price":            sc.LatestPrice.String(),
		"action":               action.String(),
		"is_receiver":          sc.IsReceiver,
		"risk_level":           sc.RiskLevel,
	})

	if action != model.ActionPay {
		return
	}

	amountMsat, err := dollarsFromPar.Abs().ToMilliSats(sc.LatestPrice)
	if err != nil {
		// Unreachable: the price was validated positive above.
		logrus.WithError(err).Error("payment amount conversion failed")
		return
	}

	paymentID, err := e.node.SendSpontaneousPayment(ctx, uint64(amountMsat), sc.Counterparty)
	if err != nil {
		audit.Record(audit.EventStabilityPaymentFailed, map[string]interface{}{
			"amount_msats": amountMsat,
			"error":        err.Error(),
			"counterparty": sc.Counterparty,
		})
		return
	}

	sc.PaymentMade = true
	audit.Record(audit.EventStabilityPaymentSent, map[string]interface{}{
		"amount_msats": amountMsat,
		"payment_id":   string(paymentID),
		"counterparty": sc.Counterparty,
	})
}

// decideAction selects the corrective action for the current deviation.
// Precedence: deadband, then the risk override, then direction. The
// receiver pays back excess and the provider tops up a shortfall; when the
// deviation runs the other way the counterparty must initiate, so this
// side only reports.
func decideAction(sc *model.StableChannel) model.StabilityAction {
	percentFromPar := sc.PercentFromPar()
	isReceiverBelowExpected := sc.ReceiverUSD.LessThan(sc.ExpectedUSD)

	switch {
	case percentFromPar.LessThanOrEqual(StabilityDeadbandPercent):
		return model.ActionStable
	case sc.RiskLevel > maxRiskLevel:
		return model.ActionHighRiskNoAction
	case (sc.IsReceiver && isReceiverBelowExpected) || (!sc.IsReceiver && !isReceiverBelowExpected):
		return model.ActionCheckOnly
	default:
		return model.ActionPay
	}
}

// selectChannel picks the channel to track: an unset ID takes the first
// channel the runtime reports; otherwise the ID must match exactly.
func selectChannel(channels []lightning.ChannelDetails, id lightning.ChannelID) (lightning.ChannelDetails, bool) {
	if id.IsZero() {
		if len(channels) == 0 {
			return lightning.ChannelDetails{}, false
		}
		return channels[0], true
	}

	for _, channel := range channels {
		if channel.ChannelID == id {
			return channel, true
		}
	}
	return lightning.ChannelDetails{}, false
}

// convertToUSD converts at the tracker's latest price. A zero price means
// "unknown"; the dollar view degrades to zero rather than failing the
// reconciliation.
func convertToUSD(b model.Bitcoin, price decimal.Decimal) model.USD {
	usd, err := model.USDFromBitcoin(b, price)
	if err != nil {
		return model.USD{}
	}
	return usd
}
