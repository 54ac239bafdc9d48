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
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/krutt/endur/lightning"
	"github.com/krutt/endur/mocks"
	"github.com/krutt/endur/model"
)

const testCounterparty = "02abcdef0123456789abcdef0123456789abcdef0123456789abcdef01234567"

func testPrice() decimal.Decimal {
	return decimal.NewFromInt(50000)
}

func testChannelID(t *testing.T) lightning.ChannelID {
	t.Helper()
	id, err := lightning.ChannelIDFromHex(strings.Repeat("ab", 32))
	require.NoError(t, err)
	return id
}

func newTestChannel(t *testing.T, isReceiver bool, riskLevel int) *model.StableChannel {
	t.Helper()
	sc, err := model.NewStableChannel(lightning.ZeroChannelID, testCounterparty, model.USDFromFloat(100), isReceiver, riskLevel)
	require.NoError(t, err)
	return sc
}

// channelWithOutbound builds a 1M sat channel where our side holds the given
// outbound balance.
func channelWithOutbound(id lightning.ChannelID, outboundSats uint64) lightning.ChannelDetails {
	return lightning.ChannelDetails{
		ChannelID:            id,
		CounterpartyNodeID:   testCounterparty,
		ChannelValueSats:     1_000_000,
		OutboundCapacityMsat: outboundSats * 1000,
		IsChannelReady:       true,
	}
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logrus.SetOutput(&buf)
	logrus.SetFormatter(&logrus.JSONFormatter{})
	t.Cleanup(func() {
		logrus.SetOutput(logrus.New().Out)
		logrus.SetFormatter(&logrus.TextFormatter{})
	})
	return &buf
}

func TestUpdateBalances_DirectionalAssignment(t *testing.T) {
	tests := []struct {
		name             string
		isReceiver       bool
		wantReceiverSats int64
		wantProviderSats int64
	}{
		{
			name:             "receiver side owns the outbound balance",
			isReceiver:       true,
			wantReceiverSats: 188_000,
			wantProviderSats: 812_000,
		},
		{
			name:             "provider side owns the outbound balance",
			isReceiver:       false,
			wantReceiverSats: 812_000,
			wantProviderSats: 188_000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := testChannelID(t)
			node := new(mocks.MockNode)
			node.On("ListBalances", mock.Anything).Return(lightning.BalanceSnapshot{TotalOnchainSats: 500_000, TotalLightningSats: 1_000_000}, nil)
			node.On("ListChannels", mock.Anything).Return([]lightning.ChannelDetails{channelWithOutbound(id, 188_000)}, nil)

			sc := newTestChannel(t, tt.isReceiver, 0)
			sc.ChannelID = id
			sc.LatestPrice = testPrice()

			service := NewEndur(node, new(mocks.MockPriceSource))
			found := service.UpdateBalances(context.Background(), sc)

			require.True(t, found)
			assert.Equal(t, tt.wantReceiverSats, sc.ReceiverBTC.Sats())
			assert.Equal(t, tt.wantProviderSats, sc.ProviderBTC.Sats())
			assert.Equal(t, int64(500_000), sc.OnchainBTC.Sats())

			wantReceiverUSD, err := model.USDFromBitcoin(model.BitcoinFromSats(tt.wantReceiverSats), testPrice())
			require.NoError(t, err)
			assert.True(t, sc.ReceiverUSD.Sub(wantReceiverUSD).IsZero(), "receiver USD: got %s want %s", sc.ReceiverUSD, wantReceiverUSD)
			node.AssertExpectations(t)
		})
	}
}

func TestUpdateBalances_AdoptsFirstChannel(t *testing.T) {
	first := testChannelID(t)
	second, err := lightning.ChannelIDFromHex(strings.Repeat("cd", 32))
	require.NoError(t, err)

	node := new(mocks.MockNode)
	node.On("ListBalances", mock.Anything).Return(lightning.BalanceSnapshot{}, nil)
	node.On("ListChannels", mock.Anything).Return([]lightning.ChannelDetails{
		channelWithOutbound(first, 200_000),
		channelWithOutbound(second, 300_000),
	}, nil)

	sc := newTestChannel(t, true, 0)
	sc.LatestPrice = testPrice()
	require.True(t, sc.ChannelID.IsZero())

	service := NewEndur(node, new(mocks.MockPriceSource))
	require.True(t, service.UpdateBalances(context.Background(), sc))

	assert.Equal(t, first, sc.ChannelID)
	assert.Equal(t, int64(200_000), sc.ReceiverBTC.Sats())
}

func TestUpdateBalances_NoMatchingChannel(t *testing.T) {
	node := new(mocks.MockNode)
	node.On("ListBalances", mock.Anything).Return(lightning.BalanceSnapshot{}, nil)
	node.On("ListChannels", mock.Anything).Return([]lightning.ChannelDetails{}, nil)

	sc := newTestChannel(t, true, 0)
	sc.ChannelID = testChannelID(t)
	sc.LatestPrice = testPrice()
	sc.ReceiverBTC = model.BitcoinFromSats(42_000)

	service := NewEndur(node, new(mocks.MockPriceSource))
	found := service.UpdateBalances(context.Background(), sc)

	assert.False(t, found)
	// Stale values are kept, not zeroed.
	assert.Equal(t, int64(42_000), sc.ReceiverBTC.Sats())
}

func TestUpdateBalances_IncludesPunishmentReserve(t *testing.T) {
	id := testChannelID(t)
	reserve := uint64(2_000)
	channel := channelWithOutbound(id, 188_000)
	channel.UnspendablePunishmentReserveSats = &reserve

	node := new(mocks.MockNode)
	node.On("ListBalances", mock.Anything).Return(lightning.BalanceSnapshot{}, nil)
	node.On("ListChannels", mock.Anything).Return([]lightning.ChannelDetails{channel}, nil)

	sc := newTestChannel(t, true, 0)
	sc.ChannelID = id
	sc.LatestPrice = testPrice()

	service := NewEndur(node, new(mocks.MockPriceSource))
	require.True(t, service.UpdateBalances(context.Background(), sc))

	assert.Equal(t, int64(190_000), sc.ReceiverBTC.Sats())
	assert.Equal(t, int64(810_000), sc.ProviderBTC.Sats())
}

func TestUpdateBalances_ReserveExceedsCapacity(t *testing.T) {
	// A reserve large enough to push our side past the channel value must
	// not underflow the counterparty's share; it clamps to zero.
	id := testChannelID(t)
	reserve := uint64(2_000)
	channel := channelWithOutbound(id, 1_000_000)
	channel.UnspendablePunishmentReserveSats = &reserve

	node := new(mocks.MockNode)
	node.On("ListBalances", mock.Anything).Return(lightning.BalanceSnapshot{}, nil)
	node.On("ListChannels", mock.Anything).Return([]lightning.ChannelDetails{channel}, nil)

	sc := newTestChannel(t, true, 0)
	sc.ChannelID = id
	sc.LatestPrice = testPrice()

	service := NewEndur(node, new(mocks.MockPriceSource))
	require.True(t, service.UpdateBalances(context.Background(), sc))

	assert.Equal(t, int64(1_002_000), sc.ReceiverBTC.Sats())
	assert.Equal(t, int64(0), sc.ProviderBTC.Sats())
}

func TestUpdateBalances_NodeErrorIsAudited(t *testing.T) {
	buf := captureLog(t)

	node := new(mocks.MockNode)
	node.On("ListBalances", mock.Anything).Return(lightning.BalanceSnapshot{}, errors.New("node unreachable"))

	sc := newTestChannel(t, true, 0)
	sc.LatestPrice = testPrice()

	service := NewEndur(node, new(mocks.MockPriceSource))
	found := service.UpdateBalances(context.Background(), sc)

	assert.False(t, found)
	assert.Contains(t, buf.String(), "BALANCE_UPDATE")
	assert.Contains(t, buf.String(), `"channel_found":false`)
	assert.Contains(t, buf.String(), "node unreachable")
}

func TestCheckStability_SkipsWithoutPrice(t *testing.T) {
	buf := captureLog(t)

	node := new(mocks.MockNode)
	prices := new(mocks.MockPriceSource)
	prices.On("CachedPrice", mock.Anything).Return(decimal.Zero)

	sc := newTestChannel(t, true, 0)
	service := NewEndur(node, prices)
	service.CheckStability(context.Background(), sc, decimal.Zero)

	assert.Contains(t, buf.String(), "STABILITY_SKIP")
	node.AssertNotCalled(t, "ListBalances", mock.Anything)
	node.AssertNotCalled(t, "SendSpontaneousPayment", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckStability_BalanceUpdateFailure(t *testing.T) {
	buf := captureLog(t)

	node := new(mocks.MockNode)
	node.On("ListBalances", mock.Anything).Return(lightning.BalanceSnapshot{}, errors.New("node unreachable"))

	sc := newTestChannel(t, true, 0)
	service := NewEndur(node, new(mocks.MockPriceSource))
	service.CheckStability(context.Background(), sc, testPrice())

	assert.Contains(t, buf.String(), "BALANCE_UPDATE_FAILED")
	node.AssertNotCalled(t, "SendSpontaneousPayment", mock.Anything, mock.Anything, mock.Anything)
	assert.False(t, sc.PaymentMade)
}

func TestCheckStability_WithinDeadband(t *testing.T) {
	// 200,200 sats at $50,000 is exactly $100.10: 0.1% from a $100 par,
	// right on the deadband boundary.
	id := testChannelID(t)
	node := new(mocks.MockNode)
	node.On("ListBalances", mock.Anything).Return(lightning.BalanceSnapshot{}, nil)
	node.On("ListChannels", mock.Anything).Return([]lightning.ChannelDetails{channelWithOutbound(id, 200_200)}, nil)

	sc := newTestChannel(t, true, 0)
	sc.ChannelID = id

	service := NewEndur(node, new(mocks.MockPriceSource))
	service.CheckStability(context.Background(), sc, testPrice())

	node.AssertNotCalled(t, "SendSpontaneousPayment", mock.Anything, mock.Anything, mock.Anything)
	assert.False(t, sc.PaymentMade)
}

func TestCheckStability_ReceiverPaysExcess(t *testing.T) {
	// 200,400 sats at $50,000 is $100.20: 0.2% above par, so the receiver
	// pushes the $0.20 excess back to the provider.
	id := testChannelID(t)
	node := new(mocks.MockNode)
	node.On("ListBalances", mock.Anything).Return(lightning.BalanceSnapshot{}, nil)
	node.On("ListChannels", mock.Anything).Return([]lightning.ChannelDetails{channelWithOutbound(id, 200_400)}, nil)
	node.On("SendSpontaneousPayment", mock.Anything, uint64(400_000), testCounterparty).Return(lightning.PaymentID("pay_01"), nil)

	sc := newTestChannel(t, true, 0)
	sc.ChannelID = id

	service := NewEndur(node, new(mocks.MockPriceSource))
	service.CheckStability(context.Background(), sc, testPrice())

	node.AssertExpectations(t)
	assert.True(t, sc.PaymentMade)
}

func TestCheckStability_ProviderTopsUpShortfall(t *testing.T) {
	// Provider view: the counterparty's receiver side holds $94 of a $100
	// par, so the provider sends the $6 shortfall (12,000,000 msats at
	// $50,000).
	id := testChannelID(t)
	node := new(mocks.MockNode)
	node.On("ListBalances", mock.Anything).Return(lightning.BalanceSnapshot{}, nil)
	node.On("ListChannels", mock.Anything).Return([]lightning.ChannelDetails{channelWithOutbound(id, 812_000)}, nil)
	node.On("SendSpontaneousPayment", mock.Anything, uint64(12_000_000), testCounterparty).Return(lightning.PaymentID("pay_02"), nil)

	sc := newTestChannel(t, false, 10)
	sc.ChannelID = id

	service := NewEndur(node, new(mocks.MockPriceSource))
	service.CheckStability(context.Background(), sc, testPrice())

	node.AssertExpectations(t)
	assert.True(t, sc.PaymentMade)
}

func TestCheckStability_HighRiskSuppressesPayment(t *testing.T) {
	buf := captureLog(t)

	id := testChannelID(t)
	node := new(mocks.MockNode)
	node.On("ListBalances", mock.Anything).Return(lightning.BalanceSnapshot{}, nil)
	node.On("ListChannels", mock.Anything).Return([]lightning.ChannelDetails{channelWithOutbound(id, 200_400)}, nil)

	sc := newTestChannel(t, true, 150)
	sc.ChannelID = id

	service := NewEndur(node, new(mocks.MockPriceSource))
	service.CheckStability(context.Background(), sc, testPrice())

	assert.Contains(t, buf.String(), "HIGH_RISK_NO_ACTION")
	node.AssertNotCalled(t, "SendSpontaneousPayment", mock.Anything, mock.Anything, mock.Anything)
	assert.False(t, sc.PaymentMade)
}

func TestCheckStability_WrongDirectionOnlyReports(t *testing.T) {
	tests := []struct {
		name         string
		isReceiver   bool
		outboundSats uint64
	}{
		{
			// Receiver short of par waits for the provider's top-up.
			name:         "receiver below par",
			isReceiver:   true,
			outboundSats: 188_000,
		},
		{
			// Provider facing an over-par receiver waits for the push-back.
			name:         "provider with receiver above par",
			isReceiver:   false,
			outboundSats: 799_600,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLog(t)

			id := testChannelID(t)
			node := new(mocks.MockNode)
			node.On("ListBalances", mock.Anything).Return(lightning.BalanceSnapshot{}, nil)
			node.On("ListChannels", mock.Anything).Return([]lightning.ChannelDetails{channelWithOutbound(id, tt.outboundSats)}, nil)

			sc := newTestChannel(t, tt.isReceiver, 0)
			sc.ChannelID = id

			service := NewEndur(node, new(mocks.MockPriceSource))
			service.CheckStability(context.Background(), sc, testPrice())

			assert.Contains(t, buf.String(), "CHECK_ONLY")
			node.AssertNotCalled(t, "SendSpontaneousPayment", mock.Anything, mock.Anything, mock.Anything)
			assert.False(t, sc.PaymentMade)
		})
	}
}

func TestCheckStability_PaymentFailureLeavesState(t *testing.T) {
	buf := captureLog(t)

	id := testChannelID(t)
	node := new(mocks.MockNode)
	node.On("ListBalances", mock.Anything).Return(lightning.BalanceSnapshot{}, nil)
	node.On("ListChannels", mock.Anything).Return([]lightning.ChannelDetails{channelWithOutbound(id, 200_400)}, nil)
	node.On("SendSpontaneousPayment", mock.Anything, uint64(400_000), testCounterparty).Return(lightning.PaymentID(""), errors.New("no route"))

	sc := newTestChannel(t, true, 0)
	sc.ChannelID = id

	service := NewEndur(node, new(mocks.MockPriceSource))
	service.CheckStability(context.Background(), sc, testPrice())

	assert.Contains(t, buf.String(), "STABILITY_PAYMENT_FAILED")
	assert.False(t, sc.PaymentMade)
}

func TestCheckStability_UsesCachedPriceWhenNoneGiven(t *testing.T) {
	id := testChannelID(t)
	node := new(mocks.MockNode)
	node.On("ListBalances", mock.Anything).Return(lightning.BalanceSnapshot{}, nil)
	node.On("ListChannels", mock.Anything).Return([]lightning.ChannelDetails{channelWithOutbound(id, 200_000)}, nil)

	prices := new(mocks.MockPriceSource)
	prices.On("CachedPrice", mock.Anything).Return(testPrice())

	sc := newTestChannel(t, true, 0)
	sc.ChannelID = id

	service := NewEndur(node, prices)
	service.CheckStability(context.Background(), sc, decimal.Zero)

	assert.True(t, sc.LatestPrice.Equal(testPrice()))
	prices.AssertExpectations(t)
}

func TestCheckStability_SerializesConcurrentEvaluations(t *testing.T) {
	// The monitor loop and API handlers share one StableChannel; the
	// service must never let two evaluations interleave on it.
	id := testChannelID(t)

	var active, overlaps int32
	node := new(mocks.MockNode)
	node.On("ListBalances", mock.Anything).Return(lightning.BalanceSnapshot{}, nil).Run(func(args mock.Arguments) {
		if atomic.AddInt32(&active, 1) > 1 {
			atomic.AddInt32(&overlaps, 1)
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&active, -1)
	})
	node.On("ListChannels", mock.Anything).Return([]lightning.ChannelDetails{channelWithOutbound(id, 200_000)}, nil)

	sc := newTestChannel(t, true, 0)
	sc.ChannelID = id

	service := NewEndur(node, new(mocks.MockPriceSource))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			service.CheckStability(context.Background(), sc, testPrice())
		}()
	}
	wg.Wait()

	assert.Zero(t, atomic.LoadInt32(&overlaps), "evaluations ran concurrently")
	// 200,000 sats at $50,000 is exactly par, so no payment either way.
	node.AssertNotCalled(t, "SendSpontaneousPayment", mock.Anything, mock.Anything, mock.Anything)
	assert.False(t, sc.PaymentMade)
}

func TestDecideAction(t *testing.T) {
	tests := []struct {
		name        string
		receiverUSD float64
		isReceiver  bool
		riskLevel   int
		want        model.StabilityAction
	}{
		{name: "exactly at par", receiverUSD: 100, isReceiver: true, want: model.ActionStable},
		{name: "exactly on deadband boundary", receiverUSD: 100.10, isReceiver: true, want: model.ActionStable},
		{name: "just above deadband, receiver over par", receiverUSD: 100.11, isReceiver: true, want: model.ActionPay},
		{name: "risk override beats direction", receiverUSD: 120, isReceiver: true, riskLevel: 101, want: model.ActionHighRiskNoAction},
		{name: "risk at threshold does not override", receiverUSD: 120, isReceiver: true, riskLevel: 100, want: model.ActionPay},
		{name: "receiver below par reports only", receiverUSD: 94, isReceiver: true, want: model.ActionCheckOnly},
		{name: "provider covers shortfall", receiverUSD: 94, isReceiver: false, want: model.ActionPay},
		{name: "provider with receiver over par reports only", receiverUSD: 106, isReceiver: false, want: model.ActionCheckOnly},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := newTestChannel(t, tt.isReceiver, tt.riskLevel)
			sc.ReceiverUSD = model.USDFromFloat(tt.receiverUSD)
			assert.Equal(t, tt.want, decideAction(sc))
		})
	}
}
