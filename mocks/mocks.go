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
package mocks

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/krutt/endur/lightning"
)

// MockNode is a mock implementation of the lightning.Node interface
type MockNode struct {
	mock.Mock
}

func (m *MockNode) NodeID(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockNode) ListBalances(ctx context.Context) (lightning.BalanceSnapshot, error) {
	args := m.Called(ctx)
	return args.Get(0).(lightning.BalanceSnapshot), args.Error(1)
}

func (m *MockNode) ListChannels(ctx context.Context) ([]lightning.ChannelDetails, error) {
	args := m.Called(ctx)
	return args.Get(0).([]lightning.ChannelDetails), args.Error(1)
}

func (m *MockNode) SendSpontaneousPayment(ctx context.Context, amountMsat uint64, destinationNodeID string) (lightning.PaymentID, error) {
	args := m.Called(ctx, amountMsat, destinationNodeID)
	return args.Get(0).(lightning.PaymentID), args.Error(1)
}

func (m *MockNode) ReceivePayment(ctx context.Context, amountMsat uint64, description string, expirySecs uint32) (lightning.Invoice, error) {
	args := m.Called(ctx, amountMsat, description, expirySecs)
	return args.Get(0).(lightning.Invoice), args.Error(1)
}

func (m *MockNode) NewAddress(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// MockPriceSource is a mock implementation of the endur.PriceSource interface
type MockPriceSource struct {
	mock.Mock
}

func (m *MockPriceSource) CachedPrice(ctx context.Context) decimal.Decimal {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal)
}

func (m *MockPriceSource) LatestPrice(ctx context.Context) (decimal.Decimal, error) {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}
