package testutils

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/mock"

	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

type MockL2Client struct {
	mock.Mock
}

func (m *MockL2Client) L2BlockRefByNumber(ctx context.Context, num uint64) (eth.L2BlockRef, error) {
	out := m.Mock.Called(num)
	return out.Get(0).(eth.L2BlockRef), out.Error(1)
}

func (m *MockL2Client) ExpectL2BlockRefByNumber(num uint64, ref eth.L2BlockRef, err error) {
	m.Mock.On("L2BlockRefByNumber", num).Once().Return(ref, err)
}

func (m *MockL2Client) L2BlockRefByHash(ctx context.Context, hash common.Hash) (eth.L2BlockRef, error) {
	out := m.Mock.Called(hash)
	return out.Get(0).(eth.L2BlockRef), out.Error(1)
}

func (m *MockL2Client) ExpectL2BlockRefByHash(hash common.Hash, ref eth.L2BlockRef, err error) {
	m.Mock.On("L2BlockRefByHash", hash).Once().Return(ref, err)
}

func (m *MockL2Client) SystemConfigByL2Hash(ctx context.Context, hash common.Hash) (eth.SystemConfig, error) {
	out := m.Mock.Called(hash)
	return out.Get(0).(eth.SystemConfig), out.Error(1)
}

func (m *MockL2Client) ExpectSystemConfigByL2Hash(hash common.Hash, cfg eth.SystemConfig, err error) {
	m.Mock.On("SystemConfigByL2Hash", hash).Once().Return(cfg, err)
}

func (m *MockL2Client) SystemConfigByNumber(ctx context.Context, num uint64) (eth.SystemConfig, error) {
	out := m.Mock.Called(num)
	return out.Get(0).(eth.SystemConfig), out.Error(1)
}

func (m *MockL2Client) ExpectSystemConfigByNumber(num uint64, cfg eth.SystemConfig, err error) {
	m.Mock.On("SystemConfigByNumber", num).Once().Return(cfg, err)
}

func (m *MockL2Client) InfoAndTxsByHash(ctx context.Context, hash common.Hash) (eth.BlockInfo, types.Transactions, error) {
	out := m.Mock.Called(hash)
	return out.Get(0).(eth.BlockInfo), out.Get(1).(types.Transactions), out.Error(2)
}

func (m *MockL2Client) ExpectInfoAndTxsByHash(hash common.Hash, info eth.BlockInfo, transactions types.Transactions, err error) {
	m.Mock.On("InfoAndTxsByHash", hash).Once().Return(info, transactions, err)
}
