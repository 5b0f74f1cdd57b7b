// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package source

import (
	context "context"
	reflect "reflect"

	common "github.com/metacraft-labs/DendrETH-sub000/common"
	validator "github.com/metacraft-labs/DendrETH-sub000/validator"
	gomock "go.uber.org/mock/gomock"
)

// MockSource is a mock of Source interface.
type MockSource struct {
	ctrl     *gomock.Controller
	recorder *MockSourceMockRecorder
}

// MockSourceMockRecorder is the mock recorder for MockSource.
type MockSourceMockRecorder struct {
	mock *MockSource
}

// NewMockSource creates a new mock instance.
func NewMockSource(ctrl *gomock.Controller) *MockSource {
	mock := &MockSource{ctrl: ctrl}
	mock.recorder = &MockSourceMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockSource) EXPECT() *MockSourceMockRecorder {
	return m.recorder
}

// FirstNonMissingSlotInEpoch mocks base method.
func (m *MockSource) FirstNonMissingSlotInEpoch(ctx context.Context, epoch common.Epoch) (common.Slot, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "FirstNonMissingSlotInEpoch", ctx, epoch)
	ret0, _ := ret[0].(common.Slot)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// FirstNonMissingSlotInEpoch indicates an expected call of FirstNonMissingSlotInEpoch.
func (mr *MockSourceMockRecorder) FirstNonMissingSlotInEpoch(ctx, epoch any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "FirstNonMissingSlotInEpoch", reflect.TypeOf((*MockSource)(nil).FirstNonMissingSlotInEpoch), ctx, epoch)
}

// HeadEpoch mocks base method.
func (m *MockSource) HeadEpoch(ctx context.Context) (common.Epoch, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "HeadEpoch", ctx)
	ret0, _ := ret[0].(common.Epoch)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// HeadEpoch indicates an expected call of HeadEpoch.
func (mr *MockSourceMockRecorder) HeadEpoch(ctx any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "HeadEpoch", reflect.TypeOf((*MockSource)(nil).HeadEpoch), ctx)
}

// LastFinalizedEpoch mocks base method.
func (m *MockSource) LastFinalizedEpoch(ctx context.Context) (common.Epoch, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "LastFinalizedEpoch", ctx)
	ret0, _ := ret[0].(common.Epoch)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// LastFinalizedEpoch indicates an expected call of LastFinalizedEpoch.
func (mr *MockSourceMockRecorder) LastFinalizedEpoch(ctx any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "LastFinalizedEpoch", reflect.TypeOf((*MockSource)(nil).LastFinalizedEpoch), ctx)
}

// Subscribe mocks base method.
func (m *MockSource) Subscribe(ctx context.Context, topics []Topic) (*Subscription, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Subscribe", ctx, topics)
	ret0, _ := ret[0].(*Subscription)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Subscribe indicates an expected call of Subscribe.
func (mr *MockSourceMockRecorder) Subscribe(ctx, topics any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Subscribe", reflect.TypeOf((*MockSource)(nil).Subscribe), ctx, topics)
}

// Validators mocks base method.
func (m *MockSource) Validators(ctx context.Context, slot common.Slot, window Window) ([]validator.Validator, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Validators", ctx, slot, window)
	ret0, _ := ret[0].([]validator.Validator)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Validators indicates an expected call of Validators.
func (mr *MockSourceMockRecorder) Validators(ctx, slot, window any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Validators", reflect.TypeOf((*MockSource)(nil).Validators), ctx, slot, window)
}
