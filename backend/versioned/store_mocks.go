// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package versioned

import (
	reflect "reflect"

	common "github.com/metacraft-labs/DendrETH-sub000/common"
	gomock "go.uber.org/mock/gomock"
)

// MockStore is a mock of Store interface.
type MockStore struct {
	ctrl     *gomock.Controller
	recorder *MockStoreMockRecorder
}

// MockStoreMockRecorder is the mock recorder for MockStore.
type MockStoreMockRecorder struct {
	mock *MockStore
}

// NewMockStore creates a new mock instance.
func NewMockStore(ctrl *gomock.Controller) *MockStore {
	mock := &MockStore{ctrl: ctrl}
	mock.recorder = &MockStoreMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockStore) EXPECT() *MockStoreMockRecorder {
	return m.recorder
}

// Close mocks base method.
func (m *MockStore) Close() error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Close")
	ret0, _ := ret[0].(error)
	return ret0
}

// Close indicates an expected call of Close.
func (mr *MockStoreMockRecorder) Close() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Close", reflect.TypeOf((*MockStore)(nil).Close))
}

// GetWatermark mocks base method.
func (m *MockStore) GetWatermark(name string) (common.Epoch, bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetWatermark", name)
	ret0, _ := ret[0].(common.Epoch)
	ret1, _ := ret[1].(bool)
	ret2, _ := ret[2].(error)
	return ret0, ret1, ret2
}

// GetWatermark indicates an expected call of GetWatermark.
func (mr *MockStoreMockRecorder) GetWatermark(name any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetWatermark", reflect.TypeOf((*MockStore)(nil).GetWatermark), name)
}

// GetZero mocks base method.
func (m *MockStore) GetZero(entity string, depth uint8) ([]byte, bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetZero", entity, depth)
	ret0, _ := ret[0].([]byte)
	ret1, _ := ret[1].(bool)
	ret2, _ := ret[2].(error)
	return ret0, ret1, ret2
}

// GetZero indicates an expected call of GetZero.
func (mr *MockStoreMockRecorder) GetZero(entity, depth any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetZero", reflect.TypeOf((*MockStore)(nil).GetZero), entity, depth)
}

// LatestEpochAtOrBefore mocks base method.
func (m *MockStore) LatestEpochAtOrBefore(key Key, epoch common.Epoch) (common.Epoch, bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "LatestEpochAtOrBefore", key, epoch)
	ret0, _ := ret[0].(common.Epoch)
	ret1, _ := ret[1].(bool)
	ret2, _ := ret[2].(error)
	return ret0, ret1, ret2
}

// LatestEpochAtOrBefore indicates an expected call of LatestEpochAtOrBefore.
func (mr *MockStoreMockRecorder) LatestEpochAtOrBefore(key, epoch any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "LatestEpochAtOrBefore", reflect.TypeOf((*MockStore)(nil).LatestEpochAtOrBefore), key, epoch)
}

// Prune mocks base method.
func (m *MockStore) Prune(key Key, watermark common.Epoch) (int, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Prune", key, watermark)
	ret0, _ := ret[0].(int)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Prune indicates an expected call of Prune.
func (mr *MockStoreMockRecorder) Prune(key, watermark any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Prune", reflect.TypeOf((*MockStore)(nil).Prune), key, watermark)
}

// PruneEntity mocks base method.
func (m *MockStore) PruneEntity(entity string, watermark common.Epoch) (int, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "PruneEntity", entity, watermark)
	ret0, _ := ret[0].(int)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// PruneEntity indicates an expected call of PruneEntity.
func (mr *MockStoreMockRecorder) PruneEntity(entity, watermark any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "PruneEntity", reflect.TypeOf((*MockStore)(nil).PruneEntity), entity, watermark)
}

// ReadAsOf mocks base method.
func (m *MockStore) ReadAsOf(key Key, epoch common.Epoch) ([]byte, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ReadAsOf", key, epoch)
	ret0, _ := ret[0].([]byte)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ReadAsOf indicates an expected call of ReadAsOf.
func (mr *MockStoreMockRecorder) ReadAsOf(key, epoch any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ReadAsOf", reflect.TypeOf((*MockStore)(nil).ReadAsOf), key, epoch)
}

// ReadManyAsOf mocks base method.
func (m *MockStore) ReadManyAsOf(keys []Key, epoch common.Epoch) ([][]byte, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ReadManyAsOf", keys, epoch)
	ret0, _ := ret[0].([][]byte)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ReadManyAsOf indicates an expected call of ReadManyAsOf.
func (mr *MockStoreMockRecorder) ReadManyAsOf(keys, epoch any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ReadManyAsOf", reflect.TypeOf((*MockStore)(nil).ReadManyAsOf), keys, epoch)
}

// SetWatermark mocks base method.
func (m *MockStore) SetWatermark(name string, epoch common.Epoch) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SetWatermark", name, epoch)
	ret0, _ := ret[0].(error)
	return ret0
}

// SetWatermark indicates an expected call of SetWatermark.
func (mr *MockStoreMockRecorder) SetWatermark(name, epoch any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SetWatermark", reflect.TypeOf((*MockStore)(nil).SetWatermark), name, epoch)
}

// SetZero mocks base method.
func (m *MockStore) SetZero(entity string, depth uint8, value []byte) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SetZero", entity, depth, value)
	ret0, _ := ret[0].(error)
	return ret0
}

// SetZero indicates an expected call of SetZero.
func (mr *MockStoreMockRecorder) SetZero(entity, depth, value any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SetZero", reflect.TypeOf((*MockStore)(nil).SetZero), entity, depth, value)
}

// WriteVersion mocks base method.
func (m *MockStore) WriteVersion(key Key, epoch common.Epoch, value []byte) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "WriteVersion", key, epoch, value)
	ret0, _ := ret[0].(error)
	return ret0
}

// WriteVersion indicates an expected call of WriteVersion.
func (mr *MockStoreMockRecorder) WriteVersion(key, epoch, value any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "WriteVersion", reflect.TypeOf((*MockStore)(nil).WriteVersion), key, epoch, value)
}

// WriteVersions mocks base method.
func (m *MockStore) WriteVersions(epoch common.Epoch, entries []Entry) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "WriteVersions", epoch, entries)
	ret0, _ := ret[0].(error)
	return ret0
}

// WriteVersions indicates an expected call of WriteVersions.
func (mr *MockStoreMockRecorder) WriteVersions(epoch, entries any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "WriteVersions", reflect.TypeOf((*MockStore)(nil).WriteVersions), epoch, entries)
}
