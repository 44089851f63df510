// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package displaypm

import (
	"context"
	"testing"
	"time"

	"github.com/linuxdeepin/dde-display-pm/system/displaypm1/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) SetPanelPower(on bool) error {
	return m.Called(on).Error(0)
}

func (m *mockBackend) SetBrightness(value int) error {
	return m.Called(value).Error(0)
}

func (m *mockBackend) Brightness() (int, error) {
	args := m.Called()
	return args.Int(0), args.Error(1)
}

func (m *mockBackend) MaxBrightness() int {
	return m.Called().Int(0)
}

func (m *mockBackend) PreSuspend() error {
	return m.Called().Error(0)
}

func (m *mockBackend) ReadWakeupCount() (int64, error) {
	args := m.Called()
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockBackend) WriteWakeupCount(n int64) error {
	return m.Called(n).Error(0)
}

func (m *mockBackend) Suspend() error {
	return m.Called().Error(0)
}

func (m *mockBackend) WakeupSource() (backend.WakeupSource, error) {
	args := m.Called()
	return args.Get(0).(backend.WakeupSource), args.Error(1)
}

func newMockBackend() *mockBackend {
	bk := new(mockBackend)
	bk.On("Brightness").Return(50, nil).Maybe()
	bk.On("MaxBrightness").Return(100).Maybe()
	bk.On("SetBrightness", mock.Anything).Return(nil).Maybe()
	bk.On("SetPanelPower", mock.Anything).Return(nil).Maybe()
	bk.On("PreSuspend").Return(nil).Maybe()
	return bk
}

func TestSuspend_Sequence(t *testing.T) {
	bk := newMockBackend()
	bk.On("ReadWakeupCount").Return(int64(12), nil).Once()
	bk.On("WriteWakeupCount", int64(12)).Return(nil).Once()
	bk.On("Suspend").Return(nil).Once()
	bk.On("WakeupSource").Return(backend.WakeupUser, nil).Once()

	pm := newPowerManager(bk, &fakeScheduler{}, nil, testConfig(), fakeAlive{}.isAlive)
	pm.Start()
	require.NoError(t, pm.ForceChange(StateSleep))

	assert.Equal(t, StateNormal, pm.State())
	assert.Equal(t, StateSleep, pm.PrevState())
	bk.AssertExpectations(t)
	bk.AssertCalled(t, "SetPanelPower", true)
}

func TestSuspend_NegativeCountNeverSuspends(t *testing.T) {
	bk := newMockBackend()
	bk.On("ReadWakeupCount").Return(int64(-1), nil).Once()

	pm := newPowerManager(bk, &fakeScheduler{}, nil, testConfig(), fakeAlive{}.isAlive)
	pm.Start()
	require.NoError(t, pm.ForceChange(StateSleep))

	assert.Equal(t, StateOff, pm.State())
	bk.AssertNotCalled(t, "WriteWakeupCount", mock.Anything)
	bk.AssertNotCalled(t, "Suspend")
	bk.AssertNotCalled(t, "WakeupSource")
}

func TestSuspend_GuardInterval(t *testing.T) {
	bk := newMockBackend()
	bk.On("ReadWakeupCount").After(500*time.Millisecond).Return(int64(4), nil).Maybe()

	cfg := testConfig()
	cfg.SuspendGuard = 20 * time.Millisecond
	pm := newPowerManager(bk, &fakeScheduler{}, nil, cfg, fakeAlive{}.isAlive)
	pm.Start()

	start := time.Now()
	require.NoError(t, pm.ForceChange(StateSleep))
	assert.True(t, time.Since(start) < 400*time.Millisecond)

	assert.Equal(t, StateOff, pm.State())
	bk.AssertNotCalled(t, "WriteWakeupCount", mock.Anything)
	bk.AssertNotCalled(t, "Suspend")
}

func TestSuspend_DisarmGuard(t *testing.T) {
	bk := newMockBackend()
	bk.On("ReadWakeupCount").After(500*time.Millisecond).Return(int64(4), nil).Maybe()

	cfg := testConfig()
	cfg.SuspendGuard = 5 * time.Second
	pm := newPowerManager(bk, &fakeScheduler{}, nil, cfg, fakeAlive{}.isAlive)
	pm.Start()

	go func() {
		time.Sleep(20 * time.Millisecond)
		pm.DisarmSuspendGuard()
	}()
	start := time.Now()
	require.NoError(t, pm.ForceChange(StateSleep))
	assert.True(t, time.Since(start) < 400*time.Millisecond)

	assert.Equal(t, StateOff, pm.State())
	bk.AssertNotCalled(t, "Suspend")

	// later reads are aborted as well
	_, err := pm.readWakeupCount()
	assert.ErrorIs(t, err, context.Canceled)
}
