// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package displaypm

import (
	"context"
	"errors"

	"github.com/linuxdeepin/dde-display-pm/system/displaypm1/backend"
)

var errSuspendGuard = errors.New("wakeup count read did not return in time")

// suspend runs one suspend attempt and returns the event that re-drives
// the state machine afterwards. An aborted attempt is never retried here,
// the next timeout of off tries again.
func (pm *PowerManager) suspend() Event {
	count, err := pm.readWakeupCount()
	if err != nil {
		logger.Warning("abort suspend:", err)
		return EventDeviceWake
	}
	if count < 0 {
		logger.Warning("abort suspend: invalid wakeup count", count)
		return EventDeviceWake
	}
	err = pm.backend.WriteWakeupCount(count)
	if err != nil {
		logger.Info("abort suspend, wakeup event in progress:", err)
		return EventDeviceWake
	}

	logger.Info("suspend")
	err = pm.backend.Suspend()
	if err != nil {
		logger.Warning("suspend failed:", err)
		return EventDeviceWake
	}

	src, err := pm.backend.WakeupSource()
	if err != nil {
		logger.Warning("failed to read wakeup source:", err)
	}
	if src == backend.WakeupUser {
		return EventUserInput
	}
	return EventDeviceWake
}

// readWakeupCount gives up after the suspend guard interval, the kernel
// read blocks while wakeup events are being handled.
func (pm *PowerManager) readWakeupCount() (int64, error) {
	ctx, cancel := context.WithTimeout(pm.guardCtx, pm.suspendGuard)
	defer cancel()

	type result struct {
		count int64
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		count, err := pm.backend.ReadWakeupCount()
		ch <- result{count: count, err: err}
	}()

	select {
	case r := <-ch:
		return r.count, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, errSuspendGuard
		}
		return 0, ctx.Err()
	}
}
