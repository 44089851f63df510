// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package displaypm

// Hardware failures are logged and never abort a transition.

func (pm *PowerManager) enterNormal(from PowerState) {
	switch from {
	case StateNormal:
		return
	case StateDim:
		pm.applyBrightness(pm.brightness)
	default:
		pm.applyBrightness(pm.brightness)
		pm.panelOn()
	}
}

func (pm *PowerManager) enterDim(from PowerState) {
	switch from {
	case StateDim:
		return
	case StateNormal:
	default:
		pm.panelOn()
	}
	pm.applyBrightness(pm.dimBrightness())
}

func (pm *PowerManager) enterOff(from PowerState) {
	if from == StateOff {
		return
	}
	err := pm.backend.SetPanelPower(false)
	if err != nil {
		logger.Warning("failed to power off panel:", err)
	}
	if from != StateSleep {
		err = pm.backend.PreSuspend()
		if err != nil {
			logger.Warning("pre-suspend notification failed:", err)
		}
	}
}

func (pm *PowerManager) enterSleep(from PowerState) {
	if from != StateOff {
		// forced from a lit state
		pm.enterOff(from)
	}
	ev := pm.suspend()
	logger.Info("resumed by", ev)
	if pm.handleEvent(ev) == TransitionBlocked {
		// off is leased, the device is awake anyway
		pm.handleEvent(EventUserInput)
	}
}

func (pm *PowerManager) panelOn() {
	var err error
	for i := 0; i < pm.retryCount; i++ {
		err = pm.backend.SetPanelPower(true)
		if err == nil {
			return
		}
		logger.Warningf("failed to power on panel (%d/%d): %v", i+1, pm.retryCount, err)
	}
	logger.Warning("give up powering on panel:", err)
}

func (pm *PowerManager) applyBrightness(value int) {
	err := pm.backend.SetBrightness(value)
	if err != nil {
		logger.Warningf("failed to set brightness %d: %v", value, err)
	}
}
