// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package displaypm

import "time"

const (
	dbusServiceName = "org.deepin.dde.DisplayPM1"
	dbusPath        = "/org/deepin/dde/DisplayPM1"
	dbusInterface   = dbusServiceName
)

const (
	dsettingsAppID       = "org.deepin.dde.daemon"
	dsettingsDisplayPM   = "org.deepin.dde.daemon.displaypm"
	dsettingsDisplayTime = "displayTimeout"
	dsettingsDimTime     = "dimTimeout"
	dsettingsOffTime     = "offTimeout"
	dsettingsLockScreen  = "lockScreenActive"
	dsettingsPowerSaving = "powerSavingMode"
	dsettingsPMState     = "pmState"
)

const (
	configFile        = "/etc/deepin/dde-display-pm.yaml"
	inputDeviceDir    = "/dev/input"
	DefaultSocketPath = "/run/dde-display-pm/control.sock"
)

const (
	defaultNormalTimeout = 600 * time.Second
	defaultDimTimeout    = 5 * time.Second
	defaultOffTimeout    = 1 * time.Second
	defaultDimPercent    = 10
	defaultRetryCount    = 5
	defaultSuspendGuard  = 3 * time.Second
	defaultSleepMargin   = 10 * time.Second

	lockScreenTimeout  = 10 * time.Second
	powerSavingTimeout = 30 * time.Second
)
