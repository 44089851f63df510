// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package backend drives display power, backlight brightness and kernel
// suspend through sysfs.
package backend

import (
	"github.com/linuxdeepin/go-lib/log"
)

var logger = log.NewLogger("daemon/displaypm/backend")

// WakeupSource tells what ended the last suspend.
type WakeupSource int

const (
	WakeupDevice WakeupSource = iota
	WakeupUser
)

func (s WakeupSource) String() string {
	if s == WakeupUser {
		return "user"
	}
	return "device"
}

const (
	blPowerUnblank   = 0
	blPowerPowerdown = 4
)
