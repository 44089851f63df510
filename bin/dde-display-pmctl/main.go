// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

// dde-display-pmctl talks to dde-display-pm over the system bus or its
// control socket.
package main

func main() {
	Execute()
}
