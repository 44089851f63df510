// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"flag"
	"os"
	"os/signal"
	"strings"

	"github.com/linuxdeepin/dde-display-pm/loader"
	"github.com/linuxdeepin/go-lib/dbusutil"
	"github.com/linuxdeepin/go-lib/log"
	"golang.org/x/sys/unix"

	// modules:
	_ "github.com/linuxdeepin/dde-display-pm/system/displaypm1"
)

const dbusServiceName = "org.deepin.dde.DisplayPM1"

var logger = log.NewLogger("daemon/dde-display-pm")

var (
	optDebug   bool
	optModules string
)

func main() {
	flag.BoolVar(&optDebug, "debug", false, "debug mode")
	flag.StringVar(&optModules, "enable", "",
		"Enable only these modules and their dependencies, comma separated.")
	flag.Parse()
	if optDebug {
		logger.SetLogLevel(log.LevelDebug)
		loader.SetLogLevel(log.LevelDebug)
	}

	service, err := dbusutil.NewSystemService()
	if err != nil {
		logger.Fatal("failed to new system service", err)
	}

	hasOwner, err := service.NameHasOwner(dbusServiceName)
	if err != nil {
		logger.Fatal("failed to call NameHasOwner:", err)
	}
	if hasOwner {
		logger.Warningf("name %q already has the owner", dbusServiceName)
		os.Exit(1)
	}

	loader.SetService(service)
	if optModules != "" {
		err = loader.EnableModules(strings.Split(optModules, ","), loader.EnableFlagNone)
	} else {
		err = loader.StartAll()
	}
	if err != nil {
		logger.Fatal("failed to start modules:", err)
	}
	defer loader.StopAll()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, unix.SIGINT, unix.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal", sig)
		service.Quit()
	}()

	service.Wait()
}
