// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package displaypm

import (
	"context"
	"os"

	"github.com/godbus/dbus/v5"
	"github.com/linuxdeepin/dde-display-pm/common/dconfig"
	"github.com/linuxdeepin/dde-display-pm/loader"
	"github.com/linuxdeepin/dde-display-pm/system/displaypm1/backend"
	"github.com/linuxdeepin/dde-display-pm/system/displaypm1/ctlsock"
	login1 "github.com/linuxdeepin/go-dbus-factory/system/org.freedesktop.login1"
	"github.com/linuxdeepin/go-lib/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

var logger = log.NewLogger("daemon/displaypm")

func init() {
	d := NewDaemon(logger)
	loader.Register(d)
	loader.Register(newInputDaemon(d))
}

type Daemon struct {
	*loader.ModuleBase

	loop     *Loop
	pm       *PowerManager
	manager  *Manager
	store    *dconfig.DConfig
	settings *settings
	server   *ctlsock.Server

	nameOwned bool
	inhibitFd dbus.UnixFD
	cancel    context.CancelFunc
	group     *errgroup.Group
}

func NewDaemon(logger *log.Logger) *Daemon {
	daemon := new(Daemon)
	daemon.ModuleBase = loader.NewModuleBase("displaypm", daemon, logger)
	daemon.inhibitFd = -1
	return daemon
}

func (d *Daemon) GetDependencies() []string {
	return []string{}
}

func (d *Daemon) Start() (err error) {
	cfg, err := LoadConfig(configFile, os.Getenv)
	if err != nil {
		logger.Warning(err)
	}

	bk, err := backend.NewSysfs(backend.Options{
		SysfsRoot:       backend.DefaultSysfsRoot,
		Controller:      cfg.Backlight,
		PreSuspendNode:  cfg.PreSuspendNode,
		InputWakeupIRQs: cfg.InputWakeupIRQs,
	})
	if err != nil {
		return err
	}
	if !bk.CanSuspend() {
		logger.Warning("kernel can not suspend to ram, sleep will wake at once")
	}

	service := loader.GetService()
	d.loop = NewLoop(64)
	defer func() {
		if err != nil {
			// the loader does not stop a module that failed to start
			_ = d.Stop()
		}
	}()

	var mirror StateMirror
	d.store, err = dconfig.NewDConfigWithConn(service.Conn(), dsettingsAppID, dsettingsDisplayPM, "")
	if err != nil {
		logger.Warning("config store unavailable:", err)
		d.store = nil
	} else {
		mirror = d.store
	}

	d.pm = NewPowerManager(bk, d.loop, mirror, cfg)
	if d.store != nil {
		d.settings = newSettings(d.store, d.pm, d.loop.Post)
		d.settings.load()
		d.settings.connect()
	}

	d.manager = newManager(service, d.loop, d.pm)
	err = service.Export(dbusPath, d.manager)
	if err != nil {
		return err
	}
	err = service.RequestName(dbusServiceName)
	if err != nil {
		return err
	}
	d.nameOwned = true

	d.server, err = ctlsock.Listen(cfg.SocketPath, d.handleRecord)
	if err != nil {
		return err
	}

	var ctx context.Context
	ctx, d.cancel = context.WithCancel(context.Background())
	d.group, ctx = errgroup.WithContext(ctx)
	d.group.Go(func() error {
		d.loop.Run()
		return nil
	})
	d.group.Go(func() error {
		return d.server.Serve(ctx)
	})
	d.loop.Post(d.pm.Start)

	d.inhibitIdle(service.Conn())
	return nil
}

func (d *Daemon) handleRecord(rec ctlsock.Record) int32 {
	return d.manager.handleRecord(ControlMessage{
		PID:       rec.PID,
		Command:   rec.Command,
		TimeoutMS: rec.TimeoutMS,
	})
}

// inhibitIdle keeps logind from running its own idle action.
func (d *Daemon) inhibitIdle(conn *dbus.Conn) {
	m := login1.NewManager(conn)
	fd, err := m.Inhibit(0, "idle", dbusServiceName,
		"Display power is managed by dde-display-pm", "block")
	if err != nil {
		logger.Warning("failed to inhibit idle:", err)
		return
	}
	d.inhibitFd = fd
}

// Stop also unwinds a partially started daemon.
func (d *Daemon) Stop() error {
	if d.loop == nil {
		return nil
	}
	service := loader.GetService()

	if d.inhibitFd != -1 {
		err := unix.Close(int(d.inhibitFd))
		if err != nil {
			logger.Warning(err)
		}
		d.inhibitFd = -1
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.pm != nil {
		// the loop may sit in a wakeup count read
		d.pm.DisarmSuspendGuard()
		if d.group != nil {
			d.loop.Call(d.pm.Destroy)
		} else {
			d.pm.Destroy()
		}
	}
	d.loop.Stop()
	if d.server != nil {
		err := d.server.Close()
		if err != nil {
			logger.Warning(err)
		}
		d.server = nil
	}
	if d.group != nil {
		err := d.group.Wait()
		if err != nil {
			logger.Warning(err)
		}
		d.group = nil
	}

	if d.store != nil {
		d.store.Destroy()
		d.store = nil
	}
	if d.nameOwned {
		err := service.ReleaseName(dbusServiceName)
		if err != nil {
			logger.Warning(err)
		}
		d.nameOwned = false
	}
	if d.manager != nil {
		err := service.StopExport(d.manager)
		if err != nil {
			logger.Warning(err)
		}
		d.manager = nil
	}
	d.settings = nil
	d.loop = nil
	d.pm = nil
	return nil
}
