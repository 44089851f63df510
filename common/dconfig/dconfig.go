// SPDX-FileCopyrightText: 2023 - 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package dconfig is a thin client of org.desktopspec.ConfigManager with
// per-key change callbacks.
package dconfig

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/godbus/dbus/v5"
	DConfigManager "github.com/linuxdeepin/go-dbus-factory/org.desktopspec.ConfigManager"
	"github.com/linuxdeepin/go-lib/dbusutil"
)

var errNotInited = errors.New("dconfig not inited")

type DConfig struct {
	systemConn *dbus.Conn
	dbusPath   dbus.ObjectPath
	manager    DConfigManager.Manager
	sigLoop    *dbusutil.SignalLoop

	configChangedCbMap      map[string]func(interface{})
	configChangedCbMapMutex sync.Mutex
	configChangedOnce       sync.Once
}

func NewDConfigWithConn(conn *dbus.Conn, appid, name, subPath string) (*DConfig, error) {
	dConfig := &DConfig{
		systemConn:         conn,
		configChangedCbMap: make(map[string]func(interface{})),
	}

	var err error
	dConfigManager := DConfigManager.NewConfigManager(conn)
	dConfig.dbusPath, err = dConfigManager.AcquireManager(0, appid, name, subPath)
	if err != nil {
		return nil, err
	}
	dConfig.manager, err = DConfigManager.NewManager(conn, dConfig.dbusPath)
	if err != nil {
		return nil, err
	}
	return dConfig, nil
}

func (dConfig *DConfig) GetValue(key string) (interface{}, error) {
	if dConfig.manager == nil {
		return nil, errNotInited
	}
	v, err := dConfig.manager.Value(0, key)
	if err != nil {
		return nil, err
	}
	return v.Value(), nil
}

func (dConfig *DConfig) GetValueBool(key string) (bool, error) {
	value, err := dConfig.GetValue(key)
	if err != nil {
		return false, err
	}
	v, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("dconfig %s: want bool, got %T", key, value)
	}
	return v, nil
}

func (dConfig *DConfig) GetValueInt(key string) (int, error) {
	value, err := dConfig.GetValue(key)
	if err != nil {
		return 0, err
	}
	v, err := ToInt(value)
	if err != nil {
		return 0, fmt.Errorf("dconfig %s: %w", key, err)
	}
	return v, nil
}

func (dConfig *DConfig) SetValue(key string, value interface{}) error {
	if dConfig.manager == nil {
		return errNotInited
	}
	return dConfig.manager.SetValue(0, key, dbus.MakeVariant(value))
}

// ConnectConfigChanged registers cb for key, replacing a previous one.
// cb runs on the signal loop goroutine with the freshly read value.
func (dConfig *DConfig) ConnectConfigChanged(key string, cb func(interface{})) {
	dConfig.configChangedCbMapMutex.Lock()
	dConfig.configChangedCbMap[key] = cb
	dConfig.configChangedCbMapMutex.Unlock()

	dConfig.configChangedOnce.Do(func() {
		dConfig.sigLoop = dbusutil.NewSignalLoop(dConfig.systemConn, 10)
		dConfig.sigLoop.Start()
		dConfig.manager.InitSignalExt(dConfig.sigLoop, true)

		_, _ = dConfig.manager.ConnectValueChanged(func(key string) {
			dConfig.configChangedCbMapMutex.Lock()
			cb := dConfig.configChangedCbMap[key]
			dConfig.configChangedCbMapMutex.Unlock()
			if cb == nil {
				return
			}
			value, err := dConfig.GetValue(key)
			if err != nil {
				return
			}
			cb(value)
		})
	})
}

func (dConfig *DConfig) Destroy() {
	if dConfig.sigLoop != nil {
		dConfig.manager.RemoveAllHandlers()
		dConfig.sigLoop.Stop()
		dConfig.sigLoop = nil
	}
}

// ToInt normalizes the numeric types a config variant may carry.
func ToInt(value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case uint32:
		return int(v), nil
	case uint64:
		if v > math.MaxInt32 {
			return 0, fmt.Errorf("value %d out of range", v)
		}
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("value %v is not an integer", v)
		}
		return int(v), nil
	}
	return 0, fmt.Errorf("want integer, got %T", value)
}
