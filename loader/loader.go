// SPDX-FileCopyrightText: 2018 - 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package loader

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/linuxdeepin/go-lib/dbusutil"
	"github.com/linuxdeepin/go-lib/log"
)

type EnableFlag int

const (
	EnableFlagNone EnableFlag = 1 << iota
	EnableFlagIgnoreMissingModule
)

func (flags EnableFlag) HasFlag(flag EnableFlag) bool {
	return flags&flag != 0
}

const (
	ErrorCircleDependencies int = iota
	ErrorMissingModule
	ErrorInternalError
)

type EnableError struct {
	ModuleName string
	Code       int
	detail     string
}

func (e *EnableError) Error() string {
	switch e.Code {
	case ErrorCircleDependencies:
		return "dependency circle"
	case ErrorMissingModule:
		return fmt.Sprintf("%s is missing", e.ModuleName)
	case ErrorInternalError:
		return fmt.Sprintf("%s started failed: %s", e.ModuleName, e.detail)
	}
	return fmt.Sprintf("%s: unknown enable error %d", e.ModuleName, e.Code)
}

type Loader struct {
	modules Modules
	log     *log.Logger
	lock    sync.Mutex
	service *dbusutil.Service
	started []Module
}

func (l *Loader) SetLogLevel(pri log.Priority) {
	l.log.SetLogLevel(pri)

	l.lock.Lock()
	defer l.lock.Unlock()

	for _, module := range l.modules {
		module.SetLogLevel(pri)
	}
}

func (l *Loader) AddModule(m Module) {
	l.lock.Lock()
	defer l.lock.Unlock()
	name := m.Name()
	_, exist := l.modules[name]
	if exist {
		l.log.Debug("Register", name, "is already registered")
		return
	}
	l.log.Debug("Register module:", name)
	l.modules[name] = m
}

func (l *Loader) List() []Module {
	l.lock.Lock()
	defer l.lock.Unlock()
	modules := make([]Module, 0, len(l.modules))
	for _, m := range l.modules {
		modules = append(modules, m)
	}
	sort.Slice(modules, func(i, j int) bool {
		return modules[i].Name() < modules[j].Name()
	})
	return modules
}

// startOrder returns the modules reachable from names with every
// dependency placed before its dependents.
func (l *Loader) startOrder(names []string, flag EnableFlag) ([]Module, error) {
	const (
		unvisited = iota
		visiting
		visited
	)
	marks := make(map[string]int)
	var order []Module

	var visit func(name string) error
	visit = func(name string) error {
		switch marks[name] {
		case visiting:
			return &EnableError{ModuleName: name, Code: ErrorCircleDependencies}
		case visited:
			return nil
		}
		module, ok := l.modules[name]
		if !ok {
			if flag.HasFlag(EnableFlagIgnoreMissingModule) {
				l.log.Info("no such a module named", name)
				marks[name] = visited
				return nil
			}
			return &EnableError{ModuleName: name, Code: ErrorMissingModule}
		}
		marks[name] = visiting
		for _, dep := range module.GetDependencies() {
			if err := visit(dep); err != nil {
				return err
			}
		}
		marks[name] = visited
		order = append(order, module)
		return nil
	}

	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	for _, name := range sorted {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func (l *Loader) EnableModules(enablingModules []string, flag EnableFlag) error {
	l.lock.Lock()
	defer l.lock.Unlock()

	startTime := time.Now()
	order, err := l.startOrder(enablingModules, flag)
	if err != nil {
		return err
	}

	for _, module := range order {
		if module.IsEnable() {
			continue
		}
		name := module.Name()
		l.log.Info("enable module", name)
		begin := time.Now()
		err := module.Enable(true)
		if err != nil {
			l.log.Errorf("enable module %s failed: %s, cost %s", name, err, time.Since(begin))
			return &EnableError{ModuleName: name, Code: ErrorInternalError, detail: err.Error()}
		}
		l.started = append(l.started, module)
		l.log.Infof("enable module %s done cost %s", name, time.Since(begin))
	}

	l.log.Infof("enable modules done, cost add up to %s", time.Since(startTime))
	return nil
}

// DisableAll stops the started modules in reverse start order.
func (l *Loader) DisableAll() {
	l.lock.Lock()
	defer l.lock.Unlock()
	for i := len(l.started) - 1; i >= 0; i-- {
		module := l.started[i]
		err := module.Enable(false)
		if err != nil {
			l.log.Warningf("disable module %s failed: %v", module.Name(), err)
		}
	}
	l.started = nil
}
