// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package displaypm

import (
	"time"

	"github.com/linuxdeepin/dde-display-pm/common/dconfig"
)

// Store is the persistent key-value configuration store.
type Store interface {
	GetValueInt(key string) (int, error)
	GetValueBool(key string) (bool, error)
	SetValue(key string, value interface{}) error
	ConnectConfigChanged(key string, cb func(interface{}))
}

// settings keeps the store values that shape the idle timeouts. Store
// callbacks are posted to the loop before they touch the manager.
type settings struct {
	store Store
	pm    *PowerManager
	post  func(fn func()) bool

	displayTimeout time.Duration
	lockScreen     bool
	powerSaving    bool
}

func newSettings(store Store, pm *PowerManager, post func(fn func()) bool) *settings {
	return &settings{
		store:          store,
		pm:             pm,
		post:           post,
		displayTimeout: pm.Timeout(StateNormal),
	}
}

// load reads the store over the current timeouts, keys missing from the
// store keep the values from the file and the environment.
func (s *settings) load() {
	if v, err := s.store.GetValueInt(dsettingsDisplayTime); err == nil && v >= 0 {
		s.displayTimeout = time.Duration(v) * time.Second
	} else if err != nil {
		logger.Debug("displayTimeout:", err)
	}
	for _, key := range []string{dsettingsDimTime, dsettingsOffTime} {
		v, err := s.store.GetValueInt(key)
		if err != nil {
			logger.Debugf("%s: %v", key, err)
			continue
		}
		s.setStateTimeout(key, v)
	}
	if v, err := s.store.GetValueBool(dsettingsLockScreen); err == nil {
		s.lockScreen = v
	}
	if v, err := s.store.GetValueBool(dsettingsPowerSaving); err == nil {
		s.powerSaving = v
	}
	s.applyNormalTimeout()
}

func (s *settings) connect() {
	s.store.ConnectConfigChanged(dsettingsDisplayTime, func(value interface{}) {
		v, err := dconfig.ToInt(value)
		if err != nil || v < 0 {
			logger.Warning("invalid displayTimeout:", value)
			return
		}
		s.post(func() {
			s.displayTimeout = time.Duration(v) * time.Second
			s.applyNormalTimeout()
		})
	})
	for _, key := range []string{dsettingsDimTime, dsettingsOffTime} {
		key := key
		s.store.ConnectConfigChanged(key, func(value interface{}) {
			v, err := dconfig.ToInt(value)
			if err != nil {
				logger.Warningf("invalid %s: %v", key, err)
				return
			}
			s.post(func() {
				s.setStateTimeout(key, v)
			})
		})
	}
	s.store.ConnectConfigChanged(dsettingsLockScreen, func(value interface{}) {
		v, ok := value.(bool)
		if !ok {
			return
		}
		s.post(func() {
			s.lockScreen = v
			s.applyNormalTimeout()
		})
	})
	s.store.ConnectConfigChanged(dsettingsPowerSaving, func(value interface{}) {
		v, ok := value.(bool)
		if !ok {
			return
		}
		s.post(func() {
			s.powerSaving = v
			s.applyNormalTimeout()
		})
	})
}

func (s *settings) setStateTimeout(key string, seconds int) {
	state := StateDim
	if key == dsettingsOffTime {
		state = StateOff
	}
	err := s.pm.SetTimeout(state, time.Duration(seconds)*time.Second)
	if err != nil {
		logger.Warning(err)
	}
}

func (s *settings) applyNormalTimeout() {
	err := s.pm.SetTimeout(StateNormal, s.effectiveNormalTimeout())
	if err != nil {
		logger.Warning(err)
	}
}

// effectiveNormalTimeout caps the display timeout while the lock screen
// is shown or power saving is on, a zero timeout is capped too.
func (s *settings) effectiveNormalTimeout() time.Duration {
	d := s.displayTimeout
	limit := func(ceiling time.Duration) {
		if d == 0 || d > ceiling {
			d = ceiling
		}
	}
	if s.powerSaving {
		limit(powerSavingTimeout)
	}
	if s.lockScreen {
		limit(lockScreenTimeout)
	}
	return d
}
