//go:build !debug

// Package debug provides assertions compiled in only under the "debug" build tag.
// This file supplies the zero-cost stubs used in production builds.
package debug

import (
	"net/http"
	"sync"
)

func Assert(_ bool, _ ...interface{})            {}
func AssertFunc(_ func() bool, _ ...interface{}) {}
func AssertMsg(_ bool, _ string)                 {}
func AssertNoErr(_ error)                        {}
func Assertf(_ bool, _ string, _ ...interface{}) {}
func AssertMutexLocked(_ *sync.Mutex)            {}
func AssertRWMutexLocked(_ *sync.RWMutex)        {}
func Errorln(_ ...interface{})                   {}
func Errorf(_ string, _ ...interface{})          {}
func Func(_ func())                              {}

func Handlers() map[string]http.HandlerFunc { return nil }
