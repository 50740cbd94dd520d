package exception

import (
	"os"
	"runtime/debug"

	"github.com/mezonai/starnotary/logx"
	"github.com/mezonai/starnotary/monitoring"
)

// SafeGo runs fn in a goroutine and recovers a panic instead of crashing the node.
func SafeGo(name string, fn func()) {
	go func() {
		defer Recover(name)
		fn()
	}()
}

// Recover is deferred by callbacks that run on goroutines owned by someone
// else, such as timer callbacks.
func Recover(name string) {
	if r := recover(); r != nil {
		monitoring.IncreasePanicCount()
		logx.Error("PANIC", "Panic in: ", name, " ", r, " ", string(debug.Stack()))
	}
}

func SafeGoWithPanic(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				monitoring.IncreasePanicCount()
				logx.Error("PANIC", "Panic in: ", name, " ", r, " ", string(debug.Stack()))
				os.Exit(1)
			}
		}()
		fn()
	}()
}
