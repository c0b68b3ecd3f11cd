//go:build !windows

package main

import (
	"os"
	"os/signal"
	"syscall"
)

// SIGUSR1 tells the player it went to the background (screen locked, session hidden).
// SIGTSTP means another program took the audio output; SIGCONT hands it back.
// SIGUSR2 reports that the desktop switched the output device.
func watchLifecycle(ch chan<- os.Signal) {
	signal.Notify(ch, syscall.SIGUSR1, syscall.SIGUSR2, syscall.SIGTSTP, syscall.SIGCONT)
}

func lifecycleEventFor(sig os.Signal) lifecycleEvent {
	switch sig {
	case syscall.SIGUSR1:
		return lifecycleBackground
	case syscall.SIGTSTP:
		return lifecycleSuspend
	case syscall.SIGCONT:
		return lifecycleResume
	case syscall.SIGUSR2:
		return lifecycleRouteChange
	}
	return lifecycleNone
}

func handleLifecycle(app appLifecycle, session sessionInputs, sig os.Signal) {
	dispatchLifecycle(app, session, lifecycleEventFor(sig))
}
