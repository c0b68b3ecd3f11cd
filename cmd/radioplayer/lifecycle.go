package main

import "github.com/glebovdev/radioplayer/internal/audio"

// appLifecycle is the part of the engine driven by desktop visibility.
type appLifecycle interface {
	EnterBackground()
	EnterForeground()
}

// sessionInputs are the audio session notifications a desktop can raise.
type sessionInputs interface {
	InterruptionBegan()
	InterruptionEnded(shouldResume bool)
	RouteChanged(reason audio.RouteChangeReason)
}

type lifecycleEvent int

const (
	lifecycleNone lifecycleEvent = iota
	lifecycleBackground
	lifecycleSuspend
	lifecycleResume
	lifecycleRouteChange
)

// dispatchLifecycle forwards a platform event to the engine and the audio session.
func dispatchLifecycle(app appLifecycle, session sessionInputs, ev lifecycleEvent) {
	switch ev {
	case lifecycleBackground:
		app.EnterBackground()
	case lifecycleSuspend:
		session.InterruptionBegan()
	case lifecycleResume:
		session.InterruptionEnded(true)
		app.EnterForeground()
	case lifecycleRouteChange:
		session.RouteChanged(audio.RouteChangeOverride)
	}
}
