// Package ramp turns a held directional gesture into a timed stream of
// increment/decrement calls against one control.
//
// A hold performs one step immediately. After Config.BeforeRepeat the
// repeat cadence starts and a further step is performed every
// Config.BetweenRepeat until the hold is released:
//
//	r := ramp.NewRepeater(volumeControl, ramp.DefaultConfig())
//	r.Hold(ramp.Up)
//	// ... user keeps the button pressed ...
//	r.Release()
//
// Timers come from a Scheduler. SystemScheduler uses time.AfterFunc;
// ManualScheduler advances a virtual clock and is used by tests.
package ramp
