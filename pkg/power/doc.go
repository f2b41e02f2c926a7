// Package power implements the power state machine and the power control.
//
// The machine has five states. Unknown is the only initial state; PowerOn
// and PowerOff are stable; Warming and Cooling are transient states used by
// hardware with delayed response (see Sequenced).
//
// PowerOn and PowerOff run an optional pre-hook that decides when the final
// hardware action runs; the Bypass variants skip the hook. SetState is the
// only mutator of the state and raises StateChanged once per transition.
package power
