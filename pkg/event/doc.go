// Package event provides the observer lists used by controls, devices and
// protocol nodes to publish change notifications.
//
// A Source is a typed list of handlers. Subscribing returns a Handle that is
// later passed to Unsubscribe. Raise copies the handler list under the lock
// and invokes the handlers after releasing it, so a handler may subscribe,
// unsubscribe or raise again without deadlocking:
//
//	var changed event.Source[float64]
//	h := changed.Subscribe(func(v float64) { fmt.Println("volume", v) })
//	changed.Raise(0.5)
//	changed.Unsubscribe(h)
//
// The zero value of Source is ready to use.
package event
