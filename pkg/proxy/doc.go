// Package proxy adapts devices and controls to the command tree.
//
// The originator side wraps real objects: DeviceNode exposes a device and
// resolves its "Controls" node-group through the registry, and
// NewControlNode picks a PowerNode or VolumeNode by capability. Bound
// originator nodes push property changes towards the remote side.
//
// The mirror side holds stand-ins: MirrorDevice is a device whose registry
// holds MirrorPower and MirrorVolume controls. Their state is fed by
// results and pushes; their actions are sent as method calls.
//
// Both sides run a cmdtree.Session over some transport:
//
//	host := cmdtree.NewSession(proxy.NewDeviceNode(dev, nil), conn, cmdtree.Config{})
//	mirror := cmdtree.NewSession(remote, conn, cmdtree.Config{Role: log.RoleMirror})
//	err := mirror.Initialize(ctx)
package proxy
