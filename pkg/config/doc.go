// Package config turns YAML device files into populated control registries
// and back.
//
// A device file names the device and lists its controls:
//
//	id: 7
//	name: Projector
//	controls:
//	  - id: 1
//	    type: sequenced-power
//	    name: Power
//	    params:
//	      warm-up: 30s
//	      cool-down: 90s
//	  - id: 2
//	    type: volume
//	    name: Volume
//	    params:
//	      min: 0
//	      max: 80
//	      mute: true
//
// Each control type is built by a FactoryFunc. DefaultFactory builds local
// controls; MirrorFactory builds the proxy counterparts for a remote device.
// Extract reverses Apply for every control that implements Describer.
package config
