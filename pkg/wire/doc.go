// Package wire defines the CBOR frame format for command trees.
//
// A Frame carries either a command tree or a result tree. Frames use CBOR
// (RFC 8949) with integer map keys and canonical key ordering, so equal
// frames encode to equal bytes. Node-group keys are encoded as bare CBOR
// integers or text strings.
//
// # Frame layout
//
//	{
//	  1: kind,      // uint8: 1=command, 2=result
//	  2: seq,       // uint32: result seq echoes its command
//	  3: command,   // command tree (kind 1)
//	  4: result     // result tree (kind 2)
//	}
//
// # Dynamic values
//
// Property values, event payloads and method arguments are untyped. After
// decoding, non-negative integers arrive as uint64, negative integers as
// int64 and arrays as []any; use the cmdtree value helpers to coerce them.
package wire
