// Package cmdtree synchronizes a local object graph with a remote mirror
// through nested command and result trees.
//
// Every participating object is a Node. On first contact a node is bound
// into the Session's memo table together with its cached Path from the
// root. Bound nodes declare what they want from the remote side (property
// reads, event subscriptions, child node-groups); the declarations of all
// nodes bound in one pass are folded into a single CommandNode and handed
// to the Sender.
//
// Inbound trees are dispatched depth-first. Node-group entries are resolved
// lazily through the parent's GroupResolver; an unknown key or an object
// that is not a Node is logged and that branch is skipped without affecting
// its siblings.
//
// Outbound trees start at a leaf: a node calls Emit on the Emitter it was
// attached with, and each ancestor binding wraps the tree in its node-group
// entry until the root hands it to the Sender:
//
//	root
//	└── Controls[2]
//	    └── VolumeRaw (CHANGED, 42)
package cmdtree
