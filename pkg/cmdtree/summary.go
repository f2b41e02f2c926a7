package cmdtree

import (
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/log"
)

// SummarizeCommand describes cmd for the protocol log. The path follows
// single-entry node-groups down from the root until a node carries members
// or branches.
func SummarizeCommand(cmd *CommandNode) *log.MessageEvent {
	var path Path
	node := cmd
	for node != nil && !node.HasMembers() && len(node.Groups) == 1 && len(node.Groups[0].Entries) == 1 {
		e := node.Groups[0].Entries[0]
		path = append(path, Segment{Group: node.Groups[0].Name, Key: e.Key})
		node = e.Node
	}

	msg := &log.MessageEvent{Type: log.MessageTypeCommand, Path: path.String()}
	if node == nil {
		return msg
	}
	for _, p := range node.Properties {
		msg.Properties = append(msg.Properties, p.Name+":"+p.Op.String())
	}
	for _, e := range node.Events {
		msg.Events = append(msg.Events, e.Name+":"+e.Op.String())
	}
	for _, m := range node.Methods {
		msg.Methods = append(msg.Methods, m.Name)
	}
	for _, g := range node.Groups {
		for _, e := range g.Entries {
			msg.Groups = append(msg.Groups, Segment{Group: g.Name, Key: e.Key}.String())
		}
	}
	return msg
}

// SummarizeResult describes res for the protocol log.
func SummarizeResult(res *ResultNode) *log.MessageEvent {
	var path Path
	node := res
	for node != nil && !node.HasMembers() && len(node.Groups) == 1 && len(node.Groups[0].Entries) == 1 {
		e := node.Groups[0].Entries[0]
		path = append(path, Segment{Group: node.Groups[0].Name, Key: e.Key})
		node = e.Node
	}

	msg := &log.MessageEvent{Type: log.MessageTypeResult, Path: path.String()}
	if node == nil {
		return msg
	}
	for _, p := range node.Properties {
		msg.Properties = append(msg.Properties, p.Name)
	}
	for _, e := range node.Events {
		msg.Events = append(msg.Events, e.Name)
	}
	for _, m := range node.Methods {
		msg.Methods = append(msg.Methods, m.Name)
	}
	for _, g := range node.Groups {
		for _, e := range g.Entries {
			msg.Groups = append(msg.Groups, Segment{Group: g.Name, Key: e.Key}.String())
		}
	}
	return msg
}
