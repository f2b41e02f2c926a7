package cmdtree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandMerge(t *testing.T) {
	a := NewCommand("root").GetProperty("Name").Subscribe("OnlineChanged")
	a.AddChild("Controls", IntKey(1), NewCommand("").GetProperty("PowerState"))

	b := NewCommand("").GetProperty("Name", "Online").Call("Ping", 1)
	b.AddChild("Controls", IntKey(1), NewCommand("").Subscribe("PowerStateChanged"))
	b.AddChild("Controls", IntKey(2), NewCommand("").GetProperty("VolumeRaw"))

	a.Merge(b)

	assert.Equal(t, "root", a.Name)
	assert.Equal(t, []PropertyRequest{
		{Name: "Name", Op: PropertyGet},
		{Name: "Online", Op: PropertyGet},
	}, a.Properties)
	assert.Len(t, a.Events, 1)
	assert.Len(t, a.Methods, 1)

	controls := a.Group("Controls")
	require.NotNil(t, controls)
	assert.Equal(t, []Key{IntKey(1), IntKey(2)}, controls.Keys())

	one := a.Child("Controls", IntKey(1))
	require.NotNil(t, one)
	_, ok := one.Property("PowerState")
	assert.True(t, ok)
	_, ok = one.Event("PowerStateChanged")
	assert.True(t, ok)
}

func TestCommandMergeLaterValueWins(t *testing.T) {
	a := NewCommand("").ChangedProperty("VolumeRaw", 10.0).Call("SetMuted", false)
	a.Merge(NewCommand("").ChangedProperty("VolumeRaw", 20.0).Call("SetMuted", true))

	require.Len(t, a.Properties, 1)
	assert.Equal(t, 20.0, a.Properties[0].Value)
	require.Len(t, a.Methods, 1)
	assert.Equal(t, []any{true}, a.Methods[0].Args)

	// Different ops on the same property are kept apart.
	a.Merge(NewCommand("").GetProperty("VolumeRaw"))
	assert.Len(t, a.Properties, 2)
}

func TestCommandCloneIsIndependent(t *testing.T) {
	orig := NewCommand("root")
	orig.AddChild("Controls", IntKey(2), NewCommand("").GetProperty("VolumeRaw"))

	c := orig.Clone()
	c.Child("Controls", IntKey(2)).GetProperty("IsMuted")
	c.AddChild("Controls", IntKey(3), nil)

	assert.Len(t, orig.Child("Controls", IntKey(2)).Properties, 1)
	assert.Nil(t, orig.Child("Controls", IntKey(3)))
	assert.Nil(t, (*CommandNode)(nil).Clone())
}

func TestCommandEmptiness(t *testing.T) {
	var nilNode *CommandNode
	assert.True(t, nilNode.IsEmpty())
	assert.False(t, nilNode.Declares())

	bare := NewCommand("root")
	bare.AddChild("Controls", IntKey(1), nil)
	assert.True(t, bare.IsEmpty(), "bare entries carry no members")
	assert.True(t, bare.Declares(), "bare entries still ask for the child")

	deep := NewCommand("root")
	deep.AddChild("Controls", IntKey(1), NewCommand("").GetProperty("X"))
	assert.False(t, deep.IsEmpty())
}

func TestCommandLocalDropsGroups(t *testing.T) {
	n := NewCommand("x").GetProperty("A")
	n.AddChild("G", StringKey("k"), NewCommand("").GetProperty("B"))

	local := n.Local()
	assert.Equal(t, "x", local.Name)
	assert.Len(t, local.Properties, 1)
	assert.Empty(t, local.Groups)
}

func TestResultMerge(t *testing.T) {
	a := NewResult("root").AddProperty("Name", "old")
	a.AddChild("Controls", IntKey(2), NewResult("").AddProperty("VolumeRaw", 1.0))

	b := NewResult("").AddProperty("Name", "new").AddEvent("OnlineChanged", true)
	b.AddChild("Controls", IntKey(2), NewResult("").AddMethodResult("SetMuted", nil, assert.AnError))

	a.Merge(b)

	p, ok := a.Property("Name")
	require.True(t, ok)
	assert.Equal(t, "new", p.Value)
	assert.Len(t, a.Events, 1)

	two := a.Child("Controls", IntKey(2))
	require.NotNil(t, two)
	m, ok := two.Method("SetMuted")
	require.True(t, ok)
	assert.Equal(t, assert.AnError.Error(), m.Error)
	assert.False(t, a.IsEmpty())
}

func TestOpStrings(t *testing.T) {
	assert.Equal(t, "GET", PropertyGet.String())
	assert.Equal(t, "SET", PropertySet.String())
	assert.Equal(t, "CHANGED", PropertyChanged.String())
	assert.Equal(t, "UNKNOWN", PropertyOp(0).String())
	assert.Equal(t, "SUBSCRIBE", EventSubscribe.String())
	assert.Equal(t, "UNSUBSCRIBE", EventUnsubscribe.String())
	assert.Equal(t, "RAISED", EventRaised.String())
}
