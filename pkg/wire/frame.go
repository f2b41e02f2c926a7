package wire

import (
	"errors"
	"fmt"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/cmdtree"
)

// ErrInvalidFrame is returned for frames whose kind and payload disagree.
var ErrInvalidFrame = errors.New("invalid frame")

// CBOR map keys for frame encoding.
const (
	KeyKind    = 1
	KeySeq     = 2
	KeyCommand = 3
	KeyResult  = 4
)

// FrameKind tells which tree a frame carries.
type FrameKind uint8

const (
	// KindCommand carries a command tree.
	KindCommand FrameKind = 1

	// KindResult carries a result tree.
	KindResult FrameKind = 2
)

// String returns the kind name.
func (k FrameKind) String() string {
	switch k {
	case KindCommand:
		return "COMMAND"
	case KindResult:
		return "RESULT"
	default:
		return "UNKNOWN"
	}
}

// IsValid reports whether k is a known kind.
func (k FrameKind) IsValid() bool {
	return k == KindCommand || k == KindResult
}

// Frame is one encoded unit on a transport.
type Frame struct {
	Kind    FrameKind            `cbor:"1,keyasint"`
	Seq     uint32               `cbor:"2,keyasint,omitempty"`
	Command *cmdtree.CommandNode `cbor:"3,keyasint,omitempty"`
	Result  *cmdtree.ResultNode  `cbor:"4,keyasint,omitempty"`
}

// NewCommandFrame wraps cmd.
func NewCommandFrame(seq uint32, cmd *cmdtree.CommandNode) *Frame {
	return &Frame{Kind: KindCommand, Seq: seq, Command: cmd}
}

// NewResultFrame wraps res as the reply to the command with seq.
func NewResultFrame(seq uint32, res *cmdtree.ResultNode) *Frame {
	return &Frame{Kind: KindResult, Seq: seq, Result: res}
}

// Validate checks that the frame carries exactly the tree its kind names.
func (f *Frame) Validate() error {
	switch f.Kind {
	case KindCommand:
		if f.Command == nil || f.Result != nil {
			return fmt.Errorf("%w: command frame needs exactly a command tree", ErrInvalidFrame)
		}
	case KindResult:
		if f.Result == nil || f.Command != nil {
			return fmt.Errorf("%w: result frame needs exactly a result tree", ErrInvalidFrame)
		}
	default:
		return fmt.Errorf("%w: kind %d", ErrInvalidFrame, f.Kind)
	}
	return nil
}

// Summary describes the frame for the protocol log.
func (f *Frame) Summary() string {
	switch f.Kind {
	case KindCommand:
		return fmt.Sprintf("%s #%d %s", f.Kind, f.Seq, cmdtree.SummarizeCommand(f.Command).Path)
	case KindResult:
		return fmt.Sprintf("%s #%d %s", f.Kind, f.Seq, cmdtree.SummarizeResult(f.Result).Path)
	default:
		return f.Kind.String()
	}
}
