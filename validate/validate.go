// Package validate checks arbitrary byte streams against the structural
// rules of the pickle format by replaying them through the category-level
// machine simulation.
package validate

import (
	"errors"
	"fmt"

	"github.com/chazu/brine/pickle"
	"github.com/chazu/brine/pvm"
)

// Kind identifies which structural rule a stream breaks.
type Kind int

const (
	KindTruncated         Kind = iota // argument runs past the end of the stream
	KindIllegalOpcode                 // unknown tag, or tag outside the protocol's set
	KindGatedOpcode                   // extension or buffer opcode without the feature enabled
	KindUnmatchedMark                 // MARK-consuming opcode with no MARK, or MARK left at STOP
	KindStackUnderflow                // opcode pops more values than the stack holds
	KindBadOperand                    // operand category mismatch, or odd key/value count
	KindUnknownMemo                   // GET of a memo slot never populated
	KindNonSingletonStack             // STOP with more or fewer than one value
	KindMissingStop                   // stream ends without STOP
	KindTrailingData                  // bytes after STOP
	KindFrameLength                   // FRAME length disagrees with the framed span
)

var kindNames = [...]string{
	KindTruncated:         "truncated",
	KindIllegalOpcode:     "illegal opcode",
	KindGatedOpcode:       "gated opcode",
	KindUnmatchedMark:     "unmatched mark",
	KindStackUnderflow:    "stack underflow",
	KindBadOperand:        "bad operand",
	KindUnknownMemo:       "unknown memo index",
	KindNonSingletonStack: "non-singleton stack at stop",
	KindMissingStop:       "missing stop",
	KindTrailingData:      "trailing data",
	KindFrameLength:       "frame length mismatch",
}

// String implements the Stringer interface.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// Violation pinpoints the first rule a stream breaks.
type Violation struct {
	Kind   Kind
	Offset int
	Detail string
}

// Error implements the error interface so a Violation can flow through
// error-returning call chains.
func (v *Violation) Error() string {
	if v.Detail != "" {
		return fmt.Sprintf("validate: %s at offset %d: %s", v.Kind, v.Offset, v.Detail)
	}
	return fmt.Sprintf("validate: %s at offset %d", v.Kind, v.Offset)
}

// Options configures validation.
type Options struct {
	// Protocol forces a protocol version for the legality check. When
	// negative, the version comes from a leading PROTO opcode; streams
	// without one get no version gating.
	Protocol int
	// AllowExt permits the EXT1/EXT2/EXT4 opcodes.
	AllowExt bool
	// AllowBuffers permits the protocol 5 out-of-band buffer opcodes.
	AllowBuffers bool
}

// DefaultOptions validates with version inference and all features gated off.
func DefaultOptions() Options {
	return Options{Protocol: -1}
}

// Stream checks a byte stream and returns the first violation found,
// or nil when the stream is structurally valid.
func Stream(data []byte, opts Options) *Violation {
	instrs, err := pickle.Scan(data)
	if err != nil {
		var scanErr *pickle.ScanError
		if errors.As(err, &scanErr) {
			if scanErr.Unknown {
				return &Violation{Kind: KindIllegalOpcode, Offset: scanErr.Offset,
					Detail: fmt.Sprintf("unknown tag 0x%02x", data[scanErr.Offset])}
			}
			return &Violation{Kind: KindTruncated, Offset: scanErr.Offset,
				Detail: fmt.Sprintf("%s argument runs past end of stream", scanErr.Op)}
		}
		return &Violation{Kind: KindTruncated, Offset: 0, Detail: err.Error()}
	}

	gate, version := gating(instrs, opts)
	state := pvm.New(version)

	stopped := false
	for i, in := range instrs {
		if stopped {
			return &Violation{Kind: KindTrailingData, Offset: in.Pos}
		}
		if v := checkLegality(in, gate, version, opts); v != nil {
			return v
		}
		if in.Op == pickle.OpFrame {
			if v := checkFrame(in, instrs[i+1:], len(data)); v != nil {
				return v
			}
		}
		if in.Op == pickle.OpStop {
			if state.Stack.HasMark() {
				return &Violation{Kind: KindUnmatchedMark, Offset: in.Pos,
					Detail: "mark still open at STOP"}
			}
			if n := state.Stack.Len(); n != 1 {
				return &Violation{Kind: KindNonSingletonStack, Offset: in.Pos,
					Detail: fmt.Sprintf("stack holds %d values", n)}
			}
			stopped = true
		}
		if err := state.Apply(in.Op, in.Arg); err != nil {
			return applyViolation(in, err)
		}
	}
	if !stopped {
		return &Violation{Kind: KindMissingStop, Offset: len(data)}
	}
	return nil
}

// gating decides whether version gating applies and at which version.
func gating(instrs []pickle.Instruction, opts Options) (bool, pickle.Version) {
	if opts.Protocol >= 0 {
		v, err := pickle.ParseVersion(opts.Protocol)
		if err != nil {
			return true, pickle.MaxVersion
		}
		return true, v
	}
	if len(instrs) > 0 && instrs[0].Op == pickle.OpProto && len(instrs[0].Arg) == 1 {
		if v, err := pickle.ParseVersion(int(instrs[0].Arg[0])); err == nil {
			return true, v
		}
	}
	// PROTO-less streams carry no version claim to check against.
	return false, pickle.MaxVersion
}

func checkLegality(in pickle.Instruction, gate bool, version pickle.Version, opts Options) *Violation {
	switch in.Op {
	case pickle.OpExt1, pickle.OpExt2, pickle.OpExt4:
		if !opts.AllowExt {
			return &Violation{Kind: KindGatedOpcode, Offset: in.Pos,
				Detail: fmt.Sprintf("%s without extension registry", in.Op)}
		}
	case pickle.OpNextBuffer, pickle.OpReadOnlyBuffer:
		if !opts.AllowBuffers {
			return &Violation{Kind: KindGatedOpcode, Offset: in.Pos,
				Detail: fmt.Sprintf("%s without out-of-band buffers", in.Op)}
		}
	case pickle.OpProto:
		if len(in.Arg) == 1 && int(in.Arg[0]) > int(pickle.MaxVersion) {
			return &Violation{Kind: KindIllegalOpcode, Offset: in.Pos,
				Detail: fmt.Sprintf("PROTO %d out of range", in.Arg[0])}
		}
	}
	if gate && !in.Op.LegalAt(version) {
		return &Violation{Kind: KindIllegalOpcode, Offset: in.Pos,
			Detail: fmt.Sprintf("%s needs a newer protocol than %d", in.Op, int(version))}
	}
	return nil
}

// checkFrame verifies that a FRAME length covers exactly the bytes from
// the end of its header to the next FRAME or the end of the stream.
func checkFrame(in pickle.Instruction, rest []pickle.Instruction, streamLen int) *Violation {
	claimed, ok := in.UintArg()
	if !ok {
		return &Violation{Kind: KindFrameLength, Offset: in.Pos,
			Detail: "unreadable FRAME length"}
	}
	end := streamLen
	for _, next := range rest {
		if next.Op == pickle.OpFrame {
			end = next.Pos
			break
		}
	}
	span := uint64(end - (in.Pos + in.Len()))
	if claimed != span {
		return &Violation{Kind: KindFrameLength, Offset: in.Pos,
			Detail: fmt.Sprintf("claims %d bytes, frame holds %d", claimed, span)}
	}
	return nil
}

func applyViolation(in pickle.Instruction, err error) *Violation {
	kind := KindBadOperand
	switch {
	case errors.Is(err, pvm.ErrNoMark):
		kind = KindUnmatchedMark
	case errors.Is(err, pvm.ErrStackUnderflow):
		kind = KindStackUnderflow
	case errors.Is(err, pvm.ErrUnknownMemoIndex):
		kind = KindUnknownMemo
	}
	return &Violation{Kind: kind, Offset: in.Pos, Detail: err.Error()}
}
