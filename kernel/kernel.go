// Package kernel implements the parallel match kernel.
//
// One work-item runs per candidate start offset of a window. It walks the
// flat automaton from Start, consuming the code points at the offset and
// onward, and records the offset when the walk reaches Accept. A walk stops
// at Accept, when its state set empties, or when the window is exhausted.
//
// Work-items share the read-only automaton and window buffers and write one
// byte each to disjoint positions of the results buffer.
package kernel

import (
	"encoding/binary"

	"github.com/coregx/oclgrep/automaton"
	"github.com/coregx/oclgrep/device"
)

// MatchKernel is the name of the match kernel in Source.
const MatchKernel = "match"

// Parameters of MatchKernel, in order.
const (
	ArgAutomaton     = iota // buffer: automaton storage
	ArgStates               // uint32: n
	ArgFanOut               // uint32: o
	ArgWindow               // buffer: window code points, UTF-32LE
	ArgLength               // uint32: window length in code points
	ArgCandidates           // buffer: uint32 start offsets, UTF-32LE
	ArgCandidateMode        // uint32: 1 to read start offsets from ArgCandidates
	ArgResults              // buffer: one byte per window position
	numArgs
)

var params = [numArgs]string{
	"automaton", "states", "fanout", "window", "length", "candidates", "candidate_mode", "results",
}

// Matched is the results byte written for a matching start offset.
const Matched = 1

// Source returns the program holding the match kernel.
func Source() device.Source {
	return device.Source{
		Name: "oclgrep",
		Kernels: []device.KernelSpec{{
			Name:    MatchKernel,
			Params:  params[:],
			Func:    match,
			Private: newPrivate,
		}},
	}
}

func newPrivate(args device.Args) any {
	return NewScratch(args.Uint32(ArgStates))
}

func match(wi *device.WorkItem, args device.Args) {
	v := automaton.NewView(args.Buffer(ArgAutomaton), args.Uint32(ArgStates), args.Uint32(ArgFanOut))
	w := Window(args.Buffer(ArgWindow)[:int(args.Uint32(ArgLength))*4])

	start := wi.GlobalID
	if args.Uint32(ArgCandidateMode) != 0 {
		start = int(binary.LittleEndian.Uint32(args.Buffer(ArgCandidates)[wi.GlobalID*4:]))
	}

	results := args.Buffer(ArgResults)
	if Walk(v, w, start, wi.Private.(*Scratch)) {
		results[start] = Matched
	} else {
		results[start] = 0
	}
}
