package wsupervisor

import (
	"bytes"
	"fmt"
)

// StatusKind distinguishes the four variants of Status.
type StatusKind int

const (
	StatusOpening StatusKind = iota
	StatusOpened
	StatusClosing
	StatusClosed
)

func (k StatusKind) String() string {
	switch k {
	case StatusOpening:
		return "opening"
	case StatusOpened:
		return "opened"
	case StatusClosing:
		return "closing"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Status is the supervisor's sum-type state. It is the single source of
// truth driving every side effect (pinger resume/suspend, event dispatch,
// receive-loop start) per spec.md §3.
type Status struct {
	Kind StatusKind

	// Subprotocol is set only when Kind == StatusOpened and the handshake
	// negotiated one.
	Subprotocol string

	// Code/Reason are set only when Kind == StatusClosed.
	Code   CloseCode
	Reason CloseReason
}

// ClosedStatus is the module's initial state: Closed(NormalClosure, nil).
func ClosedStatus() Status {
	return Status{Kind: StatusClosed, Code: NormalClosure}
}

func OpeningStatus() Status {
	return Status{Kind: StatusOpening}
}

func OpenedStatus(subprotocol string) Status {
	return Status{Kind: StatusOpened, Subprotocol: subprotocol}
}

func ClosingStatus() Status {
	return Status{Kind: StatusClosing}
}

func ClosedWith(code CloseCode, reason CloseReason) Status {
	return Status{Kind: StatusClosed, Code: code, Reason: reason}
}

func (s Status) String() string {
	switch s.Kind {
	case StatusOpened:
		if s.Subprotocol != "" {
			return fmt.Sprintf("opened{subprotocol=%s}", s.Subprotocol)
		}
		return "opened"
	case StatusClosed:
		return fmt.Sprintf("closed{code=%s,reason=%v}", s.Code, s.Reason)
	default:
		return s.Kind.String()
	}
}

// Equal reports whether two statuses are the same variant with the same
// payload. Setting status to an Equal value is a documented no-op (spec.md
// §4.1: "Setting status to the same value is a no-op").
func (s Status) Equal(other Status) bool {
	if s.Kind != other.Kind {
		return false
	}
	switch s.Kind {
	case StatusOpened:
		return s.Subprotocol == other.Subprotocol
	case StatusClosed:
		return s.Code == other.Code && reasonEqual(s.Reason, other.Reason)
	default:
		return true
	}
}

// reasonEqual compares two CloseReason values without relying on interface
// equality: ReasonServer carries a []byte payload, and comparing an
// interface holding an uncomparable underlying type panics at runtime.
func reasonEqual(a, b CloseReason) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case ReasonServer:
		bv, ok := b.(ReasonServer)
		return ok && bytes.Equal(av.Payload, bv.Payload)
	case ReasonError:
		bv, ok := b.(ReasonError)
		return ok && av.Code == bv.Code && av.Domain == bv.Domain && av.Cause == bv.Cause
	default:
		return a == b
	}
}
