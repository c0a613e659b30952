package models

import (
	"fmt"
	"strings"
	"time"
)

// Operation identifies the kind of pointer gesture that produced a change.
type Operation int

const (
	OperationNone Operation = iota
	OperationDrag
	OperationResizeStart
	OperationResizeEnd
)

func (o Operation) String() string {
	switch o {
	case OperationDrag:
		return "drag"
	case OperationResizeStart:
		return "resize-start"
	case OperationResizeEnd:
		return "resize-end"
	default:
		return "none"
	}
}

// ParseOperation parses the String form of an Operation. "resize-top" and
// "resize-bottom" are accepted as aliases.
func ParseOperation(s string) (Operation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "drag", "move":
		return OperationDrag, nil
	case "resize-start", "resize-top":
		return OperationResizeStart, nil
	case "resize-end", "resize-bottom":
		return OperationResizeEnd, nil
	default:
		return OperationNone, fmt.Errorf("unknown operation %q (valid: drag, resize-start, resize-end)", s)
	}
}

// Patch is a partial update to an event. Only start and end are patchable.
type Patch struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// PatchFromRange builds a patch that moves an event to r.
func PatchFromRange(r Range) Patch {
	start, end := r.Start, r.End
	return Patch{Start: &start, End: &end}
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Start == nil && p.End == nil
}

// Merge returns p with every field set in other taking precedence.
func (p Patch) Merge(other Patch) Patch {
	out := p.Clone()
	if other.Start != nil {
		t := *other.Start
		out.Start = &t
	}
	if other.End != nil {
		t := *other.End
		out.End = &t
	}
	return out
}

// Clone returns a deep copy of the patch.
func (p Patch) Clone() Patch {
	var out Patch
	if p.Start != nil {
		t := *p.Start
		out.Start = &t
	}
	if p.End != nil {
		t := *p.End
		out.End = &t
	}
	return out
}

// Equal compares the set fields of two patches as instants.
func (p Patch) Equal(o Patch) bool {
	return timePtrEqual(p.Start, o.Start) && timePtrEqual(p.End, o.End)
}

// Apply overlays the patch on base and returns the result. base is not modified.
func (p Patch) Apply(base Event) Event {
	out := base.Clone()
	if p.Start != nil {
		out.Start = *p.Start
	}
	if p.End != nil {
		out.End = *p.End
	}
	return out
}

// ApplyRange overlays the patch on a bare range.
func (p Patch) ApplyRange(base Range) Range {
	if p.Start != nil {
		base.Start = *p.Start
	}
	if p.End != nil {
		base.End = *p.End
	}
	return base
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
