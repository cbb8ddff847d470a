package resolver

import (
	"maps"

	"github.com/ssogunle-tc/datahub/pkg/mquery/tree"
)

// IdentifierAccessor is one frame of an accessor chain: the item selector
// applied to Identifier, e.g. Source{[Schema="dbo",Item="book"]}.
//
// Frames are prepended while walking from the output variable toward the
// data-access call, so the head of a chain is the selector applied closest
// to the call and Next leads toward the output variable.
type IdentifierAccessor struct {
	Identifier string
	Items      map[string]string
	Next       *IdentifierAccessor
}

// prepend returns a new head frame in front of chain. chain is shared, not
// copied; frames are never mutated during resolution.
func prepend(chain *IdentifierAccessor, identifier string, items map[string]string) *IdentifierAccessor {
	return &IdentifierAccessor{Identifier: identifier, Items: items, Next: chain}
}

// Clone returns a deep copy of the chain starting at a.
func (a *IdentifierAccessor) Clone() *IdentifierAccessor {
	if a == nil {
		return nil
	}
	head := &IdentifierAccessor{Identifier: a.Identifier, Items: maps.Clone(a.Items)}
	tail := head
	for src := a.Next; src != nil; src = src.Next {
		tail.Next = &IdentifierAccessor{Identifier: src.Identifier, Items: maps.Clone(src.Items)}
		tail = tail.Next
	}
	return head
}

// Len returns the number of frames in the chain.
func (a *IdentifierAccessor) Len() int {
	n := 0
	for f := a; f != nil; f = f.Next {
		n++
	}
	return n
}

// At returns the i-th frame from the head, or nil.
func (a *IdentifierAccessor) At(i int) *IdentifierAccessor {
	f := a
	for ; f != nil && i > 0; i-- {
		f = f.Next
	}
	return f
}

// Item returns the value of key in this frame; a nil frame has no items.
func (a *IdentifierAccessor) Item(key string) (string, bool) {
	if a == nil {
		return "", false
	}
	v, ok := a.Items[key]
	return v, ok
}

// DataAccessFunctionDetail is one invocation of a recognized data-access
// function together with the accessor chain leading to it.
type DataAccessFunctionDetail struct {
	DataAccessFunctionName string
	ArgList                *tree.Branch
	IdentifierAccessor     *IdentifierAccessor
}
