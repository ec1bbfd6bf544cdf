package filter

import (
	"fmt"
	"sort"
	"strings"

	"inventory-view-sync/internal/models"
)

// Kind is the dimension a search filters on
type Kind string

const (
	KindItemName     Kind = "ITEM_NAME"
	KindWarehouseSet Kind = "WAREHOUSE_SET"
)

// ParseKind validates a kind received from the presentation layer
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToUpper(strings.TrimSpace(s))) {
	case KindItemName:
		return KindItemName, nil
	case KindWarehouseSet:
		return KindWarehouseSet, nil
	default:
		return "", fmt.Errorf("unknown filter kind %q", s)
	}
}

// Value is a filter value of either kind. Text is used for KindItemName,
// Warehouses for KindWarehouseSet.
type Value struct {
	Kind       Kind                 `json:"kind"`
	Text       string               `json:"text,omitempty"`
	Warehouses []models.WarehouseID `json:"warehouses,omitempty"`
}

// Empty returns the neutral value of a kind
func Empty(kind Kind) Value {
	return Value{Kind: kind}
}

// Normalize trims text, dedupes and sorts the warehouse set and drops the
// field the kind does not use
func (v Value) Normalize() Value {
	out := Value{Kind: v.Kind}
	switch v.Kind {
	case KindWarehouseSet:
		seen := make(map[models.WarehouseID]struct{}, len(v.Warehouses))
		for _, id := range v.Warehouses {
			id = models.WarehouseID(strings.TrimSpace(string(id)))
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out.Warehouses = append(out.Warehouses, id)
		}
		sort.Slice(out.Warehouses, func(i, j int) bool { return out.Warehouses[i] < out.Warehouses[j] })
	default:
		out.Kind = KindItemName
		out.Text = strings.TrimSpace(v.Text)
	}
	return out
}

// IsEmpty reports whether the value filters nothing
func (v Value) IsEmpty() bool {
	n := v.Normalize()
	return n.Text == "" && len(n.Warehouses) == 0
}

// Key is a canonical string used to compare values
func (v Value) Key() string {
	n := v.Normalize()
	if n.blank() {
		return ""
	}
	if n.Kind == KindWarehouseSet {
		ids := make([]string, len(n.Warehouses))
		for i, id := range n.Warehouses {
			ids[i] = string(id)
		}
		return string(n.Kind) + ":" + strings.Join(ids, ",")
	}
	return string(n.Kind) + ":" + n.Text
}

// blank is IsEmpty for an already normalized value
func (v Value) blank() bool {
	return v.Text == "" && len(v.Warehouses) == 0
}

// State holds the active search dimension, the draft the user is editing and
// the committed value that drives queries. It is not safe for concurrent use;
// the owning view serializes access.
type State struct {
	kind      Kind
	draft     Value
	value     Value
	committed bool
}

// NewState returns the mount-time default: item name, empty, uncommitted
func NewState() *State {
	return &State{
		kind:  KindItemName,
		draft: Empty(KindItemName),
		value: Empty(KindItemName),
	}
}

// Kind returns the active search dimension
func (s *State) Kind() Kind {
	return s.kind
}

// Draft returns the provisional input
func (s *State) Draft() Value {
	return s.draft
}

// Committed reports whether the user confirmed a non-empty search
func (s *State) Committed() bool {
	return s.committed
}

// SetFilterKind switches dimension, discarding the draft and the committed value
func (s *State) SetFilterKind(kind Kind) {
	s.kind = kind
	s.draft = Empty(kind)
	s.value = Empty(kind)
	s.committed = false
}

// SetDraftText records keystrokes; it never affects Query
func (s *State) SetDraftText(text string) {
	if s.kind != KindItemName {
		return
	}
	s.draft = Value{Kind: KindItemName, Text: text}
}

// SetDraftWarehouses records a selection change; it never affects Query
func (s *State) SetDraftWarehouses(ids []models.WarehouseID) {
	if s.kind != KindWarehouseSet {
		return
	}
	s.draft = Value{Kind: KindWarehouseSet, Warehouses: append([]models.WarehouseID(nil), ids...)}
}

// Commit promotes value to the active query. The committed flag is set only
// for a non-empty value.
func (s *State) Commit(value Value) {
	value = value.Normalize()
	if value.Kind != s.kind {
		s.kind = value.Kind
	}
	s.draft = value
	s.value = value
	s.committed = !value.blank()
}

// CommitDraft commits whatever the user has typed or selected
func (s *State) CommitDraft() {
	s.Commit(s.draft)
}

// Reset restores the mount-time default
func (s *State) Reset() {
	s.kind = KindItemName
	s.draft = Empty(KindItemName)
	s.value = Empty(KindItemName)
	s.committed = false
}

// Query returns the value used to build API parameters
func (s *State) Query() Value {
	if !s.committed {
		return Empty(s.kind)
	}
	return s.value
}

// HasActiveFilter enables the Reset affordance
func (s *State) HasActiveFilter() bool {
	return s.committed && !s.value.blank()
}

// SearchDisabled reports whether the Search control should be disabled
func (s *State) SearchDisabled() bool {
	return s.kind == KindWarehouseSet && s.draft.IsEmpty()
}
