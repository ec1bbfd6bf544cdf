package filter

import (
	"testing"

	"inventory-view-sync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewState_Defaults(t *testing.T) {
	s := NewState()

	assert.Equal(t, KindItemName, s.Kind())
	assert.False(t, s.Committed())
	assert.False(t, s.HasActiveFilter())
	assert.Equal(t, "", s.Query().Key())
}

func TestState_DraftNeverChangesQuery(t *testing.T) {
	s := NewState()

	s.SetDraftText("bol")
	s.SetDraftText("bolt")

	assert.Equal(t, "", s.Query().Key())
	assert.False(t, s.HasActiveFilter(), "typing alone must not enable Reset")
	assert.Equal(t, "bolt", s.Draft().Text)
}

func TestState_CommitNonEmpty(t *testing.T) {
	s := NewState()
	s.SetDraftText("  bolt  ")
	s.CommitDraft()

	assert.True(t, s.Committed())
	assert.True(t, s.HasActiveFilter())
	assert.Equal(t, Value{Kind: KindItemName, Text: "bolt"}, s.Query())
}

func TestState_CommitWhitespaceIsNotCommitted(t *testing.T) {
	s := NewState()
	s.Commit(Value{Kind: KindItemName, Text: "   "})

	assert.False(t, s.Committed())
	assert.False(t, s.HasActiveFilter())
	assert.Equal(t, "", s.Query().Key())
}

func TestState_WarehouseSet(t *testing.T) {
	s := NewState()
	s.SetFilterKind(KindWarehouseSet)

	assert.True(t, s.SearchDisabled(), "search is disabled with no warehouse selected")

	s.SetDraftWarehouses([]models.WarehouseID{"9", "3", "9"})
	assert.False(t, s.SearchDisabled())
	assert.Equal(t, "", s.Query().Key())

	s.CommitDraft()
	require.True(t, s.Committed())
	assert.Equal(t, []models.WarehouseID{"3", "9"}, s.Query().Warehouses)
	assert.Equal(t, "WAREHOUSE_SET:3,9", s.Query().Key())
}

func TestState_SetFilterKindClearsCommit(t *testing.T) {
	s := NewState()
	s.Commit(Value{Kind: KindItemName, Text: "bolt"})

	s.SetFilterKind(KindWarehouseSet)

	assert.Equal(t, KindWarehouseSet, s.Kind())
	assert.False(t, s.Committed())
	assert.Equal(t, "", s.Query().Key())
	assert.True(t, s.Draft().IsEmpty())
}

func TestState_CommitSwitchesKind(t *testing.T) {
	s := NewState()
	s.Commit(Value{Kind: KindWarehouseSet, Warehouses: []models.WarehouseID{"1"}})

	assert.Equal(t, KindWarehouseSet, s.Kind())
	assert.Equal(t, "WAREHOUSE_SET:1", s.Query().Key())
}

func TestState_Reset(t *testing.T) {
	s := NewState()
	s.Commit(Value{Kind: KindWarehouseSet, Warehouses: []models.WarehouseID{"1"}})

	s.Reset()

	assert.Equal(t, KindItemName, s.Kind())
	assert.False(t, s.Committed())
	assert.Equal(t, "", s.Query().Key())
}

func TestValue_KeyTreatsEmptyAsNeutral(t *testing.T) {
	assert.Equal(t, Empty(KindItemName).Key(), Empty(KindWarehouseSet).Key())
	assert.Equal(t, "", Value{Kind: KindWarehouseSet, Warehouses: []models.WarehouseID{" "}}.Key())
	assert.Equal(t,
		Value{Kind: KindWarehouseSet, Warehouses: []models.WarehouseID{"2", "1"}}.Key(),
		Value{Kind: KindWarehouseSet, Warehouses: []models.WarehouseID{"1", "2", "1"}}.Key())
}

func TestParseKind(t *testing.T) {
	kind, err := ParseKind("warehouse_set")
	require.NoError(t, err)
	assert.Equal(t, KindWarehouseSet, kind)

	_, err = ParseKind("category")
	assert.Error(t, err)
}
