package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortOperationsIsStable(t *testing.T) {
	ops := []Operation{
		{T: 50, PK: PrimaryKey{ID: "c"}},
		{T: 0, PK: PrimaryKey{ID: "a"}},
		{T: 50, PK: PrimaryKey{ID: "d"}},
		{T: 10, PK: PrimaryKey{ID: "b"}},
		{T: 50, PK: PrimaryKey{ID: "e"}},
	}

	SortOperations(ops)

	var ids []string
	for _, op := range ops {
		ids = append(ids, op.PK.ID)
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids)
}

func TestOperationIsSoftDelete(t *testing.T) {
	hard := Operation{Op: OpDelete}
	soft := Operation{Op: OpDelete, After: IRObject{"deleted": IRBool(true)}}
	update := Operation{Op: OpUpdate, After: IRObject{"deleted": IRBool(true)}}

	assert.False(t, hard.IsSoftDelete())
	assert.True(t, soft.IsSoftDelete())
	assert.False(t, update.IsSoftDelete())
}

func TestCapturedEventCompatible(t *testing.T) {
	insert := Operation{Op: OpInsert}
	update := Operation{Op: OpUpdate}
	del := Operation{Op: OpDelete}

	create := CapturedEvent{Op: EventCreate}
	upd := CapturedEvent{Op: EventUpdate}
	dele := CapturedEvent{Op: EventDelete}

	assert.True(t, create.Compatible(insert))
	assert.True(t, upd.Compatible(insert))
	assert.True(t, create.Compatible(update))
	assert.False(t, dele.Compatible(update))
	assert.True(t, dele.Compatible(del))
	assert.False(t, create.Compatible(del))
}

func TestScenarioKnowsTable(t *testing.T) {
	open := &Scenario{}
	closed := &Scenario{Tables: []string{"orders"}}

	assert.True(t, open.KnowsTable("anything"))
	assert.True(t, closed.KnowsTable("orders"))
	assert.False(t, closed.KnowsTable("customers"))
}

func TestScenarioLastT(t *testing.T) {
	s := &Scenario{Ops: []Operation{{T: 40}, {T: 90}, {T: 10}}}
	assert.Equal(t, int64(90), s.LastT())
	assert.Equal(t, int64(0), (&Scenario{}).LastT())
}

func TestCounts(t *testing.T) {
	ops := []Operation{{Op: OpInsert}, {Op: OpDelete}, {Op: OpDelete}}
	events := []CapturedEvent{{Op: EventCreate}, {Op: EventDelete}}

	assert.Equal(t, 2, CountDeletes(ops))
	assert.Equal(t, 1, CountEvents(events, EventDelete))
	assert.Equal(t, 0, CountEvents(events, EventUpdate))
}

func TestConfigErrorHelpers(t *testing.T) {
	err := NewMissingOptionError("poll_interval_ms")

	assert.True(t, IsConfigError(err))
	assert.Equal(t, ErrCodeMissingOption, ConfigErrorCodeOf(err))
	assert.Equal(t, "MISSING_OPTION: required option is missing (field=poll_interval_ms)", err.Error())
	assert.False(t, IsConfigError(assert.AnError))
}
