package testutil

import (
	"github.com/roach88/cdclab/internal/ir"
)

// ScenarioBuilder assembles scenarios for tests.
//
//	s := testutil.NewScenario("orders-demo").
//		Insert(0, "R-1", ir.IRObject{"status": ir.IRString("pending")}).
//		Delete(90, "R-1").
//		Build()
type ScenarioBuilder struct {
	table string
	s     ir.Scenario
}

// NewScenario starts a scenario whose operations target the "orders" table.
func NewScenario(id string) *ScenarioBuilder {
	return &ScenarioBuilder{table: "orders", s: ir.Scenario{ID: id, Ops: []ir.Operation{}}}
}

// Table switches the table used by subsequent operations.
func (b *ScenarioBuilder) Table(table string) *ScenarioBuilder {
	b.table = table
	return b
}

// Tables restricts the recognised tables.
func (b *ScenarioBuilder) Tables(tables ...string) *ScenarioBuilder {
	b.s.Tables = tables
	return b
}

func (b *ScenarioBuilder) add(t int64, kind ir.OpKind, id string, after ir.IRObject) *ScenarioBuilder {
	b.s.Ops = append(b.s.Ops, ir.Operation{
		T:     t,
		Op:    kind,
		Table: b.table,
		PK:    ir.PrimaryKey{ID: id},
		After: after,
	})
	return b
}

// Insert appends an insert.
func (b *ScenarioBuilder) Insert(t int64, id string, after ir.IRObject) *ScenarioBuilder {
	return b.add(t, ir.OpInsert, id, after)
}

// Update appends an update.
func (b *ScenarioBuilder) Update(t int64, id string, after ir.IRObject) *ScenarioBuilder {
	return b.add(t, ir.OpUpdate, id, after)
}

// Delete appends a hard delete.
func (b *ScenarioBuilder) Delete(t int64, id string) *ScenarioBuilder {
	return b.add(t, ir.OpDelete, id, nil)
}

// SoftDelete appends a delete that leaves the row with column set to true.
func (b *ScenarioBuilder) SoftDelete(t int64, id, column string) *ScenarioBuilder {
	return b.add(t, ir.OpDelete, id, ir.IRObject{column: ir.IRBool(true)})
}

// Build returns the scenario. The builder must not be reused afterwards.
func (b *ScenarioBuilder) Build() *ir.Scenario {
	s := b.s
	return &s
}

// Lifecycle is the reference three-operation scenario: a row inserted as
// pending at 0, updated to done at 50 and hard deleted at 90.
func Lifecycle() *ir.Scenario {
	return NewScenario("order-lifecycle").
		Insert(0, "R-1", ir.IRObject{"status": ir.IRString("pending")}).
		Update(50, "R-1", ir.IRObject{"status": ir.IRString("done")}).
		Delete(90, "R-1").
		Build()
}
