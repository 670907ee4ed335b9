// Package scenario loads, canonicalizes and generates CDC scenarios.
//
// # Scenario Format
//
// Scenarios are YAML (or JSON, which YAML accepts) documents:
//
//	id: order-lifecycle
//	tables: [orders]            # optional; restricts recognised tables
//	ops:
//	  - t: 0
//	    op: insert
//	    table: orders
//	    pk: { id: R-1 }
//	    after: { status: pending }
//	  - t: 90
//	    op: delete
//	    table: orders
//	    pk: { id: R-1 }
//
// # Error Handling
//
// Two classes of problems are distinguished:
//
//   - Configuration errors (missing ops, non-integer or negative t, an
//     undecodable document) fail the whole load with an ir.ConfigError.
//   - Malformed operations (missing table or pk.id, unknown op, unknown
//     table, float column values) are skipped with a Warning so a single bad
//     operation does not invalidate an otherwise valid scenario.
//
// # Canonical Order
//
// Producers need not sort ops. Canonicalize sorts them stably by t; ops
// sharing a t keep document order. The canonical log is what every capture
// engine and the verifier observe.
package scenario
