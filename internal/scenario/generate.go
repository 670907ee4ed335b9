package scenario

import (
	"fmt"
	"math/rand/v2"

	"github.com/roach88/cdclab/internal/ir"
)

// GenConfig controls random scenario generation.
type GenConfig struct {
	Seed  uint64
	ID    string
	Table string

	// Ops is the number of operations to generate.
	Ops int

	// Keys bounds the primary-key space (R-1 .. R-Keys).
	Keys int

	// MaxGapMs is the largest gap between consecutive operations.
	MaxGapMs int64

	// SoftDeletePercent is the share of deletes emitted as soft deletes
	// (a delete carrying an after image with deleted: true).
	SoftDeletePercent int
}

// DefaultGenConfig returns the generator defaults used by property tests.
func DefaultGenConfig(seed uint64) GenConfig {
	return GenConfig{
		Seed:     seed,
		Table:    "orders",
		Ops:      40,
		Keys:     5,
		MaxGapMs: 60,
	}
}

type rowState int

const (
	rowAbsent rowState = iota
	rowLive
	rowSoftDeleted
)

var statuses = []string{"pending", "paid", "shipped", "done", "cancelled"}

// Generate produces a random scenario from a seeded PCG source.
//
// Inserts only target absent keys, updates and deletes only target present
// keys, and t never decreases. A soft-deleted row can only be revived by an
// update carrying deleted: false. Identical configs yield identical scenarios.
func Generate(cfg GenConfig) (*ir.Scenario, error) {
	if cfg.Ops < 0 {
		return nil, fmt.Errorf("ops must be non-negative, got %d", cfg.Ops)
	}
	if cfg.Keys <= 0 {
		return nil, fmt.Errorf("keys must be positive, got %d", cfg.Keys)
	}
	if cfg.MaxGapMs < 0 {
		return nil, fmt.Errorf("max gap must be non-negative, got %d", cfg.MaxGapMs)
	}
	if cfg.SoftDeletePercent < 0 || cfg.SoftDeletePercent > 100 {
		return nil, fmt.Errorf("soft delete percent must be within 0..100, got %d", cfg.SoftDeletePercent)
	}
	if cfg.Table == "" {
		cfg.Table = "orders"
	}
	if cfg.ID == "" {
		cfg.ID = fmt.Sprintf("generated-%d", cfg.Seed)
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	states := make([]rowState, cfg.Keys)

	s := &ir.Scenario{
		ID:     cfg.ID,
		Tables: []string{cfg.Table},
		Ops:    make([]ir.Operation, 0, cfg.Ops),
	}

	var t int64
	for i := 0; i < cfg.Ops; i++ {
		if i > 0 {
			t += rng.Int64N(cfg.MaxGapMs + 1)
		}
		k := rng.IntN(cfg.Keys)
		op := ir.Operation{
			T:     t,
			Table: cfg.Table,
			PK:    ir.PrimaryKey{ID: fmt.Sprintf("R-%d", k+1)},
		}

		// rev makes every image-changing operation observable to a poller.
		rev := ir.IRInt(i + 1)

		switch states[k] {
		case rowAbsent:
			op.Op = ir.OpInsert
			op.After = ir.IRObject{
				"status": ir.IRString(statuses[rng.IntN(len(statuses))]),
				"qty":    ir.IRInt(rng.IntN(10) + 1),
				"rev":    rev,
			}
			states[k] = rowLive

		case rowLive:
			if rng.IntN(100) < 65 {
				op.Op = ir.OpUpdate
				op.After = ir.IRObject{
					"status": ir.IRString(statuses[rng.IntN(len(statuses))]),
					"rev":    rev,
				}
				break
			}
			op.Op = ir.OpDelete
			if cfg.SoftDeletePercent > 0 && rng.IntN(100) < cfg.SoftDeletePercent {
				op.After = ir.IRObject{"deleted": ir.IRBool(true), "rev": rev}
				states[k] = rowSoftDeleted
			} else {
				states[k] = rowAbsent
			}

		case rowSoftDeleted:
			op.Op = ir.OpUpdate
			op.After = ir.IRObject{"deleted": ir.IRBool(false), "rev": rev}
			states[k] = rowLive
		}

		s.Ops = append(s.Ops, op)
	}

	return s, nil
}
