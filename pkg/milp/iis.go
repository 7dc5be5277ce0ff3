package milp

import (
	"context"
	"fmt"
)

// ConflictSet reduces the given tags to an irreducible set whose rows,
// together with the untagged rows, are jointly infeasible. It runs a deletion
// filter: each tag is tentatively disabled and the model re-solved; if the
// remainder is still infeasible the tag is unnecessary and stays disabled,
// otherwise it is part of the conflict and is kept.
//
// The caller must have established that the model is infeasible with every
// tag enabled. Probes are feasibility-only solves; the ctx bounds the whole
// filter and probes report an error once it expires.
func ConflictSet(ctx context.Context, s Solver, m *Model, tags []string, p Params) ([]string, error) {
	p.FeasibilityOnly = true
	dropped := make(map[string]bool, len(tags))
	for _, tag := range tags {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		trial := make(map[string]bool, len(p.DisabledTags)+len(dropped)+1)
		for t := range p.DisabledTags {
			trial[t] = true
		}
		for t := range dropped {
			trial[t] = true
		}
		trial[tag] = true

		q := p
		q.DisabledTags = trial
		sol, err := s.Solve(ctx, m, q)
		if err != nil {
			return nil, fmt.Errorf("conflict probe without %q: %w", tag, err)
		}
		switch sol.Status {
		case StatusInfeasible:
			// Still conflicting without this tag: not needed.
			dropped[tag] = true
		case StatusOptimal, StatusFeasible:
			// Removing it restores feasibility: it belongs to the conflict.
		default:
			return nil, fmt.Errorf("conflict probe without %q inconclusive: %s", tag, sol.Status)
		}
	}

	var iis []string
	for _, tag := range tags {
		if !dropped[tag] {
			iis = append(iis, tag)
		}
	}
	return iis, nil
}
