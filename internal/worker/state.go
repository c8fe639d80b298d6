package worker

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/profile-link-enricher/internal/enrich"
)

// transitions lists the legal forward moves of the per-record pipeline. FAILED is reachable
// from every non-terminal state and is handled separately.
var transitions = map[enrich.RecordState][]enrich.RecordState{
	enrich.StateRaw:                {enrich.StateClassified},
	enrich.StateClassified:         {enrich.StateAccessibleChecked, enrich.StateSkipped},
	enrich.StateAccessibleChecked:  {enrich.StateCandidateDiscovery, enrich.StateDone},
	enrich.StateSkipped:            {enrich.StateCandidateDiscovery, enrich.StateDone},
	enrich.StateCandidateDiscovery: {enrich.StateReplaced, enrich.StateFlagged},
	enrich.StateReplaced:           {enrich.StateDone},
	enrich.StateFlagged:            {enrich.StateDone},
}

// CanTransition reports whether a record may move from one state to another.
func CanTransition(from, to enrich.RecordState) bool {
	if from.Terminal() {
		return false
	}
	if to == enrich.StateFailed {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (w *Worker) advance(rec *enrich.EnrichedRecord, to enrich.RecordState) error {
	if !CanTransition(rec.State, to) {
		return fmt.Errorf("record %d: illegal transition %s -> %s", rec.Index, rec.State, to)
	}
	w.logger.Debug("record transition",
		zap.Int("index", rec.Index),
		zap.String("from", string(rec.State)),
		zap.String("to", string(to)),
	)
	rec.State = to
	return nil
}
