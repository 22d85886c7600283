package types

// EntityStatus is the state of one ticker within a sync run.
//
//	PENDING -> FETCHING -> NO_DATA
//	                    -> FETCH_FAILED
//	                    -> PARTITIONING -> NO_DATA
//	                                    -> PARTIAL_FAILURE
//	                                    -> WRITING -> DONE | PARTIAL_FAILURE
type EntityStatus string

const (
	EntityStatusPending        EntityStatus = "PENDING"
	EntityStatusFetching       EntityStatus = "FETCHING"
	EntityStatusNoData         EntityStatus = "NO_DATA"
	EntityStatusFetchFailed    EntityStatus = "FETCH_FAILED"
	EntityStatusPartitioning   EntityStatus = "PARTITIONING"
	EntityStatusWriting        EntityStatus = "WRITING"
	EntityStatusDone           EntityStatus = "DONE"
	EntityStatusPartialFailure EntityStatus = "PARTIAL_FAILURE"
)

var entityTransitions = map[EntityStatus][]EntityStatus{
	EntityStatusPending:      {EntityStatusFetching},
	EntityStatusFetching:     {EntityStatusNoData, EntityStatusFetchFailed, EntityStatusPartitioning},
	EntityStatusPartitioning: {EntityStatusNoData, EntityStatusPartialFailure, EntityStatusWriting},
	EntityStatusWriting:      {EntityStatusDone, EntityStatusPartialFailure},
}

// CanTransition reports whether moving from s to next is a legal step.
func (s EntityStatus) CanTransition(next EntityStatus) bool {
	for _, allowed := range entityTransitions[s] {
		if allowed == next {
			return true
		}
	}

	return false
}

// IsTerminal reports whether s ends the entity's processing for the run.
func (s EntityStatus) IsTerminal() bool {
	switch s {
	case EntityStatusNoData, EntityStatusFetchFailed, EntityStatusDone, EntityStatusPartialFailure:
		return true
	default:
		return false
	}
}

// IsFailure reports whether s should be counted as a failed entity.
func (s EntityStatus) IsFailure() bool {
	return s == EntityStatusFetchFailed || s == EntityStatusPartialFailure
}
