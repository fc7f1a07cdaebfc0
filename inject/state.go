package inject

// State is the pipeline position of one type.
type State uint8

const (
	StatePending State = iota
	StateClassSkeletonCreated
	StateFieldsLaidOut
	StateRoutinesInstalled
	StateFailed
)

var stateNames = [...]string{
	StatePending:              "pending",
	StateClassSkeletonCreated: "class-skeleton-created",
	StateFieldsLaidOut:        "fields-laid-out",
	StateRoutinesInstalled:    "routines-installed",
	StateFailed:               "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Done reports whether the type finished the pipeline, successfully or not.
func (s State) Done() bool {
	return s == StateRoutinesInstalled || s == StateFailed
}
