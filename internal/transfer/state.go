package transfer

// State is the position of a transfer in its lifecycle. Transitions only
// move forward; Aborted is terminal and sticky against anything delivered
// after it.
type State uint8

const (
	Created State = iota
	Initiated
	InProgress
	Charged
	Collected
	Finalized
	Aborted
)

func (s State) String() string {
	switch s {
	case Created:
		return "CREATED"
	case Initiated:
		return "INITIATED"
	case InProgress:
		return "IN_PROGRESS"
	case Charged:
		return "CHARGED"
	case Collected:
		return "COLLECTED"
	case Finalized:
		return "FINALIZED"
	case Aborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == Finalized || s == Aborted
}

// Direction distinguishes the three handshake kinds. The name describes
// the action requested of the target peer: an import transfer asks the
// target to ingest items, an export transfer asks it to produce them.
type Direction uint8

const (
	Import Direction = iota
	Export
	Share
)

func (d Direction) String() string {
	switch d {
	case Import:
		return "IMPORT"
	case Export:
		return "EXPORT"
	case Share:
		return "SHARE"
	default:
		return "UNKNOWN"
	}
}

// Selection tells the producing side how many items the requester wants.
type Selection uint8

const (
	Single Selection = iota
	Multiple
)

func (s Selection) String() string {
	switch s {
	case Single:
		return "SINGLE"
	case Multiple:
		return "MULTIPLE"
	default:
		return "UNKNOWN"
	}
}
