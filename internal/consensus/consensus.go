// Package consensus holds the quorum rules that decide a claim from its vote
// tally. Both rules require MinVotes participants and a two-thirds
// supermajority; they differ only in what happens without one.
package consensus

// MinVotes is the participation floor below which no claim resolves.
const MinVotes = 3

// Tally counts approve and reject votes on one claim.
type Tally struct {
	For     uint32 `json:"votes_for"`
	Against uint32 `json:"votes_against"`
}

// Total is the number of votes cast.
func (t Tally) Total() uint64 { return uint64(t.For) + uint64(t.Against) }

// Add returns the tally with one more vote.
func (t Tally) Add(approve bool) Tally {
	if approve {
		t.For++
	} else {
		t.Against++
	}
	return t
}

// Outcome is the decision a rule reaches for a tally.
type Outcome uint8

const (
	Undecided Outcome = iota
	Approve
	Reject
)

func (o Outcome) String() string {
	switch o {
	case Approve:
		return "approve"
	case Reject:
		return "reject"
	default:
		return "undecided"
	}
}

// Live is evaluated after every vote while the window is open. Either side
// may win; anything short of a supermajority stays undecided.
func Live(t Tally) Outcome {
	total := t.Total()
	if total < MinVotes {
		return Undecided
	}
	if supermajority(t.For, total) {
		return Approve
	}
	if supermajority(t.Against, total) {
		return Reject
	}
	return Undecided
}

// AtExpiry decides a claim whose window closed while still undecided.
// Only an approve supermajority with quorum approves; every other tally,
// including too few votes or a tie, rejects.
func AtExpiry(t Tally) Outcome {
	total := t.Total()
	if total >= MinVotes && supermajority(t.For, total) {
		return Approve
	}
	return Reject
}

func supermajority(side uint32, total uint64) bool {
	return uint64(side)*3 >= total*2
}
