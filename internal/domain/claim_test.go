package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gigshield.org/internal/consensus"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newPending(t *testing.T) Claim {
	t.Helper()
	c, err := NewClaim("pool/admin/p1", "worker", "c1", 4000, "flat tyre", Hash{1}, t0)
	require.NoError(t, err)
	return c
}

func TestNewClaimValidation(t *testing.T) {
	_, err := NewClaim("pool/a/p", "w", "", 1, "", Hash{}, t0)
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
	_, err = NewClaim("pool/a/p", "w", "0123456789012345678901234567890123", 1, "", Hash{}, t0)
	assert.ErrorIs(t, err, ErrClaimIDTooLong)
	_, err = NewClaim("pool/a/p", "w", "c", 0, "", Hash{}, t0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	long := make([]byte, MaxDescriptionLen+1)
	_, err = NewClaim("pool/a/p", "w", "c", 1, string(long), Hash{}, t0)
	assert.ErrorIs(t, err, ErrDescriptionTooLong)

	c := newPending(t)
	assert.Equal(t, StatusPending, c.Status())
	assert.Equal(t, t0.Add(48*time.Hour), c.Deadline)
	assert.Equal(t, "claim/pool/admin/p1/c1", c.Key())
}

func TestRecordVoteResolvesOnSupermajority(t *testing.T) {
	c := newPending(t)
	for _, approve := range []bool{true, true} {
		outcome, err := c.RecordVote(approve, t0.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, consensus.Undecided, outcome)
		assert.Equal(t, StatusPending, c.Status())
	}
	outcome, err := c.RecordVote(false, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, consensus.Approve, outcome)
	assert.Equal(t, StatusApproved, c.Status())
	require.NotNil(t, c.ResolvedAt)

	_, err = c.RecordVote(true, t0.Add(3*time.Hour))
	assert.ErrorIs(t, err, ErrClaimNotPending)
	assert.Equal(t, uint64(3), c.Votes.Total())
}

func TestRecordVoteRejectSupermajority(t *testing.T) {
	c := newPending(t)
	c.RecordVote(false, t0)
	c.RecordVote(false, t0)
	outcome, err := c.RecordVote(true, t0)
	require.NoError(t, err)
	assert.Equal(t, consensus.Reject, outcome)
	assert.Equal(t, StatusRejected, c.Status())
}

func TestVotingWindowBoundary(t *testing.T) {
	c := newPending(t)
	_, err := c.RecordVote(true, c.Deadline)
	require.NoError(t, err, "deadline second still accepts votes")
	_, err = c.RecordVote(true, c.Deadline.Add(time.Second))
	assert.ErrorIs(t, err, ErrVotingExpired)
	assert.Equal(t, uint32(1), c.Votes.For)
}

func TestExpire(t *testing.T) {
	c := newPending(t)
	_, err := c.Expire(c.Deadline)
	assert.ErrorIs(t, err, ErrVotingNotExpired)

	c.RecordVote(true, t0)
	c.RecordVote(true, t0)
	outcome, err := c.Expire(c.Deadline.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, consensus.Reject, outcome, "two approvals lack quorum")
	assert.Equal(t, StatusRejected, c.Status())

	_, err = c.Expire(c.Deadline.Add(time.Hour))
	assert.ErrorIs(t, err, ErrClaimNotPending)
}

func TestMarkPaidOnlyFromApproved(t *testing.T) {
	c := newPending(t)
	assert.ErrorIs(t, c.MarkPaid(), ErrClaimNotApproved)
	c.RecordVote(true, t0)
	c.RecordVote(true, t0)
	c.RecordVote(true, t0)
	require.NoError(t, c.MarkPaid())
	assert.Equal(t, StatusPaid, c.Status())
	assert.True(t, c.Status().Terminal())
	assert.ErrorIs(t, c.MarkPaid(), ErrClaimNotApproved)
}

func TestClaimJSONRoundTripKeepsStatus(t *testing.T) {
	c := newPending(t)
	c.RecordVote(true, t0)
	c.RecordVote(true, t0)
	c.RecordVote(true, t0)

	raw, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"status":"approved"`)
	assert.Contains(t, string(raw), `"evidence_hash":"01000000`)
	assert.Contains(t, string(raw), `"policy":"policy/pool/admin/p1/worker"`)

	var back Claim
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, StatusApproved, back.Status())
	assert.Equal(t, c.Policy, back.Policy)
	assert.Equal(t, c.Votes, back.Votes)
	assert.True(t, c.Deadline.Equal(back.Deadline))

	err = json.Unmarshal([]byte(`{"claim_id":"x","status":"bogus","evidence_hash":"`+Hash{}.String()+`"}`), &back)
	assert.Error(t, err)
}
