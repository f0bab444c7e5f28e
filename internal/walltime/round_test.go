package walltime

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func u64(v uint64) *uint64 { return &v }

func TestGenerateNameAndURI_NoTruncation(t *testing.T) {
	name, uri, truncated := GenerateNameAndURI("short_name")
	assert.Equal(t, "short_name", name)
	assert.Equal(t, "exec_harness::short_name", uri)
	assert.False(t, truncated)
}

func TestGenerateNameAndURI_Truncation(t *testing.T) {
	long := strings.Repeat("a", maxNameLength+50)
	name, uri, truncated := GenerateNameAndURI(long)

	assert.True(t, truncated)
	assert.Len(t, name, maxNameLength)
	// The URI is derived from the truncated name, per the 924-char bound
	// on the URI itself.
	assert.Equal(t, "exec_harness::"+long[:maxNameLength], uri)
}

func TestRoundOrTime_RoundsFor(t *testing.T) {
	minBound := RoundOrTime{TimeNs: u64(1000)}
	rounds, ok := minBound.roundsFor(300, true)
	assert.True(t, ok)
	// ceil(1000/300): the min bound always rounds up.
	assert.Equal(t, uint64(4), rounds)

	maxBound := RoundOrTime{TimeNs: u64(1000)}
	rounds, ok = maxBound.roundsFor(300, false)
	assert.True(t, ok)
	// floor(1000/300): the max bound always rounds down.
	assert.Equal(t, uint64(3), rounds)
}

func TestPerform_NoWarmupRequiresFixedRounds(t *testing.T) {
	_, err := Perform("true", nil, "exec_harness::true", Config{})
	assert.Error(t, err)
}

// TestPerform_WarmupWithoutAnyBoundIsAnError pins the other half of the
// round-resolution contract: a warmup alone can estimate the average
// round duration, but with neither a min nor a max bound there is still
// no way to decide how many rounds to perform.
func TestPerform_WarmupWithoutAnyBoundIsAnError(t *testing.T) {
	_, err := Perform("true", nil, "exec_harness::true", Config{WarmupTimeNs: u64(1_000_000)})
	assert.ErrorContains(t, err, "unable to determine number of rounds")
}

func TestPerform_FixedRoundsNoWarmup(t *testing.T) {
	rounds := uint64(3)
	result, err := Perform("true", nil, "exec_harness::true", Config{Max: RoundOrTime{Rounds: &rounds}})
	assert.NoError(t, err)
	assert.Len(t, result.Durations, 3)
}

func TestPerform_NonZeroExitAbortsRun(t *testing.T) {
	rounds := uint64(3)
	_, err := Perform("false", nil, "exec_harness::false", Config{Max: RoundOrTime{Rounds: &rounds}})
	assert.Error(t, err)
}

type capturingRecorder struct {
	uris []string
}

func (r *capturingRecorder) SetExecutedBenchmark(uri string) error {
	r.uris = append(r.uris, uri)
	return nil
}

func TestPerform_NotifiesRecorderOnce(t *testing.T) {
	rec := &capturingRecorder{}
	rounds := uint64(2)
	_, err := Perform("true", nil, "exec_harness::true", Config{
		Max:      RoundOrTime{Rounds: &rounds},
		Recorder: rec,
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"exec_harness::true"}, rec.uris)
}

// TestPerform_WarmupDrivenRounds runs a real ~10ms command under a 50ms
// warmup and a 500ms wall-clock budget: the round count must land in a
// sane band and every recorded duration must be at least the sleep time.
func TestPerform_WarmupDrivenRounds(t *testing.T) {
	warmup := uint64(50_000_000)
	maxTime := uint64(500_000_000)
	result, err := Perform("sleep", []string{"0.01"}, "exec_harness::sleep", Config{
		WarmupTimeNs: &warmup,
		Max:          RoundOrTime{TimeNs: &maxTime},
	})
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, len(result.Durations), 5)
	assert.LessOrEqual(t, len(result.Durations), 50)
	for _, d := range result.Durations {
		assert.GreaterOrEqual(t, d, uint64(10_000_000))
	}
}
