package gtfs2osm

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"strings"
	"testing"
)

type scriptStep struct {
	decision Decision
	choice   int
}

// scriptReviewer plays back a fixed sequence of decisions, quitting
// when the script runs out.
type scriptReviewer struct {
	steps []scriptStep
	calls int
}

func (r *scriptReviewer) Review(stop TransitStop, candidates []Candidate) (Decision, int, error) {
	r.calls++
	if len(r.steps) == 0 {
		return DecisionQuit, 0, nil
	}
	step := r.steps[0]
	r.steps = r.steps[1:]
	return step.decision, step.choice, nil
}

var reviewStops = []TransitStop{
	{ID: "S1", Name: "Main St", Lat: 44.43, Lon: 26.10},
	{ID: "S2", Name: "Second St", Lat: 44.45, Lon: 26.12},
}

var reviewMapStops = []MapStop{
	{ID: "W1", Name: "Main Street", Lat: 44.4301, Lon: 26.1001},
	{ID: "W2", Name: "Second Street", Lat: 44.4501, Lon: 26.1201},
}

func newTestStore(t *testing.T) *CorrelationStore {
	t.Helper()
	store, err := LoadCorrelationStore(testTempdir(t) + "/correlations.csv")
	require.NoError(t, err)
	return store
}

func TestRunReviewConfirms(t *testing.T) {
	store := newTestStore(t)
	reviewer := &scriptReviewer{steps: []scriptStep{
		{DecisionConfirm, 0},
		{DecisionConfirm, 0},
	}}

	report, err := RunReview(reviewStops, reviewMapStops, store, reviewer, ReviewOpts{RadiusMeters: 100, MaxResults: 5})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Confirmed)
	assert.Equal(t, 2, store.Len())
	assert.Equal(t, []CorrelationRecord{
		{GTFSStopID: "S1", GTFSStopName: "Main St", OSMID: "W1", OSMName: "Main Street"},
		{GTFSStopID: "S2", GTFSStopName: "Second St", OSMID: "W2", OSMName: "Second Street"},
	}, store.All())
}

func TestRunReviewSkipAndDefer(t *testing.T) {
	store := newTestStore(t)
	reviewer := &scriptReviewer{steps: []scriptStep{
		{DecisionSkip, 0},
		{DecisionDefer, 0},
	}}

	report, err := RunReview(reviewStops, reviewMapStops, store, reviewer, ReviewOpts{RadiusMeters: 100})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Confirmed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Deferred)
	assert.Equal(t, 0, store.Len())
}

func TestRunReviewDefersWithoutCandidates(t *testing.T) {
	store := newTestStore(t)
	reviewer := &scriptReviewer{}

	// No map stop within 100m of S2
	mapStops := []MapStop{{ID: "W1", Name: "Main Street", Lat: 44.4301, Lon: 26.1001}}
	stops := []TransitStop{{ID: "S2", Name: "Second St", Lat: 44.45, Lon: 26.12}}

	report, err := RunReview(stops, mapStops, store, reviewer, ReviewOpts{RadiusMeters: 100})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deferred)
	assert.Equal(t, 0, reviewer.calls, "reviewer must not be consulted for an empty candidate set")
}

func TestRunReviewFilterCorrelatedSkipsEnumeration(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Append(CorrelationRecord{GTFSStopID: "S1", GTFSStopName: "Main St", OSMID: "W1", OSMName: "Main Street"}))

	reviewer := &scriptReviewer{steps: []scriptStep{{DecisionConfirm, 0}}}
	report, err := RunReview(reviewStops, reviewMapStops, store, reviewer, ReviewOpts{
		RadiusMeters: 100, FilterCorrelated: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, reviewer.calls, "S1 must not be presented at all")
	assert.Equal(t, 1, report.Confirmed)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, "S2", report.Outcomes[0].Stop.ID)
}

func TestRunReviewFilterCorrelatedExcludesUsedMapStops(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Append(CorrelationRecord{GTFSStopID: "X9", GTFSStopName: "Other", OSMID: "W1", OSMName: "Main Street"}))

	// W1 is taken, and nothing else is near S1, so S1 defers untouched
	reviewer := &scriptReviewer{}
	stops := []TransitStop{{ID: "S1", Name: "Main St", Lat: 44.43, Lon: 26.10}}

	report, err := RunReview(stops, reviewMapStops, store, reviewer, ReviewOpts{
		RadiusMeters: 100, FilterCorrelated: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deferred)
	assert.Equal(t, 0, reviewer.calls)
}

func TestRunReviewDuplicateConfirmAdvancesSilently(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Append(CorrelationRecord{GTFSStopID: "S1", GTFSStopName: "Main St", OSMID: "W9", OSMName: "Elsewhere"}))

	// Filtering off, so S1 is re-reviewed; the confirm hits ErrDuplicateKey
	reviewer := &scriptReviewer{steps: []scriptStep{{DecisionConfirm, 0}}}
	stops := []TransitStop{{ID: "S1", Name: "Main St", Lat: 44.43, Lon: 26.10}}

	report, err := RunReview(stops, reviewMapStops, store, reviewer, ReviewOpts{RadiusMeters: 100})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Confirmed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, store.Len())
}

func TestRunReviewOutOfRangeChoiceReprompts(t *testing.T) {
	store := newTestStore(t)
	reviewer := &scriptReviewer{steps: []scriptStep{
		{DecisionConfirm, 7},
		{DecisionConfirm, 0},
	}}
	stops := []TransitStop{{ID: "S1", Name: "Main St", Lat: 44.43, Lon: 26.10}}

	report, err := RunReview(stops, reviewMapStops, store, reviewer, ReviewOpts{RadiusMeters: 100})
	require.NoError(t, err)
	assert.Equal(t, 2, reviewer.calls)
	assert.Equal(t, 1, report.Confirmed)
}

func TestRunReviewWriteFailureRepresentsStop(t *testing.T) {
	outDir := testTempdir(t)
	store, err := LoadCorrelationStore(outDir + "/blocked")
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(outDir+"/blocked", 0o755))

	// First confirm fails to persist; the stop is re-presented and the
	// reviewer gives up with a skip.
	reviewer := &scriptReviewer{steps: []scriptStep{
		{DecisionConfirm, 0},
		{DecisionSkip, 0},
	}}
	stops := []TransitStop{{ID: "S1", Name: "Main St", Lat: 44.43, Lon: 26.10}}

	report, err := RunReview(stops, reviewMapStops, store, reviewer, ReviewOpts{RadiusMeters: 100})
	require.NoError(t, err)
	assert.Equal(t, 2, reviewer.calls)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, store.Len())
}

func TestRunReviewQuitStopsEarly(t *testing.T) {
	store := newTestStore(t)
	reviewer := &scriptReviewer{steps: []scriptStep{{DecisionQuit, 0}}}

	report, err := RunReview(reviewStops, reviewMapStops, store, reviewer, ReviewOpts{RadiusMeters: 100})
	require.NoError(t, err)
	assert.Empty(t, report.Outcomes)
	assert.Equal(t, 1, reviewer.calls)
}

func TestRunReviewRequiresRadius(t *testing.T) {
	store := newTestStore(t)
	_, err := RunReview(reviewStops, reviewMapStops, store, &scriptReviewer{}, ReviewOpts{})
	require.Error(t, err)
}

func TestPromptReviewer(t *testing.T) {
	stop := TransitStop{ID: "S1", Name: "Main St", Lat: 44.43, Lon: 26.10}
	candidates := []Candidate{
		{Stop: MapStop{ID: "W1", Name: "Main Street"}, DistanceMeters: 14},
		{Stop: MapStop{ID: "W2", Name: "Second Street"}, DistanceMeters: 80},
	}

	cases := []struct {
		input    string
		decision Decision
		choice   int
	}{
		{"1\n", DecisionConfirm, 0},
		{"2\n", DecisionConfirm, 1},
		{"s\n", DecisionSkip, 0},
		{"d\n", DecisionDefer, 0},
		{"\n", DecisionDefer, 0},
		{"q\n", DecisionQuit, 0},
		// EOF ends the session
		{"", DecisionQuit, 0},
		// Out of range and junk re-prompt
		{"9\nbogus\n1\n", DecisionConfirm, 0},
	}
	for _, c := range cases {
		var out strings.Builder
		r := NewPromptReviewer(strings.NewReader(c.input), &out)
		decision, choice, err := r.Review(stop, candidates)
		require.NoError(t, err)
		assert.Equal(t, c.decision, decision, "input %q", c.input)
		assert.Equal(t, c.choice, choice, "input %q", c.input)
		assert.Contains(t, out.String(), "Main St [S1]")
		assert.Contains(t, out.String(), "1. Main Street [osm W1] 14 m away")
	}
}
