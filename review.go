package gtfs2osm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

// Decision is the reviewer's verdict on one pending transit stop.
type Decision int

const (
	// DecisionDefer leaves the stop for a later run.
	DecisionDefer Decision = iota
	// DecisionSkip skips the stop for this run without persisting anything.
	DecisionSkip
	// DecisionConfirm accepts one of the candidates as the match.
	DecisionConfirm
	// DecisionQuit ends the session, leaving the remaining stops untouched.
	DecisionQuit
)

// Reviewer is the human (or test double) deciding matches. Review
// returns the decision for stop and, for DecisionConfirm, the index of
// the chosen candidate.
type Reviewer interface {
	Review(stop TransitStop, candidates []Candidate) (Decision, int, error)
}

// Outcome is the terminal state a transit stop reached in one run.
type Outcome int

const (
	// OutcomeDeferred means no candidate was acceptable, or none existed.
	OutcomeDeferred Outcome = iota
	// OutcomeSkipped means the reviewer passed over the stop, or it was
	// already correlated.
	OutcomeSkipped
	// OutcomeConfirmed means a correlation was persisted.
	OutcomeConfirmed
)

type StopOutcome struct {
	Stop    TransitStop
	Outcome Outcome
}

// ReviewReport summarizes one review session.
type ReviewReport struct {
	Outcomes  []StopOutcome
	Confirmed int
	Skipped   int
	Deferred  int
}

type ReviewOpts struct {
	RadiusMeters float64
	MaxResults   int
	// FilterCorrelated excludes transit stops already in the store from
	// review, and already-used OSM features from the candidate pool.
	FilterCorrelated bool
}

// RunReview walks the transit stops, presenting each pending one to
// the reviewer and persisting confirmations. The store is only written
// at the moment of a confirm, one row at a time. A failed write is
// reported and the same stop re-presented so the reviewer can retry or
// give up on it; a reviewer error ends the session with the partial
// report.
func RunReview(stops []TransitStop, mapStops []MapStop, store *CorrelationStore, reviewer Reviewer, opts ReviewOpts) (*ReviewReport, error) {
	if opts.RadiusMeters <= 0 {
		return nil, fmt.Errorf("radiusMeters must be positive, got %v", opts.RadiusMeters)
	}

	report := &ReviewReport{}
	record := func(stop TransitStop, outcome Outcome) {
		report.Outcomes = append(report.Outcomes, StopOutcome{Stop: stop, Outcome: outcome})
		switch outcome {
		case OutcomeConfirmed:
			report.Confirmed++
		case OutcomeSkipped:
			report.Skipped++
		case OutcomeDeferred:
			report.Deferred++
		}
	}

	for _, stop := range stops {
		if opts.FilterCorrelated && store.Contains(stop.ID) {
			continue
		}

		pool := mapStops
		if opts.FilterCorrelated {
			pool = excludeCorrelated(mapStops, store)
		}

		candidates, err := FindCandidates(stop, pool, opts.RadiusMeters, opts.MaxResults)
		if err != nil {
			return report, err
		}
		if len(candidates) == 0 {
			slog.Debug("No candidates in range, deferring", "stop_id", stop.ID)
			record(stop, OutcomeDeferred)
			continue
		}

	reviewStop:
		for {
			decision, choice, err := reviewer.Review(stop, candidates)
			if err != nil {
				return report, fmt.Errorf("review %s: %w", stop.ID, err)
			}

			switch decision {
			case DecisionQuit:
				slog.Info(fmt.Sprintf("Session ended with %d stops remaining", remaining(stops, stop)))
				return report, nil
			case DecisionSkip:
				record(stop, OutcomeSkipped)
				break reviewStop
			case DecisionDefer:
				record(stop, OutcomeDeferred)
				break reviewStop
			case DecisionConfirm:
				if choice < 0 || choice >= len(candidates) {
					slog.Warn("Candidate choice out of range", "stop_id", stop.ID, "choice", choice)
					continue
				}
				chosen := candidates[choice].Stop
				err := store.Append(CorrelationRecord{
					GTFSStopID:   stop.ID,
					GTFSStopName: stop.Name,
					OSMID:        chosen.ID,
					OSMName:      chosen.Name,
				})
				if err == nil {
					record(stop, OutcomeConfirmed)
					break reviewStop
				}
				if errors.Is(err, ErrDuplicateKey) {
					// Already correlated on a previous run; nothing to write.
					slog.Debug("Stop already correlated", "stop_id", stop.ID)
					record(stop, OutcomeSkipped)
					break reviewStop
				}
				// Disk and memory are still consistent; let the reviewer
				// confirm again to retry the write, or skip/defer to move on.
				slog.Error("Failed to write correlation row", "stop_id", stop.ID, "err", err)
				continue
			default:
				panic(fmt.Sprintf("unknown decision %d", decision))
			}
		}
	}

	return report, nil
}

func excludeCorrelated(mapStops []MapStop, store *CorrelationStore) []MapStop {
	var pool []MapStop
	for _, m := range mapStops {
		if !store.ContainsMapStop(m.ID) {
			pool = append(pool, m)
		}
	}
	return pool
}

func remaining(stops []TransitStop, current TransitStop) int {
	for i, s := range stops {
		if s.ID == current.ID {
			return len(stops) - i - 1
		}
	}
	return 0
}

// PromptReviewer reads decisions from a terminal-style prompt. End of
// input ends the session like an explicit quit.
type PromptReviewer struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func NewPromptReviewer(in io.Reader, out io.Writer) *PromptReviewer {
	return &PromptReviewer{scanner: bufio.NewScanner(in), out: out}
}

func (r *PromptReviewer) Review(stop TransitStop, candidates []Candidate) (Decision, int, error) {
	fmt.Fprintf(r.out, "\n%s [%s] at %.5f, %.5f\n", stop.Name, stop.ID, stop.Lat, stop.Lon)
	for i, c := range candidates {
		fmt.Fprintf(r.out, "  %d. %s [osm %s] %.0f m away\n", i+1, c.Stop.Name, c.Stop.ID, c.DistanceMeters)
	}

	for {
		fmt.Fprintf(r.out, "Match [1-%d], (s)kip, (d)efer, (q)uit: ", len(candidates))
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return DecisionQuit, 0, err
			}
			return DecisionQuit, 0, nil
		}

		input := strings.ToLower(strings.TrimSpace(r.scanner.Text()))
		switch input {
		case "", "d":
			return DecisionDefer, 0, nil
		case "s":
			return DecisionSkip, 0, nil
		case "q":
			return DecisionQuit, 0, nil
		}
		if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(candidates) {
			return DecisionConfirm, n - 1, nil
		}
		fmt.Fprintf(r.out, "Unrecognized choice %q\n", input)
	}
}
