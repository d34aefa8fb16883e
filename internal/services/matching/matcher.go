package matching

import (
	"sort"
	"time"
)

// Exact matches require the amount to be equal and the settlement to land
// within a minute of the POS transaction. Fuzzy candidates are held to a
// tighter 15 second window and scored.
const (
	exactWindowSec = 60
	fuzzyWindowSec = 15
)

// Outcome is the result of one matching pass.
type Outcome struct {
	Rows        []Row
	UnmatchedDB []DbRecord
	ClaimedIDs  map[string]bool
}

// Reconcile classifies every CSV row against the pool of unverified
// transactions. Rows are processed in CSV order, and a claimed transaction
// is removed from the pool for all later rows, so the first row wins when
// two rows could claim the same record. The pass is fully deterministic.
func Reconcile(csvRows []CsvRecord, dbRows []DbRecord) Outcome {
	claimed := make(map[string]bool)
	rows := make([]Row, 0, len(csvRows))

	for _, csv := range csvRows {
		status := StatusUnmatched
		matchedID := ""
		var candidates []Candidate

		// Step 1: exact match on amount and time.
		var exact []DbRecord
		for _, db := range dbRows {
			if claimed[db.ID] {
				continue
			}
			if csv.Amount == db.TotalAmount && timeDiffSeconds(csv.TransactionTime, db.TransactionDate) < exactWindowSec {
				exact = append(exact, db)
			}
		}

		switch {
		case len(exact) == 1:
			status = StatusAutoMatched
			matchedID = exact[0].ID
			claimed[matchedID] = true

		case len(exact) > 1:
			// Ambiguous: leave unclaimed for manual resolution.
			status = StatusNeedsReview
			for _, db := range exact {
				candidates = append(candidates, Candidate{DbRecord: db, Score: 100, TimeDiffSec: 0})
			}

		default:
			// Step 2: fuzzy candidate search within 15s.
			for _, db := range dbRows {
				if claimed[db.ID] {
					continue
				}
				if csv.Amount != db.TotalAmount {
					continue
				}
				diff := timeDiffSeconds(csv.TransactionTime, db.TransactionDate)
				if diff > fuzzyWindowSec {
					continue
				}
				score := 40
				if diff <= 5 {
					score += 30
				} else {
					score += 15
				}
				candidates = append(candidates, Candidate{DbRecord: db, Score: score, TimeDiffSec: diff})
			}
			sort.SliceStable(candidates, func(i, j int) bool {
				return candidates[i].Score > candidates[j].Score
			})

			// Step 3: fuzzy decision. A lone candidate tops out at 70 under
			// the current weights, so the auto-match branch never fires; the
			// production threshold is kept verbatim.
			switch {
			case len(candidates) == 1 && candidates[0].Score >= 80:
				status = StatusAutoMatched
				matchedID = candidates[0].ID
				claimed[matchedID] = true
			case len(candidates) > 1:
				status = StatusNeedsReview
			default:
				status = StatusUnmatched
			}
		}

		rows = append(rows, Row{
			Csv:        csv,
			Status:     status,
			MatchedID:  matchedID,
			Candidates: candidates,
		})
	}

	var unmatched []DbRecord
	for _, db := range dbRows {
		if !claimed[db.ID] {
			unmatched = append(unmatched, db)
		}
	}

	return Outcome{Rows: rows, UnmatchedDB: unmatched, ClaimedIDs: claimed}
}

// timeDiffSeconds truncates toward zero, like the front end's second-level
// diff, so 59.9s still counts as 59.
func timeDiffSeconds(a, b time.Time) int {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return int(d / time.Second)
}
