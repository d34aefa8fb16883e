package matching

import (
	"errors"
	"sort"
	"testing"
	"time"
)

// reviewSession returns a session with:
//
//	csv_0 -> NEEDS_REVIEW between tx1 and tx2
//	csv_1 -> UNMATCHED (tx3 is far outside both windows)
//	csv_2 -> AUTO_MATCHED to tx4
func reviewSession(t *testing.T) *Session {
	t.Helper()
	csvRows := []CsvRecord{
		csvRow("csv_0", 50000, baseTime),
		csvRow("csv_1", 70000, baseTime),
		csvRow("csv_2", 30000, baseTime),
	}
	dbRows := []DbRecord{
		dbRow("tx1", 50000, baseTime.Add(5*time.Second)),
		dbRow("tx2", 50000, baseTime.Add(30*time.Second)),
		dbRow("tx3", 70000, baseTime.Add(2*time.Minute)),
		dbRow("tx4", 30000, baseTime.Add(3*time.Second)),
	}
	return NewSession("sess", csvRows, dbRows, nil)
}

// checkClaimInvariant verifies that the claimed set equals the union of real
// matched ids across rows.
func checkClaimInvariant(t *testing.T, s *Session) {
	t.Helper()
	var derived []string
	for _, row := range s.Rows {
		if row.MatchedID != "" && row.MatchedID != CreateNewID {
			derived = append(derived, row.MatchedID)
		}
	}
	sort.Strings(derived)
	claimed := s.ClaimedIDs()
	if len(derived) != len(claimed) {
		t.Fatalf("claimed set %v does not match derived %v", claimed, derived)
	}
	for i := range derived {
		if derived[i] != claimed[i] {
			t.Fatalf("claimed set %v does not match derived %v", claimed, derived)
		}
	}
}

func TestSessionInitialState(t *testing.T) {
	s := reviewSession(t)

	if s.Rows[0].Status != StatusNeedsReview {
		t.Fatalf("csv_0 should need review, got %s", s.Rows[0].Status)
	}
	if s.Rows[1].Status != StatusUnmatched {
		t.Fatalf("csv_1 should be unmatched, got %s", s.Rows[1].Status)
	}
	if s.Rows[2].Status != StatusAutoMatched || s.Rows[2].MatchedID != "tx4" {
		t.Fatalf("csv_2 should auto-match tx4, got %s / %q", s.Rows[2].Status, s.Rows[2].MatchedID)
	}
	if len(s.UnmatchedDB) != 3 {
		t.Fatalf("expected tx1, tx2, tx3 residual, got %d", len(s.UnmatchedDB))
	}
	checkClaimInvariant(t, s)
}

func TestManualMatchAndRebind(t *testing.T) {
	s := reviewSession(t)

	if err := s.Match("csv_0", "tx1"); err != nil {
		t.Fatalf("match failed: %v", err)
	}
	if s.Rows[0].Status != StatusManualMatched || s.Rows[0].MatchedID != "tx1" {
		t.Fatalf("expected MANUAL_MATCHED tx1, got %s / %q", s.Rows[0].Status, s.Rows[0].MatchedID)
	}
	if containsDb(s.UnmatchedDB, "tx1") {
		t.Fatal("tx1 should have left the unmatched pool")
	}
	checkClaimInvariant(t, s)

	// Rebinding releases the old id back to the pool.
	if err := s.Match("csv_0", "tx2"); err != nil {
		t.Fatalf("rebind failed: %v", err)
	}
	if s.Rows[0].MatchedID != "tx2" {
		t.Fatalf("expected tx2 bound, got %q", s.Rows[0].MatchedID)
	}
	if !containsDb(s.UnmatchedDB, "tx1") {
		t.Fatal("tx1 should be back in the unmatched pool")
	}
	if containsDb(s.UnmatchedDB, "tx2") {
		t.Fatal("tx2 should have left the unmatched pool")
	}
	checkClaimInvariant(t, s)

	// Re-selecting the held id is a no-op.
	if err := s.Match("csv_0", "tx2"); err != nil {
		t.Fatalf("reconfirmation should succeed: %v", err)
	}
	checkClaimInvariant(t, s)
}

func TestMatchRejectsClaimedID(t *testing.T) {
	s := reviewSession(t)

	if err := s.Match("csv_0", "tx1"); err != nil {
		t.Fatalf("match failed: %v", err)
	}
	if err := s.Match("csv_1", "tx1"); !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
	}
	// The auto-claimed tx4 is protected too.
	if err := s.Match("csv_1", "tx4"); !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed for tx4, got %v", err)
	}
	checkClaimInvariant(t, s)
}

func TestMatchErrors(t *testing.T) {
	s := reviewSession(t)

	if err := s.Match("nope", "tx1"); !errors.Is(err, ErrRowNotFound) {
		t.Fatalf("expected ErrRowNotFound, got %v", err)
	}
	if err := s.Match("csv_0", "ghost"); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
	if err := s.Match("csv_0", CreateNewID); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("sentinel id must not bind, got %v", err)
	}
	if err := s.Match("csv_2", "tx1"); !errors.Is(err, ErrRowImmutable) {
		t.Fatalf("auto-matched rows must reject overrides, got %v", err)
	}
}

func TestCreateNewReleasesClaim(t *testing.T) {
	s := reviewSession(t)

	if err := s.Match("csv_0", "tx1"); err != nil {
		t.Fatalf("match failed: %v", err)
	}
	if err := s.CreateNew("csv_0"); err != nil {
		t.Fatalf("create-new failed: %v", err)
	}
	if s.Rows[0].Status != StatusCreateNew || s.Rows[0].MatchedID != CreateNewID {
		t.Fatalf("expected CREATE_NEW sentinel, got %s / %q", s.Rows[0].Status, s.Rows[0].MatchedID)
	}
	if !containsDb(s.UnmatchedDB, "tx1") {
		t.Fatal("tx1 should be released back to the pool")
	}
	checkClaimInvariant(t, s)
}

func TestClearRevertsByCandidateCount(t *testing.T) {
	s := reviewSession(t)

	// csv_0 had two candidates: clearing goes back to NEEDS_REVIEW.
	if err := s.Match("csv_0", "tx1"); err != nil {
		t.Fatalf("match failed: %v", err)
	}
	if err := s.Clear("csv_0"); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if s.Rows[0].Status != StatusNeedsReview || s.Rows[0].MatchedID != "" {
		t.Fatalf("expected NEEDS_REVIEW after clear, got %s / %q", s.Rows[0].Status, s.Rows[0].MatchedID)
	}
	if !containsDb(s.UnmatchedDB, "tx1") {
		t.Fatal("tx1 should be back in the pool")
	}
	checkClaimInvariant(t, s)

	// csv_1 had no candidates: clearing goes back to UNMATCHED.
	if err := s.Match("csv_1", "tx3"); err != nil {
		t.Fatalf("match failed: %v", err)
	}
	if err := s.Clear("csv_1"); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if s.Rows[1].Status != StatusUnmatched {
		t.Fatalf("expected UNMATCHED after clear, got %s", s.Rows[1].Status)
	}
	checkClaimInvariant(t, s)

	// Clearing a CREATE_NEW row drops the sentinel without touching claims.
	if err := s.CreateNew("csv_1"); err != nil {
		t.Fatalf("create-new failed: %v", err)
	}
	if err := s.Clear("csv_1"); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if s.Rows[1].Status != StatusUnmatched || s.Rows[1].MatchedID != "" {
		t.Fatalf("expected UNMATCHED, got %s / %q", s.Rows[1].Status, s.Rows[1].MatchedID)
	}
	checkClaimInvariant(t, s)
}

func TestAlreadyImportedSplit(t *testing.T) {
	csvRows := []CsvRecord{
		{ID: "csv_0", OrderID: "ord-1", TransactionTime: baseTime, Amount: 50000},
		{ID: "csv_1", OrderID: "ord-2", TransactionTime: baseTime, Amount: 60000},
		{ID: "csv_2", TransactionTime: baseTime, Amount: 70000},
	}
	dbRows := []DbRecord{dbRow("tx1", 50000, baseTime)}

	s := NewSession("sess", csvRows, dbRows, []string{"ord-1"})

	if len(s.AlreadyImported) != 1 || s.AlreadyImported[0].ID != "csv_0" {
		t.Fatalf("expected csv_0 flagged as already imported, got %+v", s.AlreadyImported)
	}
	if len(s.Rows) != 2 {
		t.Fatalf("expected 2 matchable rows, got %d", len(s.Rows))
	}
	// tx1 must not be claimed by the excluded row.
	if s.Rows[0].Csv.ID != "csv_1" {
		t.Fatalf("row order should be preserved, got %s first", s.Rows[0].Csv.ID)
	}
}

func TestFullyImportedCSVYieldsNoRows(t *testing.T) {
	csvRows := []CsvRecord{
		{ID: "csv_0", OrderID: "ord-1", TransactionTime: baseTime, Amount: 50000},
		{ID: "csv_1", OrderID: "ord-2", TransactionTime: baseTime, Amount: 60000},
	}
	s := NewSession("sess", csvRows, nil, []string{"ord-1", "ord-2"})

	if len(s.Rows) != 0 {
		t.Fatalf("expected no reconciliation rows, got %d", len(s.Rows))
	}
	if len(s.AlreadyImported) != 2 {
		t.Fatalf("expected whole CSV flagged as imported, got %d", len(s.AlreadyImported))
	}
	if len(s.Instructions()) != 0 {
		t.Fatal("imported rows must never be re-submitted")
	}
}

func TestStats(t *testing.T) {
	s := reviewSession(t)
	if err := s.Match("csv_1", "tx3"); err != nil {
		t.Fatalf("match failed: %v", err)
	}

	st := s.Stats()
	if st.CsvTotal != 3 || st.DbTotal != 4 {
		t.Fatalf("unexpected totals: %+v", st)
	}
	if st.AutoMatched != 1 || st.ManualMatched != 1 || st.NeedsReview != 1 {
		t.Fatalf("unexpected status counts: %+v", st)
	}
	if st.UnmatchedDb != 2 {
		t.Fatalf("expected 2 unmatched DB rows, got %d", st.UnmatchedDb)
	}
}

func containsDb(records []DbRecord, id string) bool {
	for _, rec := range records {
		if rec.ID == id {
			return true
		}
	}
	return false
}
