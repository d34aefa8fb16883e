package matching

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	ErrRowNotFound         = errors.New("reconciliation row not found")
	ErrTransactionNotFound = errors.New("transaction not found in session pool")
	ErrAlreadyClaimed      = errors.New("transaction already claimed by another row")
	ErrRowImmutable        = errors.New("auto-matched rows cannot be overridden")
)

// Session holds the outcome of one CSV upload plus the operator's manual
// overrides. The claimed set and the row list are always updated together
// under the session lock.
type Session struct {
	ID              string      `json:"id"`
	Rows            []Row       `json:"rows"`
	AlreadyImported []CsvRecord `json:"alreadyImported"`
	UnmatchedDB     []DbRecord  `json:"unmatchedDb"`
	CreatedAt       time.Time   `json:"createdAt"`

	pool    []DbRecord
	claimed map[string]bool
	mu      sync.Mutex
}

// NewSession filters out rows whose order id was reconciled in a previous
// import, matches the remainder and returns the mutable session aggregate.
func NewSession(id string, csvRows []CsvRecord, dbRows []DbRecord, existingOrderIDs []string) *Session {
	existing := make(map[string]bool, len(existingOrderIDs))
	for _, oid := range existingOrderIDs {
		if oid != "" {
			existing[oid] = true
		}
	}

	var fresh, imported []CsvRecord
	for _, row := range csvRows {
		if row.OrderID != "" && existing[row.OrderID] {
			imported = append(imported, row)
		} else {
			fresh = append(fresh, row)
		}
	}

	outcome := Reconcile(fresh, dbRows)

	return &Session{
		ID:              id,
		Rows:            outcome.Rows,
		AlreadyImported: imported,
		UnmatchedDB:     outcome.UnmatchedDB,
		CreatedAt:       time.Now(),
		pool:            dbRows,
		claimed:         outcome.ClaimedIDs,
	}
}

// Match binds a row to a specific transaction id. Re-selecting the id the
// row already holds is a no-op; an id held by another row is rejected.
func (s *Session) Match(rowID, txID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := s.overridableRow(rowID)
	if err != nil {
		return err
	}
	if txID == "" || txID == CreateNewID {
		return ErrTransactionNotFound
	}
	if s.find(txID) == nil {
		return ErrTransactionNotFound
	}
	if row.MatchedID == txID {
		return nil
	}
	if s.claimed[txID] {
		return ErrAlreadyClaimed
	}

	s.release(row)
	row.Status = StatusManualMatched
	row.MatchedID = txID
	s.claimed[txID] = true
	s.removeUnmatchedDB(txID)
	return nil
}

// CreateNew marks a row for creation of a brand new transaction, releasing
// any real id the row held.
func (s *Session) CreateNew(rowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := s.overridableRow(rowID)
	if err != nil {
		return err
	}

	s.release(row)
	row.Status = StatusCreateNew
	row.MatchedID = CreateNewID
	return nil
}

// Clear drops the row's binding. The row reverts to NEEDS_REVIEW when it
// still has multiple candidates, otherwise UNMATCHED.
func (s *Session) Clear(rowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := s.overridableRow(rowID)
	if err != nil {
		return err
	}

	s.release(row)
	if len(row.Candidates) > 1 {
		row.Status = StatusNeedsReview
	} else {
		row.Status = StatusUnmatched
	}
	row.MatchedID = ""
	return nil
}

// ClaimedIDs returns the currently claimed transaction ids, sorted. It is
// always equal to the union of real matched ids across rows.
func (s *Session) ClaimedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.claimed))
	for id := range s.claimed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stats summarizes the session for the operator.
type Stats struct {
	CsvTotal        int `json:"csvTotal"`
	DbTotal         int `json:"dbTotal"`
	AutoMatched     int `json:"autoMatched"`
	ManualMatched   int `json:"manualMatched"`
	CreateNew       int `json:"createNew"`
	NeedsReview     int `json:"needsReview"`
	UnmatchedCsv    int `json:"unmatchedCsv"`
	UnmatchedDb     int `json:"unmatchedDb"`
	AlreadyImported int `json:"alreadyImported"`
}

func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		CsvTotal:        len(s.Rows) + len(s.AlreadyImported),
		DbTotal:         len(s.pool),
		UnmatchedDb:     len(s.UnmatchedDB),
		AlreadyImported: len(s.AlreadyImported),
	}
	for _, row := range s.Rows {
		switch row.Status {
		case StatusAutoMatched:
			st.AutoMatched++
		case StatusManualMatched:
			st.ManualMatched++
		case StatusCreateNew:
			st.CreateNew++
		case StatusNeedsReview:
			st.NeedsReview++
		case StatusUnmatched:
			st.UnmatchedCsv++
		}
	}
	return st
}

// Snapshot returns copies of the mutable slices for rendering or export,
// taken under the session lock.
func (s *Session) Snapshot() (rows []Row, imported []CsvRecord, unmatchedDB []DbRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows = append(rows, s.Rows...)
	imported = append(imported, s.AlreadyImported...)
	unmatchedDB = append(unmatchedDB, s.UnmatchedDB...)
	return rows, imported, unmatchedDB
}

func (s *Session) overridableRow(rowID string) (*Row, error) {
	for i := range s.Rows {
		if s.Rows[i].Csv.ID == rowID {
			if s.Rows[i].Status == StatusAutoMatched {
				return nil, ErrRowImmutable
			}
			return &s.Rows[i], nil
		}
	}
	return nil, ErrRowNotFound
}

func (s *Session) find(txID string) *DbRecord {
	for i := range s.pool {
		if s.pool[i].ID == txID {
			return &s.pool[i]
		}
	}
	return nil
}

// release returns the row's current real claim, if any, to the unmatched
// pool. Sentinel and empty ids release nothing.
func (s *Session) release(row *Row) {
	old := row.MatchedID
	if old == "" || old == CreateNewID {
		return
	}
	delete(s.claimed, old)
	if db := s.find(old); db != nil {
		s.UnmatchedDB = append(s.UnmatchedDB, *db)
	}
	row.MatchedID = ""
}

func (s *Session) removeUnmatchedDB(txID string) {
	for i := range s.UnmatchedDB {
		if s.UnmatchedDB[i].ID == txID {
			s.UnmatchedDB = append(s.UnmatchedDB[:i], s.UnmatchedDB[i+1:]...)
			return
		}
	}
}
