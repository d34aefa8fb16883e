package reconciliation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"kopiaku-reconciliation-backend/internal/models"
	"kopiaku-reconciliation-backend/internal/services/matching"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrSessionNotFound = errors.New("reconciliation session not found")

// Backend is the narrow contract the engine needs from the transaction
// store: fetch candidates once per upload, submit the batch once at the end.
type Backend interface {
	FetchCandidates(ctx context.Context, orderIDs []string) ([]matching.DbRecord, []string, error)
	SubmitBatch(ctx context.Context, instructions []matching.Instruction) error
}

type Service struct {
	backend  Backend
	db       *gorm.DB
	sessions sync.Map // session id -> *sessionState
}

type sessionState struct {
	session *matching.Session
	batchID uuid.UUID
}

func NewService(backend Backend, db *gorm.DB) *Service {
	return &Service{
		backend: backend,
		db:      db,
	}
}

// SessionView is the JSON shape the POS front end consumes.
type SessionView struct {
	ID              string               `json:"id"`
	Rows            []matching.Row       `json:"rows"`
	AlreadyImported []matching.CsvRecord `json:"alreadyImported"`
	UnmatchedDb     []matching.DbRecord  `json:"unmatchedDb"`
	Stats           matching.Stats       `json:"stats"`
}

// StartSession runs the full pipeline for one uploaded CSV: normalize,
// fetch candidates, match, persist the batch row. A parse or fetch failure
// leaves no session behind.
func (s *Service) StartSession(ctx context.Context, filename string, file io.Reader) (*SessionView, error) {
	csvRows, err := matching.ParseSettlementCSV(file)
	if err != nil {
		return nil, err
	}

	var (
		dbRecords []matching.DbRecord
		existing  []string
	)
	if len(csvRows) > 0 {
		orderIDs := make([]string, 0, len(csvRows))
		for _, row := range csvRows {
			if row.OrderID != "" {
				orderIDs = append(orderIDs, row.OrderID)
			}
		}
		dbRecords, existing, err = s.backend.FetchCandidates(ctx, orderIDs)
		if err != nil {
			return nil, fmt.Errorf("fetch candidates: %w", err)
		}
	}

	sess := matching.NewSession(uuid.NewString(), csvRows, dbRecords, existing)
	stats := sess.Stats()

	batch := models.ReconciliationBatch{
		ID:                   uuid.New(),
		SessionID:            sess.ID,
		Filename:             filename,
		CsvRowCount:          stats.CsvTotal,
		AutoMatchedCount:     stats.AutoMatched,
		NeedsReviewCount:     stats.NeedsReview,
		UnmatchedCount:       stats.UnmatchedCsv,
		AlreadyImportedCount: stats.AlreadyImported,
		Status:               models.BatchOpen,
		StartedAt:            time.Now(),
		CreatedAt:            time.Now(),
	}
	if err := s.db.Create(&batch).Error; err != nil {
		return nil, err
	}

	s.sessions.Store(sess.ID, &sessionState{session: sess, batchID: batch.ID})

	log.Info().
		Str("session", sess.ID).
		Str("filename", filename).
		Int("csv_rows", stats.CsvTotal).
		Int("auto_matched", stats.AutoMatched).
		Int("already_imported", stats.AlreadyImported).
		Msg("reconciliation session started")

	return s.view(sess), nil
}

func (s *Service) GetSession(sessionID string) (*SessionView, error) {
	state, err := s.state(sessionID)
	if err != nil {
		return nil, err
	}
	return s.view(state.session), nil
}

// Session returns the raw session for export rendering.
func (s *Service) Session(sessionID string) (*matching.Session, error) {
	state, err := s.state(sessionID)
	if err != nil {
		return nil, err
	}
	return state.session, nil
}

// MatchRow binds a row to a transaction id and records the override.
func (s *Service) MatchRow(sessionID, rowID, txID string) (*SessionView, error) {
	state, err := s.state(sessionID)
	if err != nil {
		return nil, err
	}
	prev := s.currentMatch(state.session, rowID)
	if err := state.session.Match(rowID, txID); err != nil {
		return nil, err
	}
	s.audit(state.session, rowID, "manual_match", prev, &txID)
	return s.view(state.session), nil
}

// CreateNewRow marks a row for creation of a new transaction.
func (s *Service) CreateNewRow(sessionID, rowID string) (*SessionView, error) {
	state, err := s.state(sessionID)
	if err != nil {
		return nil, err
	}
	prev := s.currentMatch(state.session, rowID)
	if err := state.session.CreateNew(rowID); err != nil {
		return nil, err
	}
	s.audit(state.session, rowID, "create_new", prev, nil)
	return s.view(state.session), nil
}

// ClearRow drops a row's binding.
func (s *Service) ClearRow(sessionID, rowID string) (*SessionView, error) {
	state, err := s.state(sessionID)
	if err != nil {
		return nil, err
	}
	prev := s.currentMatch(state.session, rowID)
	if err := state.session.Clear(rowID); err != nil {
		return nil, err
	}
	s.audit(state.session, rowID, "clear", prev, nil)
	return s.view(state.session), nil
}

// Submit sends the whole batch to the store. On failure the session stays
// open so the operator can retry unchanged.
func (s *Service) Submit(ctx context.Context, sessionID string) (int, error) {
	state, err := s.state(sessionID)
	if err != nil {
		return 0, err
	}

	instructions := state.session.Instructions()
	if err := s.backend.SubmitBatch(ctx, instructions); err != nil {
		log.Error().Err(err).Str("session", sessionID).Msg("reconciliation submission failed")
		return 0, err
	}

	stats := state.session.Stats()
	now := time.Now()
	s.db.Model(&models.ReconciliationBatch{}).
		Where("id = ?", state.batchID).
		Updates(map[string]interface{}{
			"status":             models.BatchSubmitted,
			"auto_matched_count": stats.AutoMatched,
			"unmatched_count":    stats.UnmatchedCsv,
			"completed_at":       now,
		})

	s.sessions.Delete(sessionID)

	log.Info().
		Str("session", sessionID).
		Int("instructions", len(instructions)).
		Msg("reconciliation submitted")

	return len(instructions), nil
}

// Discard drops an open session without submitting.
func (s *Service) Discard(sessionID string) error {
	state, err := s.state(sessionID)
	if err != nil {
		return err
	}
	s.db.Model(&models.ReconciliationBatch{}).
		Where("id = ?", state.batchID).
		Update("status", models.BatchDiscarded)
	s.sessions.Delete(sessionID)
	return nil
}

func (s *Service) state(sessionID string) (*sessionState, error) {
	val, ok := s.sessions.Load(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return val.(*sessionState), nil
}

func (s *Service) view(sess *matching.Session) *SessionView {
	rows, imported, unmatchedDB := sess.Snapshot()
	return &SessionView{
		ID:              sess.ID,
		Rows:            rows,
		AlreadyImported: imported,
		UnmatchedDb:     unmatchedDB,
		Stats:           sess.Stats(),
	}
}

func (s *Service) currentMatch(sess *matching.Session, rowID string) *string {
	rows, _, _ := sess.Snapshot()
	for _, row := range rows {
		if row.Csv.ID == rowID && row.MatchedID != "" {
			id := row.MatchedID
			return &id
		}
	}
	return nil
}

func (s *Service) audit(sess *matching.Session, rowID, action string, prev, next *string) {
	var details datatypes.JSON
	rows, _, _ := sess.Snapshot()
	for _, row := range rows {
		if row.Csv.ID == rowID && len(row.Candidates) > 0 {
			if b, err := json.Marshal(row.Candidates); err == nil {
				details = b
			}
			break
		}
	}

	entry := models.MatchAuditLog{
		ID:            uuid.New(),
		SessionID:     sess.ID,
		CsvRowID:      rowID,
		Action:        action,
		PreviousMatch: prev,
		NewMatch:      next,
		Details:       details,
		CreatedAt:     time.Now(),
	}
	if err := s.db.Create(&entry).Error; err != nil {
		log.Warn().Err(err).Str("session", sess.ID).Msg("audit log write failed")
	}
}
