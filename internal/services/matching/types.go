package matching

import "time"

// Row statuses mirror what the POS front end renders.
const (
	StatusAutoMatched   = "AUTO_MATCHED"
	StatusManualMatched = "MANUAL_MATCHED"
	StatusCreateNew     = "CREATE_NEW"
	StatusNeedsReview   = "NEEDS_REVIEW"
	StatusUnmatched     = "UNMATCHED"
)

// CreateNewID is the sentinel matched id for rows the operator marked as
// "create new". It must never collide with a real transaction id.
const CreateNewID = "create_new"

// SettlementStatus is the only CSV transaction status we import. The
// comparison is case-sensitive: the provider export uses the literal value.
const SettlementStatus = "SETTLEMENT"

// CsvRecord is one settled row from the provider's CSV export.
// NetAmount is nil when the column is missing or unparseable; a net amount
// of zero is a real value and keeps its pointer.
type CsvRecord struct {
	ID              string    `json:"id"`
	OrderID         string    `json:"orderId,omitempty"`
	TransactionTime time.Time `json:"transactionTime"`
	Amount          float64   `json:"amount"`
	NetAmount       *float64  `json:"netAmount,omitempty"`
}

// DbRecord is a read-only snapshot of an unverified POS transaction.
type DbRecord struct {
	ID              string    `json:"id"`
	OrderID         string    `json:"orderId,omitempty"`
	TransactionDate time.Time `json:"transactionDate"`
	TotalAmount     float64   `json:"totalAmount"`
}

// Candidate is a scored potential match for one CSV row.
type Candidate struct {
	DbRecord
	Score       int `json:"score"`
	TimeDiffSec int `json:"timeDiffSec"`
}

// Row is the per-CSV-row reconciliation outcome. MatchedID is empty unless
// the row is bound; CREATE_NEW rows carry the CreateNewID sentinel.
type Row struct {
	Csv        CsvRecord   `json:"csv"`
	Status     string      `json:"status"`
	MatchedID  string      `json:"matchedId,omitempty"`
	Candidates []Candidate `json:"candidates,omitempty"`
}
