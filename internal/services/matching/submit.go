package matching

import "time"

// VerifyInstruction attaches a settled CSV row to an existing transaction.
type VerifyInstruction struct {
	TransactionID   string    `json:"transactionId"`
	OrderID         string    `json:"qrisOrderId,omitempty"`
	TransactionTime time.Time `json:"qrisTransactionTime"`
	NetAmount       *float64  `json:"netAmount,omitempty"`
}

// CreateInstruction records a settled CSV row that has no POS counterpart.
type CreateInstruction struct {
	OrderID         string    `json:"qrisOrderId,omitempty"`
	TransactionTime time.Time `json:"qrisTransactionTime"`
	TotalAmount     float64   `json:"totalAmount"`
	NetAmount       *float64  `json:"netAmount,omitempty"`
}

// Instruction is one entry of the submission batch; exactly one field is set.
type Instruction struct {
	Verify    *VerifyInstruction `json:"verify,omitempty"`
	CreateNew *CreateInstruction `json:"createNew,omitempty"`
}

// Instructions builds the submission batch: verify instructions for auto
// matches, then manual matches, then create-new instructions, each group in
// row order. NEEDS_REVIEW and UNMATCHED rows are never submitted.
func (s *Session) Instructions() []Instruction {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Instruction
	for _, row := range s.Rows {
		if row.Status == StatusAutoMatched {
			out = append(out, verifyInstruction(row))
		}
	}
	for _, row := range s.Rows {
		if row.Status == StatusManualMatched {
			out = append(out, verifyInstruction(row))
		}
	}
	for _, row := range s.Rows {
		if row.Status == StatusCreateNew {
			out = append(out, Instruction{CreateNew: &CreateInstruction{
				OrderID:         row.Csv.OrderID,
				TransactionTime: row.Csv.TransactionTime,
				TotalAmount:     row.Csv.Amount,
				NetAmount:       row.Csv.NetAmount,
			}})
		}
	}
	return out
}

func verifyInstruction(row Row) Instruction {
	return Instruction{Verify: &VerifyInstruction{
		TransactionID:   row.MatchedID,
		OrderID:         row.Csv.OrderID,
		TransactionTime: row.Csv.TransactionTime,
		NetAmount:       row.Csv.NetAmount,
	}}
}
