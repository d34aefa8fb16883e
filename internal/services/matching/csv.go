package matching

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Timestamp layouts seen in provider exports.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02/01/2006 15:04:05",
}

// ParseSettlementCSV converts the provider's delimited export into ordered
// CsvRecords. The header row is mapped case-insensitively to the canonical
// fields; unrecognized columns are ignored. Each data row gets a synthetic
// id csv_<i> (0-based over parsed rows) so duplicates stay distinguishable.
// Only rows with a parseable timestamp, a positive amount and status
// SETTLEMENT are retained.
func ParseSettlementCSV(r io.Reader) ([]CsvRecord, error) {
	br := bufio.NewReader(r)
	sample, _ := br.Peek(1024)

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	if bytes.Contains(sample, []byte(",")) {
		reader.Comma = ','
	} else if bytes.Contains(sample, []byte("\t")) {
		reader.Comma = '\t'
	}

	headerRow, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("cannot read CSV header: %w", err)
	}

	cols := mapHeader(headerRow)

	var out []CsvRecord
	index := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // skip malformed rows
		}
		if len(record) == 0 || strings.Join(record, "") == "" {
			continue
		}

		rec := CsvRecord{
			ID:      fmt.Sprintf("csv_%d", index),
			OrderID: field(record, cols.orderID),
		}
		index++

		rec.Amount = parseAmount(field(record, cols.amount))
		if net := field(record, cols.netAmount); net != "" {
			if v, err := strconv.ParseFloat(net, 64); err == nil {
				rec.NetAmount = &v
			}
		}

		rawTime := field(record, cols.transactionTime)
		parsed, ok := parseTimestamp(rawTime)
		if !ok {
			continue
		}
		rec.TransactionTime = parsed

		if rec.Amount <= 0 {
			continue
		}
		if field(record, cols.status) != SettlementStatus {
			continue
		}

		out = append(out, rec)
	}

	return out, nil
}

type headerIndex struct {
	orderID         int
	transactionTime int
	amount          int
	netAmount       int
	status          int
}

func mapHeader(header []string) headerIndex {
	cols := headerIndex{orderID: -1, transactionTime: -1, amount: -1, netAmount: -1, status: -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "order id":
			cols.orderID = i
		case "transaction time":
			cols.transactionTime = i
		case "amount":
			cols.amount = i
		case "nett amount":
			cols.netAmount = i
		case "transaction status":
			cols.status = i
		}
	}
	return cols
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func parseAmount(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
