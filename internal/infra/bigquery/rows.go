package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/civil"
)

// FindingRow is one consolidated finding in <dataset>.findings.
type FindingRow struct {
	RunID     string `bigquery:"run_id"`     // REQUIRED
	FindingID string `bigquery:"finding_id"` // REQUIRED

	Category string `bigquery:"category"` // REQUIRED
	Severity int64  `bigquery:"severity"` // REQUIRED
	Rule     string `bigquery:"rule"`     // NULLABLE

	SourceIDs []string `bigquery:"source_ids"` // REPEATED STRING
	Rationale string   `bigquery:"rationale"`  // NULLABLE
	Quotes    []string `bigquery:"quotes"`     // REPEATED STRING

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED (default CURRENT_TIMESTAMP)
}

// TransactionRow is one expense record in <dataset>.transactions.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED

	Employee        string     `bigquery:"employee"`         // REQUIRED
	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED

	Amount *big.Rat `bigquery:"amount"` // REQUIRED NUMERIC

	Description string `bigquery:"description"` // NULLABLE
	Category    string `bigquery:"category"`    // NULLABLE
}
