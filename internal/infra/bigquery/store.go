// Package bigquery persists audit findings and serves transaction
// corpora from the configured dataset.
package bigquery

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"

	"github.com/rmachado/expense-audit/internal/config"
	"github.com/rmachado/expense-audit/internal/domain"
)

// Store wraps one BigQuery client scoped to the configured dataset.
type Store struct {
	client *bigquery.Client
	cfg    config.StorageConfig
	log    zerolog.Logger
}

func NewStore(ctx context.Context, cfg config.StorageConfig, log zerolog.Logger) (*Store, error) {
	client, err := bigquery.NewClient(ctx, cfg.Project)
	if err != nil {
		return nil, fmt.Errorf("bigquery client: %w", err)
	}
	return &Store{client: client, cfg: cfg, log: log}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// InsertFindings writes the consolidated findings of one run.
func (s *Store) InsertFindings(ctx context.Context, runID string, findings []domain.Finding) error {
	if len(findings) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([]*FindingRow, 0, len(findings))
	for _, f := range findings {
		rows = append(rows, &FindingRow{
			RunID:     runID,
			FindingID: uuid.NewString(),
			Category:  string(f.Category),
			Severity:  int64(f.Severity),
			Rule:      f.Rule,
			SourceIDs: f.SourceIDs,
			Rationale: f.Rationale,
			Quotes:    f.Quotes,
			CreatedTS: now,
		})
	}

	table := s.client.DatasetInProject(s.cfg.Project, s.cfg.Dataset).Table(s.cfg.FindingsTable)
	if err := table.Inserter().Put(ctx, rows); err != nil {
		return fmt.Errorf("insert findings: %w", err)
	}
	s.log.Info().Int("rows", len(rows)).Str("run_id", runID).Msg("findings persisted")
	return nil
}

// QueryTransactions loads the transaction corpus for an inclusive date
// range. Rows whose NUMERIC amount does not land on a whole cent are
// skipped and counted.
func (s *Store) QueryTransactions(ctx context.Context, start, end civil.Date) ([]domain.Transaction, int, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT
			t.transaction_id,
			t.employee,
			t.transaction_date,
			t.amount,
			t.description,
			t.category
		FROM %s.%s t
		WHERE t.transaction_date >= @start_date
		  AND t.transaction_date <= @end_date
		ORDER BY t.transaction_date, t.transaction_id
	`, s.cfg.Dataset, s.cfg.TransactionsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "start_date", Value: start.String()},
		{Name: "end_date", Value: end.String()},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("query transactions: %w", err)
	}

	var (
		txs     []domain.Transaction
		skipped int
	)
	for {
		var r TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("query transactions: iter next: %w", err)
		}

		cents, ok := ratToCents(r.Amount)
		if !ok {
			s.log.Warn().Str("transaction_id", r.TransactionID).Msg("skipping transaction with non-cent amount")
			skipped++
			continue
		}
		txs = append(txs, domain.Transaction{
			ID:          r.TransactionID,
			Employee:    r.Employee,
			Date:        r.TransactionDate,
			AmountCents: cents,
			Description: r.Description,
			Category:    r.Category,
		})
	}
	return txs, skipped, nil
}

// ratToCents converts a NUMERIC amount to integer cents exactly.
func ratToCents(amount *big.Rat) (int64, bool) {
	if amount == nil {
		return 0, false
	}
	scaled := new(big.Rat).Mul(amount, big.NewRat(100, 1))
	if !scaled.IsInt() {
		return 0, false
	}
	n := scaled.Num()
	if !n.IsInt64() {
		return 0, false
	}
	return n.Int64(), true
}
