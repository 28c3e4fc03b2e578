// Package loader reads transaction and message corpora from their
// external formats and hands the engine already-normalized records.
// Malformed records are skipped and counted, never fatal.
package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/rmachado/expense-audit/internal/domain"
)

// transaction CSV column order: id, employee, date, amount,
// description, category. A header row is detected and skipped.
const transactionColumns = 6

// LoadTransactions parses transaction records from CSV. It returns the
// valid records plus the count of rows skipped as malformed.
func LoadTransactions(r io.Reader, log zerolog.Logger) ([]domain.Transaction, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var (
		txs     []domain.Transaction
		skipped int
		line    int
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read transaction CSV: %w", err)
		}
		line++

		if line == 1 && isHeaderRow(record) {
			continue
		}
		tx, err := parseTransactionRow(record)
		if err != nil {
			log.Warn().Err(err).Int("line", line).Msg("skipping malformed transaction row")
			skipped++
			continue
		}
		txs = append(txs, tx)
	}
	return txs, skipped, nil
}

func isHeaderRow(record []string) bool {
	return len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), "id")
}

func parseTransactionRow(record []string) (domain.Transaction, error) {
	if len(record) != transactionColumns {
		return domain.Transaction{}, fmt.Errorf("want %d columns, got %d", transactionColumns, len(record))
	}

	date, err := civil.ParseDate(strings.TrimSpace(record[2]))
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("invalid date %q: %w", record[2], err)
	}
	cents, err := ParseCents(record[3])
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("invalid amount %q: %w", record[3], err)
	}

	tx := domain.Transaction{
		ID:          strings.TrimSpace(record[0]),
		Employee:    strings.TrimSpace(record[1]),
		Date:        date,
		AmountCents: cents,
		Description: strings.TrimSpace(record[4]),
		Category:    strings.TrimSpace(record[5]),
	}
	if err := tx.Validate(); err != nil {
		return domain.Transaction{}, err
	}
	return tx, nil
}

// ParseCents converts a decimal currency string to integer cents
// without ever passing through a binary float. Currency symbols,
// thousands separators and whitespace are tolerated; more than two
// fractional digits are not.
func ParseCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	negative := false
	if s[0] == '-' {
		negative = true
		s = s[1:]
	}

	whole, frac := s, ""
	if dot := strings.IndexByte(s, '.'); dot != -1 {
		whole, frac = s[:dot], s[dot+1:]
	}
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("no digits in amount")
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("more than two fractional digits")
	}
	for len(frac) < 2 {
		frac += "0"
	}

	var cents int64
	for _, digits := range []string{whole, frac} {
		for _, c := range digits {
			if c < '0' || c > '9' {
				return 0, fmt.Errorf("unexpected character %q", c)
			}
			cents = cents*10 + int64(c-'0')
		}
	}
	if negative {
		cents = -cents
	}
	return cents, nil
}
