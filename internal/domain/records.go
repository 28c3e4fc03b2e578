package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Transaction is one normalized expense record at the engine boundary.
// Loaders produce it; the engine treats it as read-only. Amounts are
// integer cents, never floats.
type Transaction struct {
	ID          string     // unique within the corpus
	Employee    string     // employee identifier
	Date        civil.Date // day granularity
	AmountCents int64
	Description string
	Category    string
}

// Validate reports why a transaction cannot be audited. A failing
// transaction is skipped with a warning, not fatal to the batch.
func (t Transaction) Validate() error {
	var missing []string
	if t.ID == "" {
		missing = append(missing, "id")
	}
	if !t.Date.IsValid() {
		missing = append(missing, "date")
	}
	if t.AmountCents <= 0 {
		missing = append(missing, "amount")
	}
	if len(missing) > 0 {
		return fmt.Errorf("transaction %q: missing %s", t.ID, strings.Join(missing, ", "))
	}
	return nil
}

// Message is one normalized correspondence record (an email).
type Message struct {
	ID         string
	Sender     string
	Recipients []string // ordered as they appeared
	Date       time.Time
	Subject    string
	Body       string
}

// Validate reports why a message cannot be correlated.
func (m Message) Validate() error {
	var missing []string
	if m.ID == "" {
		missing = append(missing, "id")
	}
	if m.Sender == "" {
		missing = append(missing, "sender")
	}
	if m.Date.IsZero() {
		missing = append(missing, "date")
	}
	if strings.TrimSpace(m.Body) == "" {
		missing = append(missing, "body")
	}
	if len(missing) > 0 {
		return fmt.Errorf("message %q: missing %s", m.ID, strings.Join(missing, ", "))
	}
	return nil
}

// Participants returns the sender plus all recipients.
func (m Message) Participants() []string {
	out := make([]string, 0, len(m.Recipients)+1)
	out = append(out, m.Sender)
	out = append(out, m.Recipients...)
	return out
}

// Corpus is the immutable input set for one audit run. Findings
// reference records here by identifier; nothing is copied out.
type Corpus struct {
	Transactions []Transaction
	Messages     []Message

	txByID  map[string]int
	msgByID map[string]int
}

// NewCorpus indexes the loaded records. Input slices are not copied;
// callers must not mutate them for the lifetime of the run.
func NewCorpus(txs []Transaction, msgs []Message) *Corpus {
	c := &Corpus{
		Transactions: txs,
		Messages:     msgs,
		txByID:       make(map[string]int, len(txs)),
		msgByID:      make(map[string]int, len(msgs)),
	}
	for i, t := range txs {
		c.txByID[t.ID] = i
	}
	for i, m := range msgs {
		c.msgByID[m.ID] = i
	}
	return c
}

// TransactionByID looks up a transaction in the corpus.
func (c *Corpus) TransactionByID(id string) (Transaction, bool) {
	i, ok := c.txByID[id]
	if !ok {
		return Transaction{}, false
	}
	return c.Transactions[i], true
}

// MessageByID looks up a message in the corpus.
func (c *Corpus) MessageByID(id string) (Message, bool) {
	i, ok := c.msgByID[id]
	if !ok {
		return Message{}, false
	}
	return c.Messages[i], true
}

// HasRecord reports whether any record (transaction or message) with
// the given identifier exists in the corpus.
func (c *Corpus) HasRecord(id string) bool {
	if _, ok := c.txByID[id]; ok {
		return true
	}
	_, ok := c.msgByID[id]
	return ok
}

// RecordDate returns the calendar date of the identified record.
func (c *Corpus) RecordDate(id string) (civil.Date, bool) {
	if t, ok := c.TransactionByID(id); ok {
		return t.Date, true
	}
	if m, ok := c.MessageByID(id); ok {
		return civil.DateOf(m.Date), true
	}
	return civil.Date{}, false
}

// FormatCents renders an integer-cent amount as a decimal string,
// e.g. 45010 -> "450.10".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// SortIDs returns a sorted copy of the given identifiers. Finding
// identity is derived from the sorted source-record set, so ordering
// must be stable regardless of emission order.
func SortIDs(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	sort.Strings(out)
	return out
}
