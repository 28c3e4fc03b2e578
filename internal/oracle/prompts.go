package oracle

import (
	"fmt"
	"strings"

	"github.com/rmachado/expense-audit/internal/domain"
)

const verdictFormat = `Respond with STRICT JSON only (no markdown, no code fences, no extra text).
The response must begin with "{" and end with "}".

Format:
{
  "violation": true or false,
  "severity": 0-10,
  "rationale": "brief explanation",
  "quotes": ["verbatim excerpt from the evidence", "..."]
}`

var strategyInstructions = map[string]string{
	"coordination": `You are a corporate compliance auditor. Analyse the message and the
related transactions for coordinated fraud.

Signals:
- multiple people splitting purchases to stay under approval limits
- agreeing on a shared cover story for an expense
- agreements not to report information
- spreading responsibility to frustrate audits`,

	"false_justification": `You are a corporate compliance auditor reviewing expense
justifications. Decide whether the justification in the message is
false, exaggerated or misleading.

Signals:
- a "client" is claimed but never named
- an "emergency" with no concrete details
- vague or generic justifications
- contradictions between the message and the purchase descriptions`,

	"concealment": `You are a corporate compliance auditor investigating concealment.
Decide whether the message attempts to hide relevant information.

Signals:
- inappropriate requests for secrecy
- "don't mention this to..."
- agreements to omit facts
- destroying or not recording information`,

	"personal_use": `You are a corporate compliance auditor. Decide whether the message
and related transactions show company funds spent for personal benefit.

Signals:
- purchases for family, home or private events
- expenses with no plausible business purpose
- reimbursement requests for private costs`,

	"conflict_of_interest": `You are a corporate compliance auditor. Decide whether the message
and related transactions show an undisclosed conflict of interest.

Signals:
- directing spend to a relative's or the employee's own business
- favours exchanged around purchasing decisions
- undisclosed personal stakes in a vendor`,
}

const genericInstructions = `You are a corporate compliance auditor. Decide whether the message and
related transactions indicate a policy violation.`

// InstructionsFor returns the instruction template for a strategy,
// falling back to a generic auditor prompt for unknown strategies.
func InstructionsFor(strategy string) string {
	instr, ok := strategyInstructions[strategy]
	if !ok {
		instr = genericInstructions
	}
	return instr + "\n\n" + verdictFormat
}

// FormatEvidence renders an evidence bundle as the text block handed
// to the oracle: the message followed by the correlated transactions.
func FormatEvidence(b domain.EvidenceBundle) string {
	var sb strings.Builder

	sb.WriteString("MESSAGE:\n")
	fmt.Fprintf(&sb, "From: %s\n", b.Message.Sender)
	fmt.Fprintf(&sb, "To: %s\n", strings.Join(b.Message.Recipients, ", "))
	if b.Message.Subject != "" {
		fmt.Fprintf(&sb, "Subject: %s\n", b.Message.Subject)
	}
	fmt.Fprintf(&sb, "Date: %s\n\n", b.Message.Date.Format("2006-01-02"))
	sb.WriteString(b.Message.Body)
	sb.WriteString("\n")

	if len(b.Transactions) > 0 {
		sb.WriteString("\nRELATED TRANSACTIONS:\n")
		for _, t := range b.Transactions {
			fmt.Fprintf(&sb, "- %s | %s | $%s | %s (%s)\n",
				t.ID, t.Employee, domain.FormatCents(t.AmountCents), t.Description, t.Date)
		}
	}

	return sb.String()
}
