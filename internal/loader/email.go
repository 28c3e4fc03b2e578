package loader

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rmachado/expense-audit/internal/domain"
)

// message blocks are separated by lines of dashes or equals signs.
// Each block carries simple header lines followed by a blank line and
// the body:
//
//	Message-ID: M001
//	From: michael.scott@dundermifflin.com
//	To: dwight.schrute@dundermifflin.com, jim.halpert@dundermifflin.com
//	Date: 2024-03-11 09:30
//	Subject: supplies
//
//	body text...

var messageDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// LoadMessages parses message records from a block-structured text
// stream. It returns the valid records plus the count of blocks
// skipped as malformed. Blocks without a Message-ID header get a
// deterministic sequential identifier.
func LoadMessages(r io.Reader, log zerolog.Logger) ([]domain.Message, int, error) {
	blocks, err := splitBlocks(r)
	if err != nil {
		return nil, 0, fmt.Errorf("read message stream: %w", err)
	}

	var (
		msgs    []domain.Message
		skipped int
	)
	for i, block := range blocks {
		msg, err := parseMessageBlock(block, i+1)
		if err != nil {
			log.Warn().Err(err).Int("block", i+1).Msg("skipping malformed message block")
			skipped++
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, skipped, nil
}

func splitBlocks(r io.Reader) ([][]string, error) {
	var (
		blocks  [][]string
		current []string
	)
	flush := func() {
		for _, line := range current {
			if strings.TrimSpace(line) != "" {
				blocks = append(blocks, current)
				break
			}
		}
		current = nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if isSeparator(line) {
			flush()
			continue
		}
		current = append(current, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()
	return blocks, nil
}

func isSeparator(line string) bool {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) < 3 {
		return false
	}
	return strings.Count(trimmed, "-") == len(trimmed) || strings.Count(trimmed, "=") == len(trimmed)
}

func parseMessageBlock(lines []string, seq int) (domain.Message, error) {
	msg := domain.Message{}
	bodyStart := len(lines)

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			bodyStart = i + 1
			break
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			// Headerless block: treat everything as body.
			bodyStart = i
			break
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "message-id", "id":
			msg.ID = value
		case "from":
			msg.Sender = value
		case "to":
			for _, rcpt := range strings.Split(value, ",") {
				if rcpt = strings.TrimSpace(rcpt); rcpt != "" {
					msg.Recipients = append(msg.Recipients, rcpt)
				}
			}
		case "subject":
			msg.Subject = value
		case "date":
			d, err := parseMessageDate(value)
			if err != nil {
				return domain.Message{}, err
			}
			msg.Date = d
		}
	}

	if bodyStart < len(lines) {
		msg.Body = strings.TrimSpace(strings.Join(lines[bodyStart:], "\n"))
	}
	if msg.ID == "" {
		msg.ID = fmt.Sprintf("M%03d", seq)
	}
	if err := msg.Validate(); err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

func parseMessageDate(value string) (time.Time, error) {
	for _, layout := range messageDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid message date %q", value)
}
