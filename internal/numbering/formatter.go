package numbering

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const DefaultQuoteNumberTemplate = "QT-{SEQ4}"

var (
	ErrEmptyTemplate   = errors.New("number template is empty")
	ErrInvalidSequence = errors.New("invalid sequence")
	ErrUnknownToken    = errors.New("unknown number template token")
	ErrMissingSequence = errors.New("number template has no sequence token")
)

// tokenRe matches {NAME} and {NAMEn}; the width suffix is only honored for SEQ.
var tokenRe = regexp.MustCompile(`\{([A-Z]+)(\d*)\}`)

type token struct {
	name  string
	width int
}

func parseToken(m []string) (token, error) {
	tok := token{name: m[1]}
	if m[2] != "" {
		width, err := strconv.Atoi(m[2])
		if err != nil || width <= 0 || tok.name != "SEQ" {
			return token{}, fmt.Errorf("%w: %s", ErrUnknownToken, m[0])
		}
		tok.width = width
	}
	switch tok.name {
	case "YYYY", "MM", "SEQ":
		return tok, nil
	}
	return token{}, fmt.Errorf("%w: %s", ErrUnknownToken, m[0])
}

// ValidateTemplate checks that every token is known and that a sequence token
// is present.
func ValidateTemplate(template string) error {
	if strings.TrimSpace(template) == "" {
		return ErrEmptyTemplate
	}
	hasSeq := false
	for _, m := range tokenRe.FindAllStringSubmatch(template, -1) {
		tok, err := parseToken(m)
		if err != nil {
			return err
		}
		hasSeq = hasSeq || tok.name == "SEQ"
	}
	if strings.ContainsAny(tokenRe.ReplaceAllString(template, ""), "{}") {
		return fmt.Errorf("%w: stray brace in %q", ErrUnknownToken, template)
	}
	if !hasSeq {
		return ErrMissingSequence
	}
	return nil
}

// FormatNumber renders a document number from template, issue date and sequence.
//
// Tokens: {YYYY} {MM} {SEQ} and {SEQn} for a sequence zero-padded to n digits.
// A sequence wider than n is printed in full.
func FormatNumber(template string, issuedAt time.Time, seq int64) (string, error) {
	if err := ValidateTemplate(template); err != nil {
		return "", err
	}
	if seq <= 0 {
		return "", fmt.Errorf("%w: %d", ErrInvalidSequence, seq)
	}

	issuedAt = issuedAt.UTC()
	return tokenRe.ReplaceAllStringFunc(template, func(raw string) string {
		tok, _ := parseToken(tokenRe.FindStringSubmatch(raw))
		switch tok.name {
		case "YYYY":
			return issuedAt.Format("2006")
		case "MM":
			return issuedAt.Format("01")
		}
		return fmt.Sprintf("%0*d", tok.width, seq)
	}), nil
}
