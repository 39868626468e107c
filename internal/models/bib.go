package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidBibNumber is returned when a bib number fails validation.
var ErrInvalidBibNumber = errors.New("invalid bib number")

const maxBibLength = 32

// BibNumber identifies a runner. It is the partition key for every per-runner
// row and is always stored trimmed and upper-cased.
type BibNumber string

// ParseBibNumber normalizes raw input and validates the allowed charset.
func ParseBibNumber(raw string) (BibNumber, error) {
	bib := strings.ToUpper(strings.TrimSpace(raw))
	if bib == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidBibNumber)
	}
	if len(bib) > maxBibLength {
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidBibNumber, maxBibLength)
	}
	for _, r := range bib {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '-' {
			return "", fmt.Errorf("%w: unexpected character %q", ErrInvalidBibNumber, r)
		}
	}
	return BibNumber(bib), nil
}

func (b BibNumber) String() string {
	return string(b)
}
