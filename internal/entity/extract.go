package entity

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Currency is one of the fixed set of currencies the desk operates in.
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	JPY Currency = "JPY"
)

// Currencies lists the supported currencies in detection order. Detection is
// first-match-wins, so the order here is part of the extraction contract.
var Currencies = []Currency{USD, EUR, GBP, JPY}

// Entities holds zero-or-one of each typed token extracted from free text.
// An empty field means the pattern did not match; callers must never guess.
type Entities struct {
	AccountID     string
	Currency      Currency
	Amount        *float64
	MessageID     string
	TransactionID string
	Date          string
}

var (
	accountRe = regexp.MustCompile(`(?i)\bACC-\d+-(?:USD|EUR|GBP|JPY)\b`)
	txnRe     = regexp.MustCompile(`(?i)\bTXN-[A-Z0-9]+\b`)
	messageRe = regexp.MustCompile(`(?i)\bMSG-[A-Z0-9]+\b`)
	dateRe    = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	amountRe  = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
)

// Extract pulls typed tokens out of raw free text. It is pure and
// deterministic: the same text always yields the same entities.
func Extract(text string) Entities {
	var e Entities

	if m := accountRe.FindString(text); m != "" {
		e.AccountID = strings.ToUpper(m)
	}
	if m := txnRe.FindString(text); m != "" {
		e.TransactionID = strings.ToUpper(m)
	}
	if m := messageRe.FindString(text); m != "" {
		e.MessageID = strings.ToUpper(m)
	}
	if m := dateRe.FindString(text); m != "" {
		if _, err := time.Parse("2006-01-02", m); err == nil {
			e.Date = m
		}
	}

	upper := strings.ToUpper(text)
	for _, cur := range Currencies {
		if strings.Contains(upper, string(cur)) {
			e.Currency = cur
			break
		}
	}

	// Identifiers and dates contain digits that must not be mistaken for a
	// monetary amount, so they are blanked out before the amount scan.
	scrubbed := accountRe.ReplaceAllString(text, " ")
	scrubbed = txnRe.ReplaceAllString(scrubbed, " ")
	scrubbed = messageRe.ReplaceAllString(scrubbed, " ")
	scrubbed = dateRe.ReplaceAllString(scrubbed, " ")
	if m := amountRe.FindString(scrubbed); m != "" {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64); err == nil {
			e.Amount = &v
		}
	}

	return e
}
