// Package seed holds the static demo dataset served by the mock
// collaborators. The built-in dataset can be replaced with a YAML file via
// SEED_FILE.
package seed

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Account struct {
	ID       string  `yaml:"id"`
	Name     string  `yaml:"name"`
	Currency string  `yaml:"currency"`
	Balance  float64 `yaml:"balance"`
}

type Transaction struct {
	ID          string  `yaml:"id"`
	FromAccount string  `yaml:"from_account"`
	ToAccount   string  `yaml:"to_account"`
	Amount      float64 `yaml:"amount"`
	Currency    string  `yaml:"currency"`
	Status      string  `yaml:"status"`
}

type Message struct {
	ID                 string  `yaml:"id"`
	Type               string  `yaml:"type"`
	AccountID          string  `yaml:"account_id"`
	TransactionID      string  `yaml:"transaction_id,omitempty"`
	Amount             float64 `yaml:"amount"`
	Currency           string  `yaml:"currency"`
	CounterpartyBIC    string  `yaml:"counterparty_bic"`
	BeneficiaryName    string  `yaml:"beneficiary_name"`
	BeneficiaryAccount string  `yaml:"beneficiary_account"`
	Status             string  `yaml:"status"`
}

type Fixing struct {
	Index string  `yaml:"index"`
	Tenor string  `yaml:"tenor"`
	Rate  float64 `yaml:"rate,omitempty"`
}

type Report struct {
	Name   string `yaml:"name"`
	Passed bool   `yaml:"passed"`
	Detail string `yaml:"detail,omitempty"`
}

type Redemption struct {
	Reference string  `yaml:"reference"`
	Amount    float64 `yaml:"amount"`
	Currency  string  `yaml:"currency"`
	Valid     bool    `yaml:"valid"`
}

// Data is everything the two mock collaborators serve.
type Data struct {
	Accounts       []Account     `yaml:"accounts"`
	Transactions   []Transaction `yaml:"transactions"`
	Messages       []Message     `yaml:"messages"`
	EODBlockers    []string      `yaml:"eod_blockers"`
	MissingFixings []Fixing      `yaml:"missing_fixings"`
	Reports        []Report      `yaml:"reports"`
	Redemptions    []Redemption  `yaml:"redemptions"`
}

// Load reads a YAML dataset from path.
func Load(path string) (Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Data{}, fmt.Errorf("read seed file: %w", err)
	}
	var d Data
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return Data{}, fmt.Errorf("parse seed file: %w", err)
	}
	if len(d.Accounts) == 0 {
		return Data{}, fmt.Errorf("seed file %s has no accounts", path)
	}
	return d, nil
}

// Default returns the built-in demo dataset.
func Default() Data {
	return Data{
		Accounts: []Account{
			{ID: "ACC-1001-USD", Name: "Treasury Ops USD", Currency: "USD", Balance: 2500000},
			{ID: "ACC-1002-USD", Name: "Settlement USD", Currency: "USD", Balance: 750000},
			{ID: "ACC-2001-EUR", Name: "Treasury Ops EUR", Currency: "EUR", Balance: 1200000},
			{ID: "ACC-3001-GBP", Name: "Treasury Ops GBP", Currency: "GBP", Balance: 480000},
			{ID: "ACC-4001-JPY", Name: "Treasury Ops JPY", Currency: "JPY", Balance: 90000000},
		},
		Transactions: []Transaction{
			{ID: "TXN-1001", FromAccount: "ACC-1001-USD", ToAccount: "ACC-1002-USD", Amount: 50000, Currency: "USD", Status: "VALIDATED"},
			{ID: "TXN-1002", FromAccount: "ACC-2001-EUR", ToAccount: "ACC-1001-USD", Amount: 12500, Currency: "EUR", Status: "PENDING"},
			{ID: "TXN-1003", FromAccount: "ACC-1001-USD", ToAccount: "ACC-1002-USD", Amount: 75000, Currency: "USD", Status: "VALIDATED"},
		},
		Messages: []Message{
			{ID: "MSG-2001", Type: "MT103", AccountID: "ACC-1001-USD", TransactionID: "TXN-1001", Amount: 50000, Currency: "USD",
				CounterpartyBIC: "CHASUS33", BeneficiaryName: "Northwind Capital", BeneficiaryAccount: "US12345678", Status: "CONFIRMED"},
			{ID: "MSG-2002", Type: "MT103", AccountID: "ACC-1001-USD", TransactionID: "TXN-1003", Amount: 74000, Currency: "USD",
				CounterpartyBIC: "DEUTDEFF", BeneficiaryName: "Contoso GmbH", BeneficiaryAccount: "DE98765432", Status: "CONFIRMED"},
			{ID: "MSG-2003", Type: "MT202", AccountID: "ACC-1002-USD", Amount: 10000, Currency: "USD",
				CounterpartyBIC: "BARCGB22", BeneficiaryName: "Fabrikam Ltd", BeneficiaryAccount: "GB11223344", Status: "SENT"},
			{ID: "MSG-2004", Type: "MT103", AccountID: "ACC-2001-EUR", Amount: 9000, Currency: "EUR",
				CounterpartyBIC: "BNPAFRPP", BeneficiaryName: "Adatum SA", BeneficiaryAccount: "FR55667788", Status: "CONFIRMED"},
		},
		MissingFixings: []Fixing{
			{Index: "USD-SOFR", Tenor: "3M"},
			{Index: "EUR-EURIBOR", Tenor: "6M"},
		},
		Reports: []Report{
			{Name: "positions", Passed: true},
			{Name: "cash", Passed: true},
			{Name: "regulatory", Passed: true},
			{Name: "pnl", Passed: true},
		},
		Redemptions: []Redemption{
			{Reference: "RED-001", Amount: 25000, Currency: "USD", Valid: true},
			{Reference: "RED-002", Amount: 8000, Currency: "EUR", Valid: true},
			{Reference: "RED-003", Amount: 0, Currency: "USD", Valid: false},
		},
	}
}
