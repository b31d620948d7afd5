// Package ofx reads OFX and QFX bank and card statements into transactions
// ready to be recorded against a wallet.
package ofx

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/HarshGadhecha/SpendWise/internal/common"
	"github.com/HarshGadhecha/SpendWise/internal/model"
)

// TagPrefix marks transactions imported from a statement. The full tag
// carries the bank's transaction id so a second import can skip it.
const TagPrefix = "ofx:"

// Statement is one account's transactions from a statement file.
type Statement struct {
	AccountID    string
	Currency     string
	Transactions []model.Transaction
}

var (
	severityPattern = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)`)
	unclosedTag     = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// normalize repairs mixed-case severities and tags missing their closing
// bracket, both common in bank exports.
func normalize(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityPattern.ReplaceAllStringFunc(content, strings.ToUpper)
	return unclosedTag.ReplaceAllString(content, "$1>")
}

// Parse reads every bank and credit card statement in r. Transactions carry
// no id, owner or wallet; the ledger assigns those when they are recorded.
func Parse(r io.Reader) ([]Statement, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read statement: %w", err)
	}
	resp, err := ofxgo.ParseResponse(strings.NewReader(normalize(string(content))))
	if err != nil {
		return nil, fmt.Errorf("%w: not an OFX statement: %w", common.ErrValidation, err)
	}

	var statements []Statement
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			statements = append(statements, convert(string(stmt.BankAcctFrom.AcctID), stmt.CurDef.String(), stmt.BankTranList))
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			statements = append(statements, convert(string(stmt.CCAcctFrom.AcctID), stmt.CurDef.String(), stmt.BankTranList))
		}
	}

	slog.Debug("Parsed statement file", "statements", len(statements))
	return statements, nil
}

func convert(accountID, currency string, list *ofxgo.TransactionList) Statement {
	s := Statement{AccountID: accountID, Currency: currency}
	if list == nil {
		return s
	}
	for _, tx := range list.Transactions {
		draft, err := transaction(tx)
		if err != nil {
			slog.Warn("Skipping statement line", "account", accountID, "fitid", tx.FiTID, "error", err)
			continue
		}
		s.Transactions = append(s.Transactions, draft)
	}
	return s
}

// transaction maps a statement line: credits become income and debits
// expenses, with the category guessed from the OFX transaction type.
func transaction(tx ofxgo.Transaction) (model.Transaction, error) {
	amount, err := decimal.NewFromString(tx.TrnAmt.FloatString(2))
	if err != nil {
		return model.Transaction{}, fmt.Errorf("%w: amount %s", common.ErrInvalidAmount, tx.TrnAmt.String())
	}
	if amount.IsZero() {
		return model.Transaction{}, fmt.Errorf("%w: zero amount", common.ErrInvalidAmount)
	}

	t := model.Transaction{
		Type:        model.TransactionExpense,
		Category:    model.CategoryOtherExpense,
		Amount:      amount.Abs(),
		Date:        tx.DtPosted.UTC(),
		Description: payee(tx),
		Notes:       strings.TrimSpace(string(tx.Memo)),
		Tags:        []string{TagPrefix + string(tx.FiTID)},
	}
	if amount.IsPositive() {
		t.Type = model.TransactionIncome
		t.Category = model.CategoryOtherIncome
	}

	switch tx.TrnType {
	case ofxgo.TrnTypeInt, ofxgo.TrnTypeDiv:
		if t.Type == model.TransactionIncome {
			t.Category = model.CategoryInvestment
		}
	case ofxgo.TrnTypeFee, ofxgo.TrnTypeSrvChg:
		if t.Type == model.TransactionExpense {
			t.Category = model.CategoryBills
		}
	}
	return t, nil
}

var cardPrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
	"DEBIT PURCHASE ",
}

var genericNames = map[string]bool{
	"DEBIT":           true,
	"CREDIT":          true,
	"PURCHASE":        true,
	"PAYMENT":         true,
	"POS TRANSACTION": true,
	"CARD PURCHASE":   true,
}

// payee picks the cleanest description a statement line offers.
func payee(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return strings.TrimSpace(string(tx.Payee.Name))
	}

	name := strings.TrimSpace(string(tx.Name))
	if tx.Memo != "" && genericNames[strings.ToUpper(name)] {
		name = strings.TrimSpace(string(tx.Memo))
	}
	upper := strings.ToUpper(name)
	for _, prefix := range cardPrefixes {
		if strings.HasPrefix(upper, prefix) {
			name = name[len(prefix):]
			break
		}
	}
	// "MM/DD " date stamps some banks put in front.
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}
	return name
}

// FITID returns the bank transaction id an imported transaction came from.
func FITID(t model.Transaction) (string, bool) {
	for _, tag := range t.Tags {
		if id, ok := strings.CutPrefix(tag, TagPrefix); ok {
			return id, true
		}
	}
	return "", false
}
