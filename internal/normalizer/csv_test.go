package normalizer

import (
	"testing"

	"github.com/finwise/statement-ingest/internal/models"
)

func TestParseCSVAutoDetected(t *testing.T) {
	data := []byte("Date,Description,Amount,Currency\n" +
		"2024-01-15,COFFEE SHOP,-3.50,usd\n" +
		"2024-01-16,SALARY JANUARY,2500.00,usd\n")

	res, err := ParseCSV(data, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(res.Rows))
	}
	if res.Map.Date != "Date" || res.Map.Amount != "Amount" {
		t.Errorf("unexpected detected map: %+v", res.Map)
	}
	if got := res.Rows[0].Amount.String(); got != "-3.5" {
		t.Errorf("amount: got %s, want -3.5", got)
	}
	if res.Rows[0].Currency != "USD" {
		t.Errorf("currency not upper-cased: %q", res.Rows[0].Currency)
	}
	if res.Rows[0].Status != models.StatusPosted {
		t.Errorf("expected POSTED default, got %q", res.Rows[0].Status)
	}
	if res.Skips.Total() != 0 {
		t.Errorf("expected no skips, got %+v", res.Skips)
	}
}

func TestParseCSVPortugueseHeaders(t *testing.T) {
	data := []byte("Data;Histórico;Valor\n" +
		"15/01/2024;SUPERMERCADO CENTRAL;-65,32\n")

	res, err := ParseCSV(data, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(res.Rows))
	}
	row := res.Rows[0]
	if got := row.Date.Format("2006-01-02"); got != "2024-01-15" {
		t.Errorf("date: got %s, want 2024-01-15", got)
	}
	if row.Description != "SUPERMERCADO CENTRAL" {
		t.Errorf("description: got %q", row.Description)
	}
	if got := row.Amount.String(); got != "-65.32" {
		t.Errorf("amount: got %s, want -65.32", got)
	}
}

func TestParseCSVCreditDebitPair(t *testing.T) {
	data := []byte("Date,Description,Credit,Debit\n" +
		"2024-02-01,DEPOSIT,100.00,\n" +
		"2024-02-02,WITHDRAWAL,,40.00\n")

	res, err := ParseCSV(data, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(res.Rows))
	}
	if got := res.Rows[0].Amount.String(); got != "100" {
		t.Errorf("credit row: got %s, want 100", got)
	}
	if got := res.Rows[1].Amount.String(); got != "-40" {
		t.Errorf("debit row: got %s, want -40", got)
	}
}

func TestParseCSVBlankAmountFallsBackToCreditDebit(t *testing.T) {
	// Amount column exists but is empty; the credit/debit pair decides.
	data := []byte("Date,Description,Amount,Credit,Debit\n" +
		"2024-02-01,TRANSFER IN,,250.00,\n")

	res, err := ParseCSV(data, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d (skips %+v)", len(res.Rows), res.Skips)
	}
	if got := res.Rows[0].Amount.String(); got != "250" {
		t.Errorf("got %s, want 250", got)
	}
}

func TestParseCSVSoleNumericColumn(t *testing.T) {
	data := []byte("Date,Description,Misc\n" +
		"2024-03-01,PARKING,-7.20\n")

	res, err := ParseCSV(data, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d (skips %+v)", len(res.Rows), res.Skips)
	}
	if got := res.Rows[0].Amount.String(); got != "-7.2" {
		t.Errorf("got %s, want -7.2", got)
	}
}

func TestParseCSVAmbiguousRowDroppedNotFile(t *testing.T) {
	// Second row has two numeric candidates and no amount mapping; it is
	// dropped individually while its neighbors survive.
	data := []byte("Date,Description,Foo,Bar\n" +
		"2024-03-01,OK ROW,12.00,\n" +
		"2024-03-02,AMBIGUOUS ROW,12.00,34.00\n" +
		"2024-03-03,ANOTHER OK ROW,5.00,\n")

	res, err := ParseCSV(data, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(res.Rows))
	}
	if res.Skips.AmbiguousAmount != 1 {
		t.Errorf("expected 1 ambiguous skip, got %+v", res.Skips)
	}
}

func TestParseCSVSkipReasons(t *testing.T) {
	data := []byte("Date,Description,Amount\n" +
		"2024-01-15,,10.00\n" +
		"not-a-date,MISSING DATE,10.00\n" +
		"2024-01-17,BAD AMOUNT,ten\n" +
		"2024-01-18,GOOD ROW,10.00\n")

	res, err := ParseCSV(data, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 surviving row, got %d", len(res.Rows))
	}
	if res.Skips.MissingDescription != 1 || res.Skips.BadDate != 1 || res.Skips.BadAmount != 1 {
		t.Errorf("unexpected skip breakdown: %+v", res.Skips)
	}
}

func TestParseCSVExplicitMapVerbatim(t *testing.T) {
	// The explicit map pins Amount to the Fee column even though an
	// Amount header exists.
	data := []byte("Date,Description,Amount,Fee\n" +
		"2024-04-01,SERVICE CHARGE,99.00,-1.50\n")

	explicit := &models.ColumnMap{Date: "Date", Description: "Description", Amount: "Fee"}
	res, err := ParseCSV(data, explicit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Map != *explicit {
		t.Errorf("map not used verbatim: %+v", res.Map)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(res.Rows))
	}
	if got := res.Rows[0].Amount.String(); got != "-1.5" {
		t.Errorf("got %s, want -1.5", got)
	}
}

func TestParseCSVStatusAndAccountHint(t *testing.T) {
	data := []byte("Date,Description,Amount,Status,Account\n" +
		"2024-05-01,CARD PAYMENT,-20.00,Pending,Main Checking\n" +
		"2024-05-02,CARD PAYMENT,-30.00,posted,Main Checking\n")

	res, err := ParseCSV(data, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(res.Rows))
	}
	if res.Rows[0].Status != models.StatusPending {
		t.Errorf("expected PENDING, got %q", res.Rows[0].Status)
	}
	if res.Rows[1].Status != models.StatusPosted {
		t.Errorf("expected POSTED, got %q", res.Rows[1].Status)
	}
	if res.Rows[0].AccountNameHint != "Main Checking" {
		t.Errorf("account hint: got %q", res.Rows[0].AccountNameHint)
	}
}

func TestParseCSVEmptyFile(t *testing.T) {
	res, err := ParseCSV(nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Rows) != 0 {
		t.Errorf("expected no rows, got %d", len(res.Rows))
	}
}
