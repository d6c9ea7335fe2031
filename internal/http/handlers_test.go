package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"bilancio/internal/core"
)

func decodeBody[T any](t *testing.T, rec interface{ Result() *http.Response }) T {
	t.Helper()
	var v T
	res := rec.Result()
	defer res.Body.Close()
	if err := json.NewDecoder(res.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func TestCreateAndListItems(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"kind":"expense","label":"Rent","amount_cents":90000,"frequency":"monthly"}`
	rec := doRequest(t, srv, http.MethodPost, "/api/items", "application/json", strings.NewReader(body))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}

	created := decodeBody[itemResponse](t, rec)
	if created.ID != 1 {
		t.Errorf("ID = %d, want 1", created.ID)
	}
	if created.MonthlyCents != 90000 {
		t.Errorf("MonthlyCents = %d, want 90000", created.MonthlyCents)
	}
	// Household default split is proportional with a 2:1 income ratio.
	if created.Member1Cents != 60000 || created.Member2Cents != 30000 {
		t.Errorf("split = (%d, %d), want (60000, 30000)",
			created.Member1Cents, created.Member2Cents)
	}
	if created.Member1Cents+created.Member2Cents != created.MonthlyCents {
		t.Error("split shares do not reconstruct the monthly amount")
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/items", "", nil)
	list := decodeBody[itemListResponse](t, rec)
	if list.Count != 1 || len(list.Items) != 1 {
		t.Fatalf("list count = %d, want 1", list.Count)
	}
	if list.Items[0].Label != "Rent" {
		t.Errorf("Label = %q, want Rent", list.Items[0].Label)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/items?kind=provision", "", nil)
	list = decodeBody[itemListResponse](t, rec)
	if list.Count != 0 {
		t.Errorf("provision count = %d, want 0", list.Count)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/items?kind=bogus", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bogus kind status = %d, want 400", rec.Code)
	}
}

func TestCreateItemDecimalAmount(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"kind":"expense","label":"Rent","amount":"900,50","frequency":"monthly"}`
	rec := doRequest(t, srv, http.MethodPost, "/api/items", "application/json", strings.NewReader(body))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[itemResponse](t, rec)
	if created.AmountCents != 90050 {
		t.Errorf("AmountCents = %d, want 90050", created.AmountCents)
	}

	bad := `{"kind":"expense","label":"Rent","amount":"-3","frequency":"monthly"}`
	rec = doRequest(t, srv, http.MethodPost, "/api/items", "application/json", strings.NewReader(bad))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative amount status = %d, want 400", rec.Code)
	}
}

func TestCreateItemValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"empty label", `{"kind":"expense","label":"","amount_cents":100,"frequency":"monthly"}`},
		{"unknown frequency", `{"kind":"expense","label":"X","amount_cents":100,"frequency":"biweekly"}`},
		{"negative amount", `{"kind":"expense","label":"X","amount_cents":-5,"frequency":"monthly"}`},
		{"unknown field", `{"label":"X","nope":true}`},
		{"bad date", `{"kind":"expense","label":"X","amount_cents":100,"frequency":"monthly","start_date":"03/05/2026"}`},
		{"percentage out of range", `{"kind":"provision","label":"X","base_calculation":"percent_income","percentage":150}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, "/api/items", "application/json", strings.NewReader(tt.body))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestToggleAndDeleteItem(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"kind":"expense","label":"Net","amount_cents":3000,"frequency":"monthly"}`
	rec := doRequest(t, srv, http.MethodPost, "/api/items", "application/json", strings.NewReader(body))
	created := decodeBody[itemResponse](t, rec)

	rec = doRequest(t, srv, http.MethodPost, fmt.Sprintf("/api/items/%d/toggle", created.ID), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status = %d", rec.Code)
	}
	toggled := decodeBody[map[string]any](t, rec)
	if toggled["active"] != false {
		t.Errorf("active = %v, want false", toggled["active"])
	}

	rec = doRequest(t, srv, http.MethodDelete, fmt.Sprintf("/api/items/%d", created.ID), "", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodDelete, fmt.Sprintf("/api/items/%d", created.ID), "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/items/999/toggle", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("toggle missing status = %d, want 404", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodDelete, "/api/items/abc", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rec.Code)
	}
}

func TestSummary(t *testing.T) {
	srv, _ := newTestServer(t)

	items := []string{
		`{"kind":"expense","label":"Rent","amount_cents":90000,"frequency":"monthly"}`,
		`{"kind":"expense","label":"Insurance","amount_cents":120000,"frequency":"annual"}`,
		`{"kind":"provision","label":"Savings","base_calculation":"percent_income","percentage":10}`,
	}
	for _, body := range items {
		rec := doRequest(t, srv, http.MethodPost, "/api/items", "application/json", strings.NewReader(body))
		if rec.Code != http.StatusCreated {
			t.Fatalf("seed item: status = %d, body %s", rec.Code, rec.Body.String())
		}
	}

	rec := doRequest(t, srv, http.MethodGet, "/api/summary", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary status = %d", rec.Code)
	}
	sum := decodeBody[summaryResponse](t, rec)

	// Income 3000 euros. Expenses: 90000 + 120000/12 = 100000 cents a month,
	// so the remainder is 200000 and the provision contributes 30000.
	if sum.IncomeCents != 300000 {
		t.Errorf("IncomeCents = %d, want 300000", sum.IncomeCents)
	}
	if sum.RemainderCents != 200000 {
		t.Errorf("RemainderCents = %d, want 200000", sum.RemainderCents)
	}
	if sum.MonthlyCents != 130000 {
		t.Errorf("MonthlyCents = %d, want 130000", sum.MonthlyCents)
	}
	if sum.AnnualCents != sum.MonthlyCents*12 {
		t.Errorf("AnnualCents = %d, want %d", sum.AnnualCents, sum.MonthlyCents*12)
	}
	if sum.ActiveCount != 3 {
		t.Errorf("ActiveCount = %d, want 3", sum.ActiveCount)
	}
	if sum.Member1Cents+sum.Member2Cents != sum.MonthlyCents {
		t.Error("member shares do not reconstruct the monthly total")
	}
}

func TestSummaryEmptyIsZero(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/summary", "", nil)
	sum := decodeBody[summaryResponse](t, rec)
	if sum.MonthlyCents != 0 || sum.AnnualCents != 0 || sum.ActiveCount != 0 {
		t.Errorf("empty summary = %+v, want zero totals", sum)
	}
}

func TestSummaryCacheInvalidatedOnWrite(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/summary", "", nil)
	before := decodeBody[summaryResponse](t, rec)
	if before.MonthlyCents != 0 {
		t.Fatalf("MonthlyCents = %d, want 0", before.MonthlyCents)
	}

	body := `{"kind":"expense","label":"Rent","amount_cents":90000,"frequency":"monthly"}`
	doRequest(t, srv, http.MethodPost, "/api/items", "application/json", strings.NewReader(body))

	rec = doRequest(t, srv, http.MethodGet, "/api/summary", "", nil)
	after := decodeBody[summaryResponse](t, rec)
	if after.MonthlyCents != 90000 {
		t.Errorf("MonthlyCents after create = %d, want 90000", after.MonthlyCents)
	}
}

func TestListTransactions(t *testing.T) {
	srv, store := newTestServer(t)

	ctx := context.Background()
	seed := []core.Transaction{
		{Date: core.NewDate(2026, 3, 1), Label: "Rent", Amount: core.Money{Cents: 90000},
			MemberOne: core.Money{Cents: 60000}, MemberTwo: core.Money{Cents: 30000}},
		{Date: core.NewDate(2026, 3, 15), Label: "Groceries", Amount: core.Money{Cents: 12345},
			MemberOne: core.Money{Cents: 8230}, MemberTwo: core.Money{Cents: 4115}},
		{Date: core.NewDate(2026, 4, 1), Label: "Rent", Amount: core.Money{Cents: 90000},
			MemberOne: core.Money{Cents: 60000}, MemberTwo: core.Money{Cents: 30000}},
	}
	for _, txn := range seed {
		if _, err := store.SaveTransaction(ctx, txn); err != nil {
			t.Fatalf("SaveTransaction: %v", err)
		}
	}

	rec := doRequest(t, srv, http.MethodGet, "/api/transactions?year=2026&month=3", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeBody[transactionsResponse](t, rec)
	if len(resp.Transactions) != 2 {
		t.Fatalf("transactions = %d, want 2", len(resp.Transactions))
	}
	if resp.TotalCents != 102345 {
		t.Errorf("TotalCents = %d, want 102345", resp.TotalCents)
	}
	if resp.TotalDisplay != "€1023,45" {
		t.Errorf("TotalDisplay = %q, want €1023,45", resp.TotalDisplay)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/transactions?year=2026&month=13", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad month status = %d, want 400", rec.Code)
	}
}

func TestHouseholdRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/household", "", nil)
	hh := decodeBody[householdPayload](t, rec)
	if hh.Members[0].Name != "Anna" || hh.Members[1].Name != "Luca" {
		t.Fatalf("members = %+v", hh.Members)
	}

	update := `{"members":[{"name":"Anna","monthly_income":2500},{"name":"Luca","monthly_income":2500}],"default_split":"equal"}`
	rec = doRequest(t, srv, http.MethodPut, "/api/household", "application/json", strings.NewReader(update))
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/household", "", nil)
	hh = decodeBody[householdPayload](t, rec)
	if hh.Members[0].MonthlyIncome != 2500 || hh.DefaultSplit != "equal" {
		t.Errorf("household after update = %+v", hh)
	}

	// Summary must see the new incomes.
	rec = doRequest(t, srv, http.MethodGet, "/api/summary", "", nil)
	sum := decodeBody[summaryResponse](t, rec)
	if sum.IncomeCents != 500000 {
		t.Errorf("IncomeCents = %d, want 500000", sum.IncomeCents)
	}

	bad := []string{
		`{"members":[{"name":"","monthly_income":1},{"name":"B","monthly_income":1}],"default_split":"equal"}`,
		`{"members":[{"name":"A","monthly_income":1},{"name":"B","monthly_income":1}],"default_split":"thirds"}`,
	}
	for _, body := range bad {
		rec = doRequest(t, srv, http.MethodPut, "/api/household", "application/json", strings.NewReader(body))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("invalid household: status = %d, want 400", rec.Code)
		}
	}
}

func multipartFile(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("writing multipart content: %v", err)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestImportStatement(t *testing.T) {
	srv, store := newTestServer(t)

	csv := "Data,Descrizione,Importo\n" +
		"05/03/2026,Spesa supermercato,\"123,45\"\n" +
		"12/03/2026,Bolletta luce,87.50\n"
	body, contentType := multipartFile(t, "file", "estratto.csv", csv)

	rec := doRequest(t, srv, http.MethodPost, "/api/import", contentType, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("import status = %d, body %s", rec.Code, rec.Body.String())
	}
	result := decodeBody[importResponse](t, rec)
	if result.Rows != 2 {
		t.Errorf("Rows = %d, want 2", result.Rows)
	}
	if result.Ref == "" {
		t.Error("Ref is empty")
	}

	txns, err := store.ListTransactions(context.Background(), 2026, 3)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txns) != 2 {
		t.Fatalf("stored transactions = %d, want 2", len(txns))
	}
	for _, txn := range txns {
		if txn.ImportRef != result.Ref {
			t.Errorf("ImportRef = %q, want %q", txn.ImportRef, result.Ref)
		}
		if txn.MemberOne.Cents+txn.MemberTwo.Cents != txn.Amount.Cents {
			t.Error("split shares do not reconstruct the amount")
		}
	}
}

func TestImportUnsupportedFormat(t *testing.T) {
	srv, _ := newTestServer(t)

	body, contentType := multipartFile(t, "file", "estratto.pdf", "%PDF-1.4")
	rec := doRequest(t, srv, http.MethodPost, "/api/import", contentType, body)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415", rec.Code)
	}
}

func TestImportMissingFile(t *testing.T) {
	srv, _ := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("other", "x")
	mw.Close()

	rec := doRequest(t, srv, http.MethodPost, "/api/import", mw.FormDataContentType(), &buf)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
