package storage

import (
	"context"
	"strings"
	"testing"
)

func TestBuildCreateTableSQL(t *testing.T) {
	ddl, err := BuildCreateTableSQL("online_sales", []Column{
		{Name: "order_id", SQLType: "INTEGER", NotNull: true},
		{Name: "amount", SQLType: "REAL"},
	})
	if err != nil {
		t.Fatalf("BuildCreateTableSQL: %v", err)
	}

	wantParts := []string{
		`CREATE TABLE "online_sales"`,
		`"order_id" INTEGER NOT NULL`,
		`"amount" REAL`,
	}
	for _, w := range wantParts {
		if !strings.Contains(ddl, w) {
			t.Errorf("ddl %q missing %q", ddl, w)
		}
	}
}

func TestBuildCreateTableSQLErrors(t *testing.T) {
	if _, err := BuildCreateTableSQL("", []Column{{Name: "a", SQLType: "TEXT"}}); err == nil {
		t.Error("empty table name accepted")
	}
	if _, err := BuildCreateTableSQL("t", nil); err == nil {
		t.Error("empty column list accepted")
	}
	if _, err := BuildCreateTableSQL("t", []Column{{Name: "", SQLType: "TEXT"}}); err == nil {
		t.Error("empty column name accepted")
	}
	if _, err := BuildCreateTableSQL("t", []Column{{Name: "a"}}); err == nil {
		t.Error("missing SQL type accepted")
	}
}

func TestQuoteIdent(t *testing.T) {
	if got := QuoteIdent("order_date"); got != `"order_date"` {
		t.Errorf("QuoteIdent = %s", got)
	}
	if got := QuoteIdent(`odd"name`); got != `"odd""name"` {
		t.Errorf("QuoteIdent escaping = %s", got)
	}
}

func TestOpenUnknownKind(t *testing.T) {
	_, err := Open(context.Background(), "no_such_engine", "dsn")
	if err == nil {
		t.Fatal("Open succeeded for an unregistered kind")
	}
	if !strings.Contains(err.Error(), "no_such_engine") {
		t.Fatalf("err %v does not name the unknown kind", err)
	}
}
