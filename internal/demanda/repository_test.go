package demanda

import (
	"strings"
	"testing"
)

func TestInsertLeavesCreatedAtToDatabase(t *testing.T) {
	columns := insertDemandaQuery[:strings.Index(insertDemandaQuery, "VALUES")]
	if strings.Contains(columns, "created_at") {
		t.Fatalf("insert must not write created_at: %s", columns)
	}
	if !strings.Contains(insertDemandaQuery, "RETURNING created_at") {
		t.Fatalf("insert must return the database timestamp: %s", insertDemandaQuery)
	}

	n := len(strings.Split(demandaWriteColumns, ","))
	if got := len(writeArgs(Demanda{})); got != n {
		t.Fatalf("expected %d args for %d columns, got %d", n, n, got)
	}
	if !strings.Contains(insertDemandaQuery, "$17)") || strings.Contains(insertDemandaQuery, "$18") {
		t.Fatalf("placeholders do not match columns: %s", insertDemandaQuery)
	}
}

func TestListQueryMatchesFilter(t *testing.T) {
	query, args := buildListQuery(PendingFilter("lider@prefsb.com"))
	if !strings.Contains(query, "ORDER BY created_at DESC") {
		t.Fatalf("expected descending order: %s", query)
	}
	if len(args) != 2 {
		t.Fatalf("expected status and visita args, got %v", args)
	}
}
