package sink

import "testing"

func TestQuoteIdentList(t *testing.T) {
	got := quoteIdentList([]string{"idu", "nom", "geom"})
	want := `"idu", "nom", "geom"`
	if got != want {
		t.Fatalf("quoteIdentList = %q, want %q", got, want)
	}
}

func TestQuoteIdentListEmpty(t *testing.T) {
	if got := quoteIdentList(nil); got != "" {
		t.Fatalf("quoteIdentList(nil) = %q, want empty string", got)
	}
}

func TestRowSourceDrainsChannel(t *testing.T) {
	ch := make(chan []interface{}, 2)
	ch <- []interface{}{"a", 1}
	ch <- []interface{}{"b", 2}
	close(ch)

	rs := &rowSource{rows: ch}

	var rows [][]interface{}
	for rs.Next() {
		vals, err := rs.Values()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		rows = append(rows, vals)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0][0] != "a" || rows[1][0] != "b" {
		t.Fatalf("rows out of order: %v", rows)
	}
	if rs.Next() {
		t.Fatal("Next() should return false once the channel is drained and closed")
	}
}
