package models

import (
	"bytes"
	"encoding/json"
	"testing"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func TestResultSetMarshalKeepsOrderAndNulls(t *testing.T) {
	rs := NewResultSet()
	rs.Add("zlib", PackageRecord{
		Downloads:  intPtr(7),
		HomePage:   strPtr("https://zlib.net/?a=1&b=2"),
		LastUpload: &LastUpload{Years: 1, Months: 2, Days: 3},
	})
	rs.Add("abyss", PackageRecord{})

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rs); err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `{"zlib":{"downloads":7,"homepage":"https://zlib.net/?a=1&b=2","last_upload":{"years":1,"months":2,"days":3}},"abyss":{"downloads":null,"homepage":null,"last_upload":null}}` + "\n"
	if buf.String() != want {
		t.Fatalf("json =\n%s\nwant\n%s", buf.String(), want)
	}

	// json.Marshal compacts the output again with HTML escaping on.
	escaped, err := json.Marshal(rs)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Contains(escaped, []byte(`?a=1\u0026b=2`)) {
		t.Fatalf("marshal = %s", escaped)
	}
}

func TestResultSetAddSingleWriter(t *testing.T) {
	rs := NewResultSet()
	if !rs.Add("samtools", PackageRecord{Downloads: intPtr(1)}) {
		t.Fatalf("first add should succeed")
	}
	if rs.Add("samtools", PackageRecord{Downloads: intPtr(2)}) {
		t.Fatalf("second add should be rejected")
	}
	rec, ok := rs.Get("samtools")
	if !ok || rec.Downloads == nil || *rec.Downloads != 1 {
		t.Fatalf("record overwritten: %+v", rec)
	}
	if rs.Len() != 1 {
		t.Fatalf("len = %d, want 1", rs.Len())
	}
}

func TestEmptyResultSetMarshal(t *testing.T) {
	got, err := json.Marshal(NewResultSet())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(got) != "{}" {
		t.Fatalf("json = %s, want {}", got)
	}
}
