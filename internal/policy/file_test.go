package policy

import (
	"encoding/json"
	"path/filepath"
	"reflect"
	"testing"
)

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policies.json")

	original := []Policy{
		DenyProductionModifications(),
		NewBuilder("custom").
			Statement("deny-big-instances").
			Deny().
			DeleteOperations().
			Resource(ResourcePattern{Service: "ec2", ResourceType: "instance", ResourceIDs: []string{"i-prod-*"}}).
			WhenRegion(OpIn, ListValue("us-east-1", "eu-west-1")).
			Condition("filter:state", OpEquals, StringValue("running")).
			EndStatement().
			MustBuild(),
	}

	if err := SaveFile(path, original); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if !reflect.DeepEqual(original, loaded) {
		t.Fatalf("round-trip mismatch:\noriginal: %+v\nloaded:   %+v", original, loaded)
	}
}

func TestLoadFile_MissingIsEmpty(t *testing.T) {
	loaded, err := LoadFile(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("missing file should yield no policies, got %d", len(loaded))
	}
}

func TestSaveFile_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policies.json")
	err := SaveFile(path, []Policy{{Name: ""}})
	if err == nil {
		t.Fatalf("expected invalid policy to be rejected")
	}
}

func TestValueJSON(t *testing.T) {
	cases := []struct {
		raw  string
		kind ValueKind
	}{
		{`"production"`, ValueString},
		{`42`, ValueNumber},
		{`["a","b"]`, ValueList},
	}
	for _, c := range cases {
		var v Value
		if err := json.Unmarshal([]byte(c.raw), &v); err != nil {
			t.Fatalf("unmarshal %s: %v", c.raw, err)
		}
		if v.Kind() != c.kind {
			t.Fatalf("%s decoded to kind %d, want %d", c.raw, v.Kind(), c.kind)
		}
		out, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal %s: %v", c.raw, err)
		}
		var again Value
		if err := json.Unmarshal(out, &again); err != nil {
			t.Fatalf("re-unmarshal %s: %v", out, err)
		}
		if again.Kind() != c.kind {
			t.Fatalf("round trip changed kind for %s", c.raw)
		}
	}
}

func TestValueJSON_RejectsOtherShapes(t *testing.T) {
	for _, raw := range []string{`{"a":1}`, `true`, `[1,2]`, `null`} {
		var v Value
		if err := json.Unmarshal([]byte(raw), &v); err == nil {
			t.Fatalf("expected %s to be rejected", raw)
		}
	}
}

func TestNumberValueText(t *testing.T) {
	if got := NumberValue(100).Text(); got != "100" {
		t.Fatalf("NumberValue(100).Text() = %q", got)
	}
	if got := NumberValue(1.5).Text(); got != "1.5" {
		t.Fatalf("NumberValue(1.5).Text() = %q", got)
	}
}
