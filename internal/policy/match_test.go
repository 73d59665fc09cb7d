package policy

import (
	"testing"

	"github.com/halvden/opsgate/internal/intent"
)

func TestIDMatchesPattern(t *testing.T) {
	cases := []struct {
		id      string
		pattern string
		want    bool
	}{
		{"i-prod-001", "i-prod-*", true},
		{"i-dev-001", "i-prod-*", false},
		{"i-prod-001", "i-prod-001", true},
		{"i-prod-001", "i-prod-00?", true},
		{"i-prod-0011", "i-prod-00?", false},
		{"vol-abc", "*", true},
		{"i.prod.001", "i?prod?001", true},
		// regex metacharacters in the pattern are literal
		{"i-prodx001", "i-prod.001", false},
		{"i-prod.001", "i-prod.001", true},
	}
	for _, c := range cases {
		if got := idMatchesPattern(c.id, c.pattern); got != c.want {
			t.Fatalf("idMatchesPattern(%q, %q) = %v, want %v", c.id, c.pattern, got, c.want)
		}
	}
}

func TestResourceMatches(t *testing.T) {
	resource := intent.Resource{
		Service:      "ec2",
		ResourceType: "instance",
		ResourceIDs:  []string{"i-prod-001"},
	}

	if !resourceMatches(ResourcePattern{}, resource) {
		t.Fatalf("empty pattern should match everything")
	}
	if !resourceMatches(ResourcePattern{Service: "*", ResourceType: "*"}, resource) {
		t.Fatalf("wildcard pattern should match")
	}
	if resourceMatches(ResourcePattern{Service: "s3"}, resource) {
		t.Fatalf("service mismatch should not match")
	}
	if resourceMatches(ResourcePattern{Service: "ec2", ResourceType: "volume"}, resource) {
		t.Fatalf("type mismatch should not match")
	}
	if !resourceMatches(ResourcePattern{Service: "ec2", ResourceIDs: []string{"i-prod-*"}}, resource) {
		t.Fatalf("glob id pattern should match")
	}
	if resourceMatches(ResourcePattern{ResourceIDs: []string{"i-dev-*"}}, resource) {
		t.Fatalf("non-matching id pattern should not match")
	}

	// A pattern with id patterns requires ids on the resource.
	bare := intent.Resource{Service: "ec2"}
	if resourceMatches(ResourcePattern{ResourceIDs: []string{"*"}}, bare) {
		t.Fatalf("id pattern against an id-less resource should not match")
	}
}

func TestMatchesAll(t *testing.T) {
	if !(ResourcePattern{}).MatchesAll() {
		t.Fatalf("empty pattern matches all")
	}
	if !(ResourcePattern{Service: "*", ResourceType: "*"}).MatchesAll() {
		t.Fatalf("wildcard pattern matches all")
	}
	if (ResourcePattern{Service: "ec2"}).MatchesAll() {
		t.Fatalf("constrained pattern does not match all")
	}
}

func TestConditionMatches_MissingValues(t *testing.T) {
	in := &intent.Intent{
		Operation:      intent.OperationRead,
		PrimaryService: "ec2",
		PrimaryResource: intent.Resource{
			Service: "ec2",
		},
	}

	// Absent tag: only the negated operators hold.
	cond := NewCondition("tag:Environment", OpEquals, StringValue("production"))
	if conditionMatches(cond, in) {
		t.Fatalf("equals on a missing value should be false")
	}
	cond = NewCondition("tag:Environment", OpNotEquals, StringValue("production"))
	if !conditionMatches(cond, in) {
		t.Fatalf("not_equals on a missing value should be true")
	}
	cond = NewCondition("tag:Environment", OpNotIn, ListValue("production", "prod"))
	if !conditionMatches(cond, in) {
		t.Fatalf("not_in on a missing value should be true")
	}
	cond = NewCondition("tag:Environment", OpIn, ListValue("production"))
	if conditionMatches(cond, in) {
		t.Fatalf("in on a missing value should be false")
	}
}

func TestConditionMatches_ListSemantics(t *testing.T) {
	in := &intent.Intent{
		Operation:      intent.OperationRead,
		PrimaryService: "ec2",
		Regions:        []string{"us-east-1", "eu-west-1"},
	}

	// in: any region in the set
	cond := NewCondition("region", OpIn, ListValue("eu-west-1"))
	if !conditionMatches(cond, in) {
		t.Fatalf("in should hold when any region is a member")
	}

	// not_in: all regions outside the set
	cond = NewCondition("region", OpNotIn, ListValue("ap-south-1"))
	if !conditionMatches(cond, in) {
		t.Fatalf("not_in should hold when no region is a member")
	}
	cond = NewCondition("region", OpNotIn, ListValue("us-east-1"))
	if conditionMatches(cond, in) {
		t.Fatalf("not_in should fail when any region is a member")
	}

	// other operators: true if any item satisfies
	cond = NewCondition("region", OpStartsWith, StringValue("eu-"))
	if !conditionMatches(cond, in) {
		t.Fatalf("starts_with should hold when any region matches")
	}
}

func TestConditionMatches_CaseInsensitive(t *testing.T) {
	in := &intent.Intent{
		Operation:      intent.OperationRead,
		PrimaryService: "EC2",
		PrimaryResource: intent.Resource{
			Filters: []intent.Filter{
				{Type: "tag", Key: "Environment", Value: "Production"},
			},
		},
	}

	cond := NewCondition("service", OpEquals, StringValue("ec2"))
	if !conditionMatches(cond, in) {
		t.Fatalf("service comparison should be case-insensitive")
	}
	cond = NewCondition("tag:Environment", OpContains, StringValue("PROD"))
	if !conditionMatches(cond, in) {
		t.Fatalf("contains should be case-insensitive")
	}
}

func TestConditionMatches_Operators(t *testing.T) {
	in := &intent.Intent{
		Operation:      intent.OperationRead,
		PrimaryService: "ec2",
		PrimaryResource: intent.Resource{
			ResourceType: "instance",
			Filters: []intent.Filter{
				{Type: "state", Key: "state", Value: "running"},
			},
		},
	}

	cases := []struct {
		name string
		cond Condition
		want bool
	}{
		{"ends_with hit", NewCondition("filter:state", OpEndsWith, StringValue("ning")), true},
		{"ends_with miss", NewCondition("filter:state", OpEndsWith, StringValue("stopped")), false},
		{"not_contains hit", NewCondition("filter:state", OpNotContains, StringValue("stop")), true},
		{"matches hit", NewCondition("resource_type", OpMatches, StringValue("inst.*")), true},
		{"matches miss", NewCondition("resource_type", OpMatches, StringValue("volume")), false},
		{"matches bad regex", NewCondition("resource_type", OpMatches, StringValue("[")), false},
	}
	for _, c := range cases {
		if got := conditionMatches(c.cond, in); got != c.want {
			t.Fatalf("%s: got %v, want %v", c.name, got, c.want)
		}
	}
}

func TestNewCondition_NormalizesSetValues(t *testing.T) {
	cond := NewCondition("region", OpIn, StringValue("us-east-1"))
	if cond.Value.Kind() != ValueList {
		t.Fatalf("in operator should normalize scalars to lists")
	}
	if got := cond.Value.AsList(); len(got) != 1 || got[0] != "us-east-1" {
		t.Fatalf("unexpected normalized list: %v", got)
	}

	cond = NewCondition("region", OpEquals, StringValue("us-east-1"))
	if cond.Value.Kind() != ValueString {
		t.Fatalf("equals should keep scalar values")
	}
}
