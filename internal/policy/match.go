package policy

import (
	"regexp"
	"strings"

	"github.com/halvden/opsgate/internal/intent"
)

func statementMatches(s Statement, in *intent.Intent) bool {
	if !operationListed(s.Operations, in.Operation) {
		return false
	}

	resourceOK := false
	for _, pattern := range s.Resources {
		if resourceMatches(pattern, in.PrimaryResource) {
			resourceOK = true
			break
		}
	}
	if !resourceOK {
		return false
	}

	for _, cond := range s.Conditions {
		if !conditionMatches(cond, in) {
			return false
		}
	}
	return true
}

func operationListed(ops []intent.Operation, op intent.Operation) bool {
	for _, candidate := range ops {
		if candidate == op {
			return true
		}
	}
	return false
}

func resourceMatches(pattern ResourcePattern, resource intent.Resource) bool {
	if pattern.Service != "" && pattern.Service != "*" &&
		!strings.EqualFold(pattern.Service, resource.Service) {
		return false
	}
	if pattern.ResourceType != "" && pattern.ResourceType != "*" &&
		!strings.EqualFold(pattern.ResourceType, resource.ResourceType) {
		return false
	}

	// A pattern without id patterns matches on service/type alone. A pattern
	// with id patterns requires at least one id-to-pattern hit.
	if len(pattern.ResourceIDs) == 0 {
		return true
	}
	if len(resource.ResourceIDs) == 0 {
		return false
	}
	for _, id := range resource.ResourceIDs {
		for _, idPattern := range pattern.ResourceIDs {
			if idMatchesPattern(id, idPattern) {
				return true
			}
		}
	}
	return false
}

// idMatchesPattern matches a resource id against an exact string or a glob
// pattern where "*" matches any sequence and "?" any single character.
// Glob matches are anchored at both ends.
func idMatchesPattern(id, pattern string) bool {
	if id == pattern {
		return true
	}
	if !strings.ContainsAny(pattern, "*?") {
		return false
	}

	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return false
	}
	return re.MatchString(id)
}

// actual holds the intent-side value a condition key resolved to. List-valued
// keys (region, resource_id) keep their list shape so set operators can apply
// any/all semantics.
type actual struct {
	values []string
	isList bool
}

func conditionMatches(cond Condition, in *intent.Intent) bool {
	value, found := lookupConditionValue(cond.Key, in)
	if !found {
		// Absent values satisfy only the negated operators: an absent field
		// is "not equal to" and "not a member of" anything.
		return cond.Operator == OpNotEquals || cond.Operator == OpNotIn
	}
	return evaluateOperator(cond.Operator, value, cond.Value)
}

func lookupConditionValue(key string, in *intent.Intent) (actual, bool) {
	switch {
	case key == "region":
		return actual{values: in.Regions, isList: true}, true
	case key == "resource_id":
		return actual{values: in.PrimaryResource.ResourceIDs, isList: true}, true
	case key == "service":
		return actual{values: []string{in.PrimaryService}}, true
	case key == "resource_type":
		if in.PrimaryResource.ResourceType == "" {
			return actual{}, false
		}
		return actual{values: []string{in.PrimaryResource.ResourceType}}, true
	case strings.HasPrefix(key, "tag:"):
		name := strings.TrimPrefix(key, "tag:")
		for _, f := range in.PrimaryResource.Filters {
			if f.Type == "tag" && strings.EqualFold(f.Key, name) {
				return actual{values: []string{f.Value}}, true
			}
		}
		return actual{}, false
	case strings.HasPrefix(key, "filter:"):
		filterType := strings.TrimPrefix(key, "filter:")
		for _, f := range in.PrimaryResource.Filters {
			if strings.EqualFold(f.Type, filterType) {
				return actual{values: []string{f.Value}}, true
			}
		}
		return actual{}, false
	default:
		return actual{}, false
	}
}

func evaluateOperator(op Operator, value actual, expected Value) bool {
	if value.isList {
		switch op {
		case OpIn:
			// Any item being a member satisfies the relation.
			for _, item := range value.values {
				if inSet(item, expected.AsList()) {
					return true
				}
			}
			return false
		case OpNotIn:
			// Every item must be outside the set.
			for _, item := range value.values {
				if inSet(item, expected.AsList()) {
					return false
				}
			}
			return true
		default:
			// Other operators apply per item: true if any item satisfies.
			for _, item := range value.values {
				if evaluateScalar(op, item, expected) {
					return true
				}
			}
			return false
		}
	}

	scalar := ""
	if len(value.values) > 0 {
		scalar = value.values[0]
	}
	return evaluateScalar(op, scalar, expected)
}

// evaluateScalar applies one operator to one intent-side string.
// All string comparison is case-insensitive.
func evaluateScalar(op Operator, got string, expected Value) bool {
	gotLower := strings.ToLower(got)
	expectedLower := strings.ToLower(expected.Text())

	switch op {
	case OpEquals:
		return gotLower == expectedLower
	case OpNotEquals:
		return gotLower != expectedLower
	case OpIn:
		return inSet(got, expected.AsList())
	case OpNotIn:
		return !inSet(got, expected.AsList())
	case OpStartsWith:
		return strings.HasPrefix(gotLower, expectedLower)
	case OpEndsWith:
		return strings.HasSuffix(gotLower, expectedLower)
	case OpContains:
		return strings.Contains(gotLower, expectedLower)
	case OpNotContains:
		return !strings.Contains(gotLower, expectedLower)
	case OpMatches:
		re, err := regexp.Compile("^(?:" + expectedLower + ")")
		if err != nil {
			return false
		}
		return re.MatchString(gotLower)
	default:
		return false
	}
}

func inSet(item string, set []string) bool {
	for _, member := range set {
		if strings.EqualFold(item, member) {
			return true
		}
	}
	return false
}
