package policy

import (
	"fmt"
	"strings"

	"github.com/halvden/opsgate/internal/intent"
)

// ReadOnly allows read operations and denies every modification.
func ReadOnly() Policy {
	return NewBuilder("read-only-policy").
		WithDescription("Allow only read operations, deny all modifications").
		Statement("allow-reads").Allow().ReadOperations().AllResources().EndStatement().
		Statement("deny-writes").Deny().WriteOperations().AllResources().EndStatement().
		Statement("deny-deletes").Deny().DeleteOperations().AllResources().EndStatement().
		MustBuild()
}

// DenyProductionModifications denies writes and deletes on resources tagged
// as production.
func DenyProductionModifications() Policy {
	return NewBuilder("deny-production-mods").
		WithDescription("Prevent modifications to production resources").
		Statement("deny-prod-write").
		Deny().
		Operations(intent.OperationWrite, intent.OperationDelete).
		AllResources().
		WhenTag("Environment", OpIn, ListValue("production", "prod", "prd")).
		EndStatement().
		MustBuild()
}

// RegionRestrictions denies any operation outside the allowed regions.
func RegionRestrictions(allowedRegions ...string) Policy {
	return NewBuilder("region-restrictions").
		WithDescription(fmt.Sprintf("Allow operations only in: %s", strings.Join(allowedRegions, ", "))).
		Statement("deny-other-regions").
		Deny().
		AllOperations().
		AllResources().
		WhenRegion(OpNotIn, ListValue(allowedRegions...)).
		EndStatement().
		MustBuild()
}

// ServiceRestrictions allows operations only on the listed services.
func ServiceRestrictions(allowedServices ...string) Policy {
	b := NewBuilder("service-restrictions").
		WithDescription(fmt.Sprintf("Allow access only to: %s", strings.Join(allowedServices, ", ")))
	for _, service := range allowedServices {
		b.Statement("allow-" + service).Allow().AllOperations().Service(service).EndStatement()
	}
	return b.MustBuild()
}

// RequireApprovalForCritical requires approval for any operation on
// resources tagged Critical=true.
func RequireApprovalForCritical() Policy {
	return NewBuilder("critical-resource-approval").
		WithDescription("Require approval for critical resources").
		Statement("approval-for-critical").
		RequireApproval().
		AllOperations().
		AllResources().
		WhenTag("Critical", OpEquals, StringValue("true")).
		EndStatement().
		MustBuild()
}

// SpecificResourceDeny denies every operation on the given resource ids.
func SpecificResourceDeny(service string, resourceIDs ...string) Policy {
	return NewBuilder("specific-resource-deny").
		WithDescription(fmt.Sprintf("Deny operations on specific %s resources", service)).
		Statement("deny-specific-resources").
		Deny().
		AllOperations().
		Resource(ResourcePattern{Service: service, ResourceIDs: resourceIDs}).
		EndStatement().
		MustBuild()
}

// DefaultPolicies is the stock policy set the gate runs with when nothing
// else is configured: production modifications are denied, reads are allowed,
// writes require approval, deletes are denied.
func DefaultPolicies() []Policy {
	return []Policy{
		DenyProductionModifications(),
		NewBuilder("default-policies").
			Statement("allow-reads").Allow().ReadOperations().AllResources().EndStatement().
			Statement("approval-for-writes").RequireApproval().WriteOperations().AllResources().EndStatement().
			Statement("deny-delete").Deny().DeleteOperations().AllResources().EndStatement().
			MustBuild(),
	}
}
