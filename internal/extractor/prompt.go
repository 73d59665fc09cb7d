package extractor

// extractionPrompt instructs the model to classify one query into the
// structured intent schema. The single %s is the user query. The response
// must be a bare JSON object, which extract still defensively trims.
const extractionPrompt = `You are an AWS query analyzer. Analyze the user's query and extract a structured intent.

AWS Services & Their Data:
- ec2: Instances, volumes, AMIs, security groups, network interfaces
- s3: Buckets, objects, storage classes, access logs
- rds: Databases, snapshots, parameter groups
- lambda: Functions, layers, event sources
- ecs/eks: Containers, clusters, services, tasks
- vpc: Subnets, route tables, NACLs, VPNs, transit gateways
- iam: Users, roles, policies, access keys, login profiles
- cloudwatch: Metrics, alarms, logs, dashboards
- cloudtrail: API activity, events, audit logs
- cost-explorer: Costs, usage, forecasts, budgets
- elb/alb: Load balancers, target groups, listeners
- route53: Hosted zones, record sets, health checks
- dynamodb: Tables, items, indexes, backups
- sns/sqs: Topics, subscriptions, queues, messages
- cloudformation: Stacks, resources, templates

User Query: %s

Extract and respond in this EXACT JSON schema:
{
    "operation_type": "read|write|delete|analyze",
    "confidence": 0.0-1.0,
    "complexity": "simple|moderate|complex",
    "primary_service": "main_aws_service",
    "resource_type": "primary_resource_type",
    "action_verb": "exact_action",
    "regions": ["region_codes"],
    "resource_ids": ["specific_ids_if_mentioned"],
    "filters": [
        {
            "filter_type": "state|tag|name|id|type|date_range|cost_threshold",
            "key": "filter_key",
            "value": "filter_value",
            "operator": "equals|contains|greater_than|less_than|between"
        }
    ],
    "output_preferences": {
        "format": "table|json|summary",
        "sort_by": "field_name_or_null",
        "limit": number_or_null
    },
    "ambiguities": ["unclear_aspects"],
    "assumptions": ["what_we_assumed"]
}

CRITICAL RULES:
1. operation_type reflects what the query DOES: read for list/describe/show, write for create/update/stop/restart, delete for terminate/delete/remove, analyze for reporting and investigation.
2. confidence reflects how certain you are that the extraction matches the user's intent. Lower it when the query is vague.
3. If the target service is unclear, set primary_service to "unknown" and record the gap in ambiguities.
4. Only include regions the user named or clearly implied. Do not invent regions.
5. List every unclear aspect in ambiguities, every guess in assumptions.
6. Always return the JSON object only, without any additional text, starting with { and ending with }.`
