package query

import (
	"fmt"
	"strings"
)

const resourcesIncrementalTemplate = `
resourcechanges
| extend changeTime=todatetime(properties.changeAttributes.timestamp)
| extend targetResourceId=tostring(properties.targetResourceId)
| extend changeType=tostring(properties.changeType)
| extend changedProperties=properties.changes
| project-away tags, name, type
| extend type=tostring(properties.targetResourceType)
| extend changeCount=properties.changeAttributes.changesCount
| extend resourceId=tolower(targetResourceId)
| where changeTime > ago(%dm)
| summarize arg_max(changeTime, *) by resourceId
| join kind=leftouter (
    resources
    | extend sourceResourceId=tolower(id)
    | project sourceResourceId, name, location, tags, subscriptionId, resourceGroup
    | extend resourceGroup=tolower(resourceGroup)
) on $left.resourceId == $right.sourceResourceId
| project subscriptionId, resourceGroup, resourceId, sourceResourceId, name, tags, type, location, changeType, changeTime, changedProperties
| order by changeTime asc
`

const resourcesFullTemplate = `
resources
| extend resourceId=tolower(id)
| extend resourceGroup=tolower(resourceGroup)
| project resourceId, type, name, location, tags, subscriptionId, resourceGroup
`

const containersIncrementalTemplate = `
resourcecontainerchanges
| extend changeTime=todatetime(properties.changeAttributes.timestamp)
| extend resourceType=tostring(properties.targetResourceType)
| extend resourceId=tolower(properties.targetResourceId)
| extend changeType=tostring(properties.changeType)
| extend changes=parse_json(properties.changes)
| extend changeAttributes=parse_json(properties.changeAttributes)
| project-away tags, name, type
| where changeTime > ago(%dm)
| summarize arg_max(changeTime, *) by resourceId
| join kind=leftouter (
    resourcecontainers
    | extend sourceResourceId=tolower(id)
    | project sourceResourceId, type, name, location, tags, subscriptionId, resourceGroup
) on $left.resourceId == $right.sourceResourceId
%s
| project subscriptionId, resourceGroup, resourceId, sourceResourceId, name, tags, type, location, changeType, changeTime
| order by changeTime asc
`

const containersFullTemplate = `
resourcecontainers
| extend resourceId=tolower(id)
| project resourceId, type, name, location, tags, subscriptionId, resourceGroup
| extend resourceGroup=tolower(resourceGroup)
| extend type=tolower(type)
%s
`

// ResourcesIncremental returns the change-feed query for leaf resources,
// scoped to changes newer than windowMinutes.
func ResourcesIncremental(windowMinutes int) string {
	return strings.TrimSpace(fmt.Sprintf(resourcesIncrementalTemplate, windowMinutes))
}

// ResourcesFull returns the full-inventory query for leaf resources.
func ResourcesFull() string {
	return strings.TrimSpace(resourcesFullTemplate)
}

// ContainersIncremental returns the change-feed query for resource
// containers. The compiled tag-filter clause is applied after the join so
// it tests the container's current tags.
func ContainersIncremental(windowMinutes int, filters TagFilters) string {
	return strings.TrimSpace(fmt.Sprintf(containersIncrementalTemplate, windowMinutes, Compile(filters)))
}

// ContainersFull returns the full-inventory query for resource containers.
func ContainersFull(filters TagFilters) string {
	return strings.TrimSpace(fmt.Sprintf(containersFullTemplate, Compile(filters)))
}
