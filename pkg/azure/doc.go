// Package azure talks to the Azure Resource Manager and Resource Graph
// APIs. It lists the subscriptions visible to the caller and executes
// paged Resource Graph queries, mapping responses into the engine's
// change records. Authentication is injected as a bearer token source
// so the package stays testable without real credentials.
package azure
