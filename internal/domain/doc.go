// Package domain defines the core types shared by the list sync engine.
//
// Types in this package are value objects with no database or HTTP
// dependencies. They are the shared language between the reconciliation
// service, the staging stores, the CRM repositories and the remote client.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON/DB tags are allowed (they're metadata, not behavior)
//   - Validation and hashing methods are allowed (pure functions on the type)
//   - Constants and enums belong here
package domain
