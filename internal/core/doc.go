// Package core provides the business logic of the OVD sync service.
//
// The package moves fuel-consumption data between DNV OVD workbooks and the
// ledger table, independent of any transport layer. It is used by the web
// server, the ovdctl command and the scheduler without modification.
//
// # Architecture
//
//   - Service: the entry point for imports, exports, sync runs, sync
//     history and sync config management.
//   - Store: persistence. [PostgresStore] implements it over pgx; every
//     import and export runs inside one [Store.InTx] call.
//   - AuditService: the append-only audit trail.
//
// # Import
//
// [Service.ImportFile] isolates failures per spreadsheet row:
//
//  1. The workbook is parsed. An unreadable workbook is recorded as a FAILED
//     file/history pair and returned as a FORMAT_ERROR.
//  2. Each record is validated, mapped to ledger entries and inserted under
//     its own savepoint. A failing record becomes a validation error row.
//  3. The history row ends SUCCESS or PARTIAL_SUCCESS with its counts.
//
// A storage failure rolls back the whole import.
//
// # Error Handling
//
// Operation failures are [*Error] values carrying an [ErrorKind]. Technical
// errors are mapped to user-facing messages with [MapError]; each category
// has a support code:
//
//   - FILE001-FILE006: file errors (size, type, unreadable workbooks)
//   - VAL001-VAL007: validation errors (dates, amounts, required fields)
//   - SYNC001-SYNC002: sync errors (no data, busy)
//   - SCH001-SCH003: schedule errors (cron, direction, unknown config)
//   - DB001-DB007: database errors
//
// # Audit Logging
//
// Every operation appends an audit entry with a severity:
//
//   - Low: automated syncs
//   - Medium: exports, config changes, manual syncs
//   - High: imports, deletions, any failure
//   - Critical: a config disabled after exhausting its retries
//
// Audit failures are logged and never returned to the caller.
package core
