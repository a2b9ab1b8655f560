// Package airtable is the system-of-record client.
//
// It reads two lookups per run, the employee index (payroll number to
// record id) and the store directory (store code to record id), by paging
// through every record of a table. Writes go out as PATCH (update) and POST
// (create) batches of at most ten records.
//
// All requests pass through a client-side rate limiter. Only HTTP 429 is
// retried, with exponential backoff: a 429 guarantees the batch was not
// applied, while retrying any other failure could create duplicates.
package airtable
