// Package harness runs reconciliation scenarios against the real engine.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: rate_change
//	description: "A changed rate becomes an update"
//	stores: { S1: recS1 }
//	airtable:
//	  - { id: recA, payroll: "123" }
//	baseline:
//	  - { payroll: "123", first_name: Ada, rate: "10.5", store: S1 }
//	exports:
//	  - name: export.xlsx
//	    rows:
//	      - { payroll: "123", first_name: Ada, rate: "11.0", store: S1 }
//	fail:
//	  - { method: POST, status: 422 }
//	expect:
//	  to_update: ["123"]
//	  to_create: []
//	  unchanged: []
//	  skipped: 0
//	  error: CommitFailure
//
// Row keys are either employee field names or the short aliases in
// [FieldAliases]. Cells are the raw text the portal would export.
//
// # Determinism
//
// Each run gets a fresh fake Airtable, an in-memory snapshot store, a fake
// clock and sequential snapshot keys, so the [Summary] of a scenario is
// byte-stable and suitable for golden comparison.
package harness
