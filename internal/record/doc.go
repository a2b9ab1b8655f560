// Package record provides the canonical typed representation of one employee.
//
// This package contains value types and serialization only. Every other
// internal package imports record; record imports nothing internal.
//
// Key design constraints:
//   - Values are a sealed set: Null, String, Decimal, Bool, Time, RefList
//   - Decimals are arbitrary precision (apd), never float64, so a rate read
//     from the export and the same rate read back from a snapshot compare equal
//   - Time values are UTC instants with millisecond precision
//   - Canonical JSON (sorted keys, NFC strings, no HTML escaping) is the only
//     serialization used for snapshots and change sets, so identical inputs
//     produce byte-identical output
package record
