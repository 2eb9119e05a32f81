// Package harness runs conformance scenarios against the record stores.
//
// A scenario drives one store through a list of steps and checks what each
// step reports. Every run gets a fresh store in its own temp directory, so
// scenarios never see each other's records.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: image_round_trip
//	description: "Inserted images read back unchanged"
//	backend: bolt          # bolt (default) or sqlite
//	kind: image            # image or verse
//	codec: cbor            # optional, bolt only
//	steps:
//	  - op: insert
//	    as: cat
//	    record: { title: Cat, type: image/png, data: "meow" }
//	  - op: get
//	    ref: cat
//	    expect: found
//	  - op: list
//	    expect_count: 1
//	  - op: delete
//	    ref: cat
//	    expect: ok
//	  - op: reopen
//	assertions:
//	  - type: final_count
//	    count: 0
//
// A ref names a label set by an earlier insert's "as"; anything else is used
// as a literal id.
//
// # Assertion Types
//
//   - trace_contains: some step ran op with the given outcome
//   - trace_order: the listed ops appear in that order
//   - trace_count: op ran exactly count times
//   - final_count: the store holds count records after the last step
//
// # Deterministic Testing
//
// Verse ids come from ident.SequentialGenerator and image ids from the
// backend's sequence, so the same scenario always yields the same trace.
// RunWithGolden compares that trace against a directory of golden files.
package harness
