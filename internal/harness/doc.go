// Package harness runs rotation scenarios against a real SQLite store.
//
// A scenario seeds a catalog, drives the rotator through a sequence of
// steps on a manual clock, and checks the resulting trace and final store
// state. Traces are deterministic so they can be compared against golden
// files.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	start: 2024-03-10T12:00:00Z
//	period: daily
//	timezone: UTC
//	artists:
//	  - name: Nina Simone
//	  - name: Sun Ra
//	    featured_at: 2024-03-09T00:00:00Z
//	steps:
//	  - op: rotate
//	    expect: { outcome: ok, artist: Nina Simone }
//	  - op: featured
//	    expect: { source: cache }
//	  - op: advance
//	    duration: 24h
//	  - op: fail
//	    method: Save
//	assertions:
//	  - type: trace_order
//	    artists: [Nina Simone, Sun Ra]
//	  - type: final_state
//	    artist: Nina Simone
//	    expect: { version: 1 }
//
// # Step Operations
//
//   - rotate: runs TriggerRotation and records every state transition
//   - featured: reads the featured artist and records cache or store source
//   - advance: moves the manual clock forward by duration
//   - fail: makes the next store call to method fail
//
// # Assertion Types
//
//   - trace_contains: an event with the given op and fields exists
//   - trace_order: successful rotations featured these artists in order
//   - trace_count: exactly count events with the given op and outcome
//   - final_state: an artist row matches the expected values
//
// # Deterministic Testing
//
// Every scenario runs in a fresh in-memory database with a manual clock
// starting at scenario.start and sequential cycle ids (cycle-1, cycle-2,
// ...), so identical scenarios always produce identical traces.
package harness
