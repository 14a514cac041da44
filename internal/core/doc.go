// Package core holds the import pipeline: decode, validate, classify,
// preview, confirm and export.
//
// Nothing here knows about HTTP or Postgres. Web handlers and the store
// package plug in through [Coordinator] and [CommitExecutor].
//
// # Schemas
//
// Record types are registered at init time using [Register]:
//
//	core.Register(core.RecordSchema{
//	    Name:       "contact",
//	    Collection: "contacts",
//	    Fields: []core.FieldSpec{
//	        {Name: "Name", Kind: core.KindString, Required: true},
//	        {Name: "Email", Kind: core.KindEmail},
//	    },
//	})
//
// # Pipeline
//
//  1. [DecodeBytes] turns delimited text into [RawRow] values keyed by header.
//  2. [Validate] checks one row against a schema and returns [FieldError]s.
//  3. [Classify] splits rows into valid [Record]s and invalid [ClassifiedRow]s.
//  4. [Coordinator] holds the result for preview and commits only valid rows.
//  5. [Encode] writes records back out; decoding the output reproduces them.
//
// Row problems are data, never errors. Only structural decode failures
// ([DecodeError]), session misuse and executor failures ([CommitError]) are
// returned as errors. [MapError] turns those into coded operator messages.
package core
