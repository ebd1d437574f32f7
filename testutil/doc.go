// Package testutil provides testing utilities for arraystream.
//
// This package is intended for use in tests and benchmarks only.
// It provides seeded random data, blob stores with injected failures and
// fixture arrays shaped like single-cell data.
//
// # Random Data
//
//	rng := testutil.NewRNG(seed)
//	ids := rng.UniqueInt64s(1000, -1<<40, 1<<40) // distinct keys
//	rng.ShuffleInt64s(ids)
//
// # Failure Injection
//
//	fs := testutil.NewFaultyStore(blobstore.NewMemoryStore(), io.ErrUnexpectedEOF)
//	fs.FailOpens("__fragments/", 1) // the second fragment open fails
//
// # Fixtures
//
//	schema := testutil.MatrixSchema()
//	rec := testutil.MatrixRecord(mem, cells)
package testutil
