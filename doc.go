// Package arraystream joins and streams integer-identified array data in
// bounded memory.
//
// It provides two building blocks:
//
//   - Index maps int64 identifiers (such as soma_joinid values) to dense
//     zero-based positions, built and queried in parallel.
//   - Reader and Coordinator pull the results of a query from a stored
//     array in batches, across one or more concurrent partitions.
//
// # Quick Start
//
//	ctx := context.Background()
//	c, _ := arraystream.NewContext(arraystream.WithBlobStore(blobstore.NewLocalStore("./data")))
//
//	// Find the cells of interest.
//	obs, _ := c.NewReader(ctx, "obs",
//	    arraystream.WithColumnNames("soma_joinid"),
//	    arraystream.WithQueryCondition("cell_type == 'macrophage'"))
//	_ = obs.Submit(ctx)
//	var joinIDs []int64
//	for {
//	    rec, ok, err := obs.ReadNext(ctx)
//	    if err != nil || !ok {
//	        break
//	    }
//	    joinIDs = append(joinIDs, rec.Column(0).(*array.Int64).Int64Values()...)
//	    rec.Release()
//	}
//	obs.Close()
//
//	// Read their expression values in four partitions.
//	var readers []*arraystream.Reader
//	for k := 0; k < 4; k++ {
//	    r, _ := c.NewReader(ctx, "X")
//	    _ = r.SetDimPoints("soma_dim_0", joinIDs, arraystream.Partition{Index: k, Count: 4})
//	    readers = append(readers, r)
//	}
//	idx, _ := arraystream.BuildIndex(joinIDs, arraystream.WithIndexContext(c))
//	err := arraystream.NewCoordinator(readers).Stream(ctx, func(stream int, rec arrow.Record) error {
//	    rows := idx.GetPositions(rec.Column(0).(*array.Int64).Int64Values())
//	    // ... scatter rec into a dense matrix at rows ...
//	    return nil
//	})
//
// # Configuration
//
// A Context takes a platform configuration map. Recognized keys are typed
// and validated (see PlatformConfig); all others are passed to the array
// store unchanged.
//
// # Errors
//
// Failures are reported as ErrDuplicateKey, ErrInvalidThreadCount,
// ErrInvalidQuery, ErrStoreUnavailable, ErrResourceExhausted and
// ErrInvalidConfig, all usable with errors.As, plus the ErrReaderState and
// ErrClosed sentinels. A read buffer too small for the whole result is not
// an error: the Reader returns more batches and ResultsComplete reports
// false until the last one.
package arraystream
