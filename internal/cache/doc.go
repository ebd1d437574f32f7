// Package cache provides byte-budgeted LRU caching of immutable blob blocks.
//
// ShardedLRU spreads entries over 64 independently locked LRU shards chosen
// by an xxhash of the key, so concurrent streams reading different fragments
// rarely contend. Cached bytes are accounted against a resource.Controller
// when one is supplied; a block that would exceed the controller's budget is
// simply not cached.
package cache
