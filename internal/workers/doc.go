/*
Package workers sizes worker pools in containerized environments.

Go sets GOMAXPROCS from the container CPU quota, while runtime.NumCPU still
reports host CPUs. The helpers here scale GOMAXPROCS by a workload multiplier
and cap the result:

	n := workers.ForIO(8)    // hashing and probing files on the library volume
	n := workers.ForCPU(4)   // CPU-bound work

The INDEX_WORKERS environment variable pins the count (still subject to the
limit). Only the library indexer runs in parallel; encoding itself is always
sequential.
*/
package workers
