/*
Package workers sizes and runs the CPU-bound codec worker pool.

# Sizing

When running in containers the number of usable CPUs may be limited by
cgroup constraints. Go 1.19+ sets GOMAXPROCS from the container CPU limit,
while runtime.NumCPU() still reports the host count. [Count] and its
[ForCPU] use GOMAXPROCS:

	// Decode/resize/encode: 1 worker per available CPU, at most 8
	n := workers.ForCPU(8)

The CODEC_WORKERS environment variable overrides the calculation. It is
still capped by the limit argument.

# Pool

[Pool] keeps a fixed set of goroutines for image work. Request handlers
submit jobs with [Run], which blocks until a worker is free, the context is
cancelled or the pool is closed:

	pool := workers.NewPool(workers.ForCPU(0))
	defer pool.Close()

	out, err := workers.Run(ctx, pool, func() ([]byte, error) {
		return encode(img)
	})

A job that has started is never interrupted; a cancelled caller just stops
waiting for it.
*/
package workers
