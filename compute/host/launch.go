package host

import (
	"context"

	"github.com/gomlx/clvec/compute"
	"github.com/gomlx/clvec/compute/host/clc"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// maxDefaultLocalSize bounds the work-group size chosen when none is given.
const maxDefaultLocalSize = 256

// chunksPerWorker is the target number of chunks per worker when the context doesn't set a "chunk_size".
const chunksPerWorker = 4

// EnqueueNDRangeKernel implements compute.Driver.
//
// The arguments are captured when the command is enqueued: changing them afterward doesn't affect it.
// An empty range (some global size 0) completes without running any work-item.
func (d *Driver) EnqueueNDRangeKernel(queue compute.QueueID, kernel compute.KernelID, global, local []int) (compute.EventID, compute.Status) {
	if len(global) < 1 || len(global) > 3 {
		return 0, compute.InvalidWorkDimension
	}
	for _, g := range global {
		if g < 0 {
			return 0, compute.InvalidGlobalWorkSize
		}
	}
	if local == nil {
		local = defaultLocalSize(global)
	} else {
		if len(local) != len(global) {
			return 0, compute.InvalidWorkDimension
		}
		groupSize := 1
		for ii, l := range local {
			if l <= 0 || global[ii]%l != 0 {
				return 0, compute.InvalidWorkGroupSize
			}
			groupSize *= l
		}
		if groupSize > MaxWorkGroupSize {
			return 0, compute.InvalidWorkGroupSize
		}
	}
	nd, err := clc.NewNDRange(global, local)
	if err != nil {
		klog.Errorf("host: %+v", err)
		return 0, compute.InvalidValue
	}

	d.mu.Lock()
	k, found := d.kernels[kernel]
	if !found {
		d.mu.Unlock()
		return 0, compute.InvalidKernel
	}
	args, status := d.bindArgs(k)
	d.mu.Unlock()
	if status.IsError() {
		return 0, status
	}
	inv, err := k.kernel.Bind(args)
	if err != nil {
		klog.Errorf("host: %+v", err)
		return 0, compute.InvalidKernelArgs
	}
	c := k.program.ctx
	name := k.kernel.Name
	return d.enqueue(queue, false, func() (compute.Status, string) {
		if err := runChunks(c, inv, nd); err != nil {
			klog.V(1).Infof("host: kernel %q failed: %v", name, err)
			return compute.OutOfResources, err.Error()
		}
		return compute.Success, ""
	})
}

// defaultLocalSize uses the largest divisor of the first dimension up to maxDefaultLocalSize, and 1 for the others.
func defaultLocalSize(global []int) []int {
	local := make([]int, len(global))
	for ii := range local {
		local[ii] = 1
	}
	for l := min(global[0], maxDefaultLocalSize); l > 1; l-- {
		if global[0]%l == 0 {
			local[0] = l
			break
		}
	}
	return local
}

// runChunks splits the work-items in chunks and runs them with at most c.maxWorkers goroutines.
// It returns the first error, and chunks not yet started are skipped.
func runChunks(c *hostContext, inv *clc.Invocation, nd clc.NDRange) error {
	total := nd.Size()
	chunkSize := c.chunkSize
	if chunkSize <= 0 {
		numChunks := c.maxWorkers * chunksPerWorker
		chunkSize = max(1, (total+numChunks-1)/numChunks)
	}
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(c.maxWorkers)
	for from := 0; from < total; from += chunkSize {
		if ctx.Err() != nil {
			break
		}
		to := min(from+chunkSize, total)
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			return inv.Run(nd, from, to)
		})
	}
	return g.Wait()
}
