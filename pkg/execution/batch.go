package execution

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/speedrun-hq/speedrun-executor/pkg/metrics"
	"github.com/speedrun-hq/speedrun-executor/pkg/models"
	"github.com/speedrun-hq/speedrun-executor/pkg/signature"
)

// DefaultBatchWorkers is the worker count of SignBatch when none is given
const DefaultBatchWorkers = 4

// BatchItem is one digest to sign, usually the same payload on another chain
type BatchItem struct {
	ChainID uint64
	Digest  common.Hash
}

// BatchSignFunc signs one batch item
type BatchSignFunc func(ctx context.Context, item BatchItem) ([]byte, error)

// BatchResult is the outcome of one batch item. A failed item does not stop the batch.
type BatchResult struct {
	ID        uuid.UUID
	Index     int
	Item      BatchItem
	Signature []byte
	Err       error
}

// ProgressFunc is called after each item of a sequential batch
type ProgressFunc func(done, total int, result BatchResult)

func signItem(ctx context.Context, index int, item BatchItem, sign BatchSignFunc) BatchResult {
	r := BatchResult{ID: uuid.New(), Index: index, Item: item}
	if err := ctx.Err(); err != nil {
		r.Err = err
	} else {
		r.Signature, r.Err = sign(ctx, item)
	}
	if r.Err != nil {
		metrics.BatchItems.WithLabelValues("failed").Inc()
	} else {
		metrics.BatchItems.WithLabelValues("signed").Inc()
	}
	return r
}

type batchJob struct {
	index int
	item  BatchItem
}

// SignBatch signs items on a pool of workers. Items complete in any order;
// results are returned in input order.
func SignBatch(ctx context.Context, items []BatchItem, sign BatchSignFunc, workers int) []BatchResult {
	if workers <= 0 {
		workers = DefaultBatchWorkers
	}
	if workers > len(items) {
		workers = len(items)
	}

	results := make([]BatchResult, len(items))
	jobs := make(chan batchJob, len(items))
	for i, item := range items {
		jobs <- batchJob{index: i, item: item}
	}
	close(jobs)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				results[job.index] = signItem(ctx, job.index, job.item, sign)
			}
		}()
	}
	wg.Wait()
	return results
}

// SignSequential signs items one at a time, reporting progress after each
func SignSequential(ctx context.Context, items []BatchItem, sign BatchSignFunc, progress ProgressFunc) []BatchResult {
	results := make([]BatchResult, len(items))
	for i, item := range items {
		results[i] = signItem(ctx, i, item, sign)
		if progress != nil {
			progress(i+1, len(items), results[i])
		}
	}
	return results
}

// BatchSigner returns a sign function producing ERC-1271 signatures with the
// signer set resolved for override, or the account owners when nil.
func (e *Executor) BatchSigner(override models.SignerSet) (BatchSignFunc, error) {
	res, err := e.resolver.Resolve(override)
	if err != nil {
		return nil, err
	}
	extra := extraOf(res)
	return func(ctx context.Context, item BatchItem) ([]byte, error) {
		raw, err := res.Signer.Sign(ctx, item.Digest)
		if err != nil {
			return nil, err
		}
		return signature.ForERC1271(raw, res.Validator, res.Kind, extra)
	}, nil
}
