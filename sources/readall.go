package sources

import (
	"app-reviews-pipeline/config"
	"app-reviews-pipeline/utils"
)

// Result is the outcome of reading one source.
type Result struct {
	Source config.SourceConfig
	Batch  *Batch
	Err    error
}

// ReadAll reads every source through a worker pool. Results come back in
// declaration order regardless of completion order, so first-occurrence
// dedup downstream stays reproducible.
func ReadAll(srcs []config.SourceConfig, workers int) []Result {
	results := make([]Result, len(srcs))
	pool := utils.NewWorkerPool(workers, 0)

	for i, src := range srcs {
		i, src := i, src
		pool.Submit(func() {
			b, err := Open(src)
			results[i] = Result{Source: src, Batch: b, Err: err}
		})
	}
	pool.Wait()

	return results
}
