package scheduler

import (
	"context"
	"sync"

	"github.com/paiban/pharmashift/pkg/model"
)

// defaultWorkers 批量运行的默认并发数
const defaultWorkers = 4

// BatchResult 批量运行中单个请求的结果
type BatchResult struct {
	Index  int
	Result *model.RunResult
	Err    error
}

// GenerateBatch 并发执行多个相互独立的排班运行（例如不同门店），结果按请求顺序返回。
// ctx 取消后尚未开始的运行返回 ctx.Err()，已开始的运行会执行完毕。
func (e *Engine) GenerateBatch(ctx context.Context, reqs []Request, workers int) []BatchResult {
	if len(reqs) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = defaultWorkers
	}

	jobs := make(chan int, len(reqs))
	results := make([]BatchResult, len(reqs))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				select {
				case <-ctx.Done():
					results[idx] = BatchResult{Index: idx, Err: ctx.Err()}
				default:
					res, err := e.Generate(reqs[idx])
					results[idx] = BatchResult{Index: idx, Result: res, Err: err}
				}
			}
		}()
	}

	for i := range reqs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}
