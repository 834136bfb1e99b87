package sampler

import (
	"context"
	"fmt"
	"time"
)

// requestBatched obtains count choices through successive transport calls.
//
// The first attempt asks for all of them. A successful batch reduces the
// remaining count and the next batch never grows beyond the previous one.
// A failed batch halves the batch size, rounding up, and costs one unit of
// an attempt budget equal to count. The loop ends when nothing remains or
// the budget is spent; in the latter case the partial result is returned
// without error.
func (c *Client) requestBatched(ctx context.Context, prompt string, count int) (*Result, error) {
	res := &Result{Prompt: prompt, Requested: count}
	remaining := count
	batch := count
	attemptsLeft := count

	for remaining > 0 && attemptsLeft > 0 {
		if batch < 1 {
			panic(fmt.Sprintf("sampler: invalid batch size %d", batch))
		}

		resp, err := c.chat(ctx, prompt, batch)
		if err == nil {
			c.metrics.batchAttempt("ok")
			res.Responses = append(res.Responses, resp)
			remaining -= batch
			batch = min(remaining, batch)
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}

		c.metrics.batchAttempt("error")
		res.FailedAttempts++
		batch = shrinkBatch(batch)
		c.log.Warn().
			Err(err).
			Int("next_batch", batch).
			Int("remaining", remaining).
			Int("attempts_left", attemptsLeft-1).
			Msg("batch request failed, trying again with fewer samples")
		if err := c.clock.Sleep(ctx, c.batchDelay()); err != nil {
			return res, err
		}
		attemptsLeft--
	}

	if remaining > 0 {
		c.log.Warn().
			Int("requested", count).
			Int("obtained", res.Len()).
			Int("failed_attempts", res.FailedAttempts).
			Msg("attempt budget exhausted, returning partial result")
	}
	return res, nil
}

// shrinkBatch halves a batch size, rounding up, never going below 1.
func shrinkBatch(batch int) int {
	return max((batch+1)/2, 1)
}

// batchDelay draws the pause after a failed batch from
// [BatchDelayMin, BatchDelayMax].
func (c *Client) batchDelay() time.Duration {
	lo, hi := c.cfg.BatchDelayMin, c.cfg.BatchDelayMax
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(c.randFunc()*float64(hi-lo))
}
