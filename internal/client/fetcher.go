package client

import (
	"context"
	"errors"
	"fmt"

	"adreact/internal/polling"
	"adreact/internal/reactions"
)

// ReactionStatusFetch builds the poll function for a submitted reaction.
// Queue-backed reactions enrich the snapshot with the backing job's retry
// count; fallback reactions have no queue job and are tracked through the
// reaction record alone, so the queue endpoint is never touched for them.
func ReactionStatusFetch(c *Client, reactionID string, queueJobID *int64) polling.FetchFunc {
	return func(ctx context.Context) (polling.Snapshot, error) {
		view, err := c.Reaction(ctx, reactionID)
		if err != nil {
			if errors.Is(err, ErrReactionNotFound) {
				return polling.Snapshot{}, polling.ErrNotFound
			}
			return polling.Snapshot{}, err
		}

		snapshot := polling.Snapshot{
			Status:   view.Status,
			Detail:   view.ErrorUserMessage,
			Terminal: reactions.Status(view.Status).IsTerminal(),
		}

		if queueJobID != nil && !snapshot.Terminal && view.Status != string(reactions.StatusProcessingFallback) {
			job, jobErr := c.QueueJob(ctx, *queueJobID)
			switch {
			case errors.Is(jobErr, ErrQueueJobNotFound):
				// Job was cleared; the reaction record stays authoritative.
			case jobErr != nil:
				return polling.Snapshot{}, jobErr
			case job.RetryCount > 0:
				snapshot.Detail = fmt.Sprintf("queue job %s, retry %d", job.Status, job.RetryCount)
			default:
				snapshot.Detail = "queue job " + job.Status
			}
		}
		return snapshot, nil
	}
}
