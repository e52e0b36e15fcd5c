package failures

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/recallio/recall-mvp/pkg/fn"
	"github.com/recallio/recall-mvp/pkg/natsutil"
)

const (
	// Subject is the NATS subject for incoming failure reports.
	Subject = "failures.report"
	// DLQSubject is the dead letter queue for reports that keep failing.
	DLQSubject = "failures.report.dlq"
	// MaxRetries before a report is parked on the DLQ.
	MaxRetries = 3

	retryHeader = "X-Retry-Count"
)

// dlqMessage is published to the DLQ on repeated failure.
type dlqMessage struct {
	Report  Report `json:"report"`
	Error   string `json:"error"`
	Retries int    `json:"retries"`
}

// StartConsumer subscribes to the failure-report subject and runs each
// report through the indexer, under the trace context carried in the
// message headers. Failed reports are re-published with an incremented
// retry count, then parked on the DLQ after MaxRetries.
func StartConsumer(nc *nats.Conn, ix *Indexer, log *slog.Logger) (*nats.Subscription, error) {
	if log == nil {
		log = slog.Default()
	}

	indexStage := fn.TracedStage("failures.index", func(ctx context.Context, r Report) fn.Result[Result] {
		return fn.FromPair(ix.IndexReport(ctx, r))
	})

	return natsutil.SubscribeMsg(nc, Subject, func(ctx context.Context, report Report, msg *nats.Msg) {
		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get(retryHeader); v != "" {
				fmt.Sscanf(v, "%d", &retries)
			}
		}

		result := indexStage(ctx, report)
		if result.IsErr() {
			_, indexErr := result.Unwrap()
			retries++
			log.Error("failures: index failed",
				"error", indexErr,
				"build_id", report.BuildID,
				"retry", retries,
			)

			if retries >= MaxRetries {
				dlq := dlqMessage{Report: report, Error: indexErr.Error(), Retries: retries}
				if err := natsutil.Publish(ctx, nc, DLQSubject, dlq); err != nil {
					log.Error("failures: DLQ publish failed", "error", err)
				}
			} else {
				retryMsg := nats.NewMsg(Subject)
				retryMsg.Data = msg.Data
				retryMsg.Header = nats.Header{}
				retryMsg.Header.Set(retryHeader, fmt.Sprintf("%d", retries))
				if err := nc.PublishMsg(retryMsg); err != nil {
					log.Error("failures: retry publish failed", "error", err)
				}
			}
			return
		}

		res, _ := result.Unwrap()
		log.Info("failures: indexed", "point_id", res.PointID, "signature_id", res.SignatureID)
	})
}
