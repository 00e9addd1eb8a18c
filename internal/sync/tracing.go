package sync

import (
	"github.com/newrelic/go-agent/v3/newrelic"

	"example.com/tavolo/possync/internal/tracing"
)

// tracingTxn wraps a tracer transaction so reconcile steps can notice
// errors without nil-checking the tracer everywhere. A nil receiver is a
// no-op, matching a reconciler built without a tracer.
type tracingTxn struct {
	tracer tracing.Tracer
	txn    *newrelic.Transaction
}

func (t *tracingTxn) noticeError(err error) {
	if t == nil || t.tracer == nil {
		return
	}
	t.tracer.RecordError(t.txn, err)
}

func (t *tracingTxn) end() {
	if t == nil || t.tracer == nil {
		return
	}
	t.tracer.EndTransaction(t.txn)
}
