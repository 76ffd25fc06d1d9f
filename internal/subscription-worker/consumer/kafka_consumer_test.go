package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/fitness-benefits-platform/internal/subscription-worker/reconciler"
	"github.com/radieske/fitness-benefits-platform/pkg/contracts/events"
)

// fakeReader entrega as mensagens e depois bloqueia até o contexto acabar
type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []kafka.Message
	done      chan struct{}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	close(r.done)
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

type fakeWriter struct{ msgs []kafka.Message }

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

type flakyHandler struct {
	failures map[string]int // event_id -> falhas antes de sucesso (-1 = sempre)
	calls    map[string]int
	err      error
}

func (h *flakyHandler) Reconcile(_ context.Context, msg events.AsaasWebhook) error {
	h.calls[msg.EventID]++
	n := h.failures[msg.EventID]
	if n < 0 || h.calls[msg.EventID] <= n {
		if h.err != nil {
			return h.err
		}
		return fmt.Errorf("transient %d", h.calls[msg.EventID])
	}
	return nil
}

type failures struct{ marked map[string]string }

func (f *failures) MarkWebhookFailed(_ context.Context, id, reason string) error {
	f.marked[id] = reason
	return nil
}

func message(t *testing.T, id string) kafka.Message {
	t.Helper()
	b, err := json.Marshal(events.AsaasWebhook{EventID: id, Event: "PAYMENT_RECEIVED", PaymentID: "pay_" + id, Raw: json.RawMessage(`{}`)})
	require.NoError(t, err)
	return kafka.Message{Key: []byte("pay_" + id), Value: b}
}

func run(t *testing.T, p *Processor, r *fakeReader) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- p.Run(ctx) }()
	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer não drenou as mensagens")
	}
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
}

func TestProcessor_RetriesThenSucceeds(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{message(t, "e1")}, done: make(chan struct{})}
	h := &flakyHandler{failures: map[string]int{"e1": 2}, calls: map[string]int{}}
	dlq := &fakeWriter{}
	processed := 0
	p := &Processor{Log: zap.NewNop(), Reader: r, DLQ: dlq, Handler: h, Backoff: time.Millisecond,
		OnProcessed: func() { processed++ }}

	run(t, p, r)
	assert.Equal(t, 3, h.calls["e1"])
	assert.Equal(t, 1, processed)
	assert.Empty(t, dlq.msgs)
	assert.Len(t, r.committed, 1)
}

func TestProcessor_ExhaustedRetriesGoToDLQ(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{message(t, "e1"), message(t, "e2")}, done: make(chan struct{})}
	h := &flakyHandler{failures: map[string]int{"e1": -1}, calls: map[string]int{}}
	dlq := &fakeWriter{}
	f := &failures{marked: map[string]string{}}
	p := &Processor{Log: zap.NewNop(), Reader: r, DLQ: dlq, Handler: h, Failures: f, Backoff: time.Millisecond}

	run(t, p, r)
	assert.Equal(t, 4, h.calls["e1"], "1 tentativa + 3 retries")
	assert.Equal(t, 1, h.calls["e2"])
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, []byte("pay_e1"), dlq.msgs[0].Key)
	assert.Equal(t, "attempts", dlq.msgs[0].Headers[1].Key)
	assert.Equal(t, "4", string(dlq.msgs[0].Headers[1].Value))
	assert.Contains(t, f.marked, "e1")
	assert.Len(t, r.committed, 2, "offsets confirmados mesmo após DLQ")
}

// cancelingHandler simula o SIGTERM chegando durante a reconciliação
type cancelingHandler struct {
	cancel context.CancelFunc
	calls  int
}

func (h *cancelingHandler) Reconcile(ctx context.Context, _ events.AsaasWebhook) error {
	h.calls++
	h.cancel()
	<-ctx.Done()
	return fmt.Errorf("tx aborted: %w", ctx.Err())
}

func TestProcessor_ShutdownDuringReconcileKeepsOffset(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &fakeReader{msgs: []kafka.Message{message(t, "evt_1")}, done: make(chan struct{})}
	h := &cancelingHandler{cancel: cancel}
	dlq := &fakeWriter{}
	f := &failures{marked: map[string]string{}}
	p := &Processor{Log: zap.NewNop(), Reader: r, DLQ: dlq, Handler: h, Failures: f, Backoff: time.Millisecond}

	err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, h.calls)
	assert.Empty(t, dlq.msgs, "evento saudável não vai para a DLQ no shutdown")
	assert.Empty(t, f.marked)
	assert.Empty(t, r.committed, "offset fica pendente para reentrega")
}

func TestProcessor_MalformedSkipsRetries(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{message(t, "e1"), {Value: []byte("garbage")}}, done: make(chan struct{})}
	h := &flakyHandler{failures: map[string]int{"e1": -1}, calls: map[string]int{}, err: reconciler.ErrMalformed}
	dlq := &fakeWriter{}
	p := &Processor{Log: zap.NewNop(), Reader: r, DLQ: dlq, Handler: h, Backoff: time.Millisecond}

	run(t, p, r)
	assert.Equal(t, 1, h.calls["e1"])
	assert.Len(t, dlq.msgs, 2)
	assert.True(t, errors.Is(h.err, reconciler.ErrMalformed))
}
