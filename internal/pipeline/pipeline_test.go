package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bundleKeeper/internal/model"
)

var (
	testPayer   = solana.MustPublicKeyFromBase58("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
	testProgram = solana.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")
)

type fakeSigner struct {
	calls   int
	seen    []*solana.Transaction
	err     error
	reverse bool
	drop    bool
}

func (s *fakeSigner) PublicKey() solana.PublicKey { return testPayer }

func (s *fakeSigner) SignAll(_ context.Context, txs []*solana.Transaction) ([]*solana.Transaction, error) {
	s.calls++
	s.seen = txs
	if s.err != nil {
		return nil, s.err
	}
	out := make([]*solana.Transaction, len(txs))
	for i, tx := range txs {
		tx.Signatures = []solana.Signature{{byte(i + 1), 0xAA}}
		out[i] = tx
	}
	if s.reverse {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if s.drop {
		out = out[:len(out)-1]
	}
	return out, nil
}

type fakeRPC struct {
	sent      []solana.Signature
	sendErr   map[int]error
	chainErr  map[int]interface{}
	pending   bool
	height    uint64
	onSend    func(n int)
	statusHit int
}

func (r *fakeRPC) SendTransaction(_ context.Context, tx *solana.Transaction) (solana.Signature, error) {
	n := len(r.sent)
	r.sent = append(r.sent, tx.Signatures[0])
	if r.onSend != nil {
		r.onSend(n)
	}
	if err := r.sendErr[n]; err != nil {
		return solana.Signature{}, err
	}
	return tx.Signatures[0], nil
}

func (r *fakeRPC) SignatureStatus(_ context.Context, sig solana.Signature) (*rpc.SignatureStatusesResult, error) {
	r.statusHit++
	if r.pending {
		return nil, nil
	}
	n := len(r.sent) - 1
	if e, ok := r.chainErr[n]; ok {
		return &rpc.SignatureStatusesResult{Err: e, ConfirmationStatus: rpc.ConfirmationStatusProcessed}, nil
	}
	return &rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusConfirmed}, nil
}

func (r *fakeRPC) BlockHeight(context.Context) (uint64, error) { return r.height, nil }

func submissions(t *testing.T, n int) []Submission {
	t.Helper()
	subs := make([]Submission, n)
	for i := range subs {
		ix := solana.NewInstruction(testProgram, solana.AccountMetaSlice{solana.Meta(testPayer).SIGNER().WRITE()}, []byte{byte(i)})
		tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{1}, solana.TransactionPayer(testPayer))
		require.NoError(t, err)
		subs[i] = Submission{Transaction: tx, Description: "batch", PositionIndices: []int{i}}
	}
	return subs
}

func fastOptions(policy model.FailurePolicy) Options {
	return Options{Policy: policy, PollInterval: time.Millisecond, ConfirmTimeout: time.Second}
}

func TestExecuteSignsOnceAndSubmitsInOrder(t *testing.T) {
	subs := submissions(t, 3)
	signer := &fakeSigner{}
	client := &fakeRPC{}

	var progress []int
	results, err := New(nil, nil).Execute(context.Background(), subs, signer, client, fastOptions(model.AbortOnFirstError),
		func(completed, total int, _ solana.Signature, _ string) {
			assert.Equal(t, 3, total)
			progress = append(progress, completed)
		})
	require.NoError(t, err)
	assert.Equal(t, 1, signer.calls)
	require.Len(t, signer.seen, 3)
	for i := range subs {
		assert.Same(t, subs[i].Transaction, signer.seen[i])
	}
	require.Len(t, client.sent, 3)
	for i, sig := range client.sent {
		assert.Equal(t, byte(i+1), sig[0])
	}
	assert.Equal(t, []int{1, 2, 3}, progress)
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.True(t, r.Attempted)
		assert.True(t, r.Success)
		assert.NotEmpty(t, r.Signature)
	}
	assert.NoError(t, model.NewSubmissionSummary(results).Err())
}

func TestExecuteContinueOnError(t *testing.T) {
	subs := submissions(t, 3)
	client := &fakeRPC{sendErr: map[int]error{1: errors.New("node unhealthy")}}
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	results, err := New(nil, metrics).Execute(context.Background(), subs, &fakeSigner{}, client, fastOptions(model.ContinueOnError), nil)
	require.NoError(t, err)
	require.Len(t, client.sent, 3)

	summary := model.NewSubmissionSummary(results)
	assert.Equal(t, 2, summary.SuccessCount)
	assert.Equal(t, 3, summary.Total)
	assert.True(t, results[1].Attempted)
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Error, "node unhealthy")
	assert.ErrorIs(t, summary.Err(), model.ErrSubmission)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.submissions.WithLabelValues(outcomeConfirmed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.submissions.WithLabelValues(outcomeFailed)))
}

func TestExecuteAbortOnFirstError(t *testing.T) {
	subs := submissions(t, 4)
	client := &fakeRPC{chainErr: map[int]interface{}{1: map[string]interface{}{"InstructionError": []interface{}{1, "Custom"}}}}

	results, err := New(nil, nil).Execute(context.Background(), subs, &fakeSigner{}, client, fastOptions(model.AbortOnFirstError), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrSubmission)

	var batchErr *model.BatchError
	require.True(t, errors.As(err, &batchErr))
	assert.Equal(t, []int{1}, batchErr.PositionIndices)

	require.Len(t, client.sent, 2)
	assert.True(t, results[0].Success)
	assert.True(t, results[1].Attempted)
	assert.False(t, results[1].Success)
	assert.False(t, results[2].Attempted)
	assert.False(t, results[3].Attempted)
}

func TestExecuteSigningFailures(t *testing.T) {
	cases := []struct {
		name   string
		signer Signer
	}{
		{name: "rejected", signer: &fakeSigner{err: errors.New("user declined")}},
		{name: "reordered", signer: &fakeSigner{reverse: true}},
		{name: "short", signer: &fakeSigner{drop: true}},
		{name: "nil", signer: nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := &fakeRPC{}
			results, err := New(nil, nil).Execute(context.Background(), submissions(t, 3), tc.signer, client, fastOptions(model.ContinueOnError), nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrSigningRejected)
			assert.Empty(t, client.sent)
			require.Len(t, results, 3)
			for _, r := range results {
				assert.False(t, r.Attempted)
			}
		})
	}
}

func TestExecuteConfirmTimeout(t *testing.T) {
	client := &fakeRPC{pending: true}
	opts := Options{Policy: model.ContinueOnError, PollInterval: time.Millisecond, ConfirmTimeout: 20 * time.Millisecond}

	results, err := New(nil, nil).Execute(context.Background(), submissions(t, 2), &fakeSigner{}, client, opts, nil)
	require.NoError(t, err)
	require.Len(t, client.sent, 2)
	for _, r := range results {
		assert.True(t, r.Attempted)
		assert.False(t, r.Success)
		assert.Contains(t, r.Error, "timed out")
	}
	assert.Greater(t, client.statusHit, 2)
}

func TestExecuteBlockhashExpiry(t *testing.T) {
	subs := submissions(t, 1)
	subs[0].LastValidBlockHeight = 100
	client := &fakeRPC{pending: true, height: 101}

	results, err := New(nil, nil).Execute(context.Background(), subs, &fakeSigner{}, client, fastOptions(model.AbortOnFirstError), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errBlockhashExpired)
	assert.False(t, results[0].Success)
}

func TestExecuteCancelledBetweenSubmissions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &fakeRPC{}
	results, err := New(nil, nil).Execute(ctx, submissions(t, 3), &fakeSigner{}, client, fastOptions(model.ContinueOnError),
		func(completed, _ int, _ solana.Signature, _ string) {
			if completed == 1 {
				cancel()
			}
		})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, client.sent, 1)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Attempted)
	assert.False(t, results[2].Attempted)
}

func TestExecuteProgressPanicDoesNotStopRun(t *testing.T) {
	client := &fakeRPC{}
	results, err := New(nil, nil).Execute(context.Background(), submissions(t, 2), &fakeSigner{}, client, fastOptions(model.AbortOnFirstError),
		func(int, int, solana.Signature, string) { panic("boom") })
	require.NoError(t, err)
	assert.Equal(t, 2, model.NewSubmissionSummary(results).SuccessCount)
}

func TestExecuteEmpty(t *testing.T) {
	signer := &fakeSigner{}
	results, err := New(nil, nil).Execute(context.Background(), nil, signer, &fakeRPC{}, Options{}, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, signer.calls)
}
