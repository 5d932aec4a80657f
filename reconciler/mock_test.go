package reconciler

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// fakeSubscription is a controllable ethereum.Subscription.
type fakeSubscription struct {
	errCh  chan error
	unsubs int
	mu     sync.Mutex
}

func newFakeSubscription() *fakeSubscription {
	return &fakeSubscription{errCh: make(chan error, 1)}
}

func (s *fakeSubscription) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubs++
}

func (s *fakeSubscription) Err() <-chan error {
	return s.errCh
}

// Fail drops the stream from the node side.
func (s *fakeSubscription) Fail(err error) {
	s.errCh <- err
}

// fakeStreamClient implements ledger.Client for subscription tests. Each
// SubscribeFilterLogs call hands back a session the test can push logs
// into or fail.
type fakeStreamClient struct {
	mu            sync.Mutex
	subscribeErrs []error // consumed one per attempt before succeeding
	sessions      []*session
	sessionCh     chan *session
}

type session struct {
	logs chan<- types.Log
	sub  *fakeSubscription
}

func newFakeStreamClient() *fakeStreamClient {
	return &fakeStreamClient{sessionCh: make(chan *session, 8)}
}

func (c *fakeStreamClient) SubscribeFilterLogs(_ context.Context, _ ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.subscribeErrs) > 0 {
		err := c.subscribeErrs[0]
		c.subscribeErrs = c.subscribeErrs[1:]
		return nil, err
	}
	s := &session{logs: ch, sub: newFakeSubscription()}
	c.sessions = append(c.sessions, s)
	c.sessionCh <- s
	return s.sub, nil
}

func (c *fakeStreamClient) sessionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// The reconciler only subscribes; the remaining ledger.Client methods are
// never reached from these tests.

func (c *fakeStreamClient) PendingNonceAt(context.Context, ethcommon.Address) (uint64, error) {
	panic("not used")
}

func (c *fakeStreamClient) SuggestGasPrice(context.Context) (*big.Int, error) {
	panic("not used")
}

func (c *fakeStreamClient) SendTransaction(context.Context, *types.Transaction) error {
	panic("not used")
}

func (c *fakeStreamClient) TransactionReceipt(context.Context, ethcommon.Hash) (*types.Receipt, error) {
	panic("not used")
}

func (c *fakeStreamClient) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	panic("not used")
}
