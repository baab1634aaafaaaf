package serial

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("serializer closed")

type runRequest struct {
	ctx context.Context
	fn  func(ctx context.Context) error
}

type runResult struct {
	err error
}

// keyActor owns one key. Its mailbox is the queue of pending work.
type keyActor struct {
	key    string
	logger *zap.Logger
}

func (a *keyActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *runRequest:
		ctx.Respond(&runResult{err: a.run(msg)})

	case *actor.Started:
		a.logger.Debug("Key actor started", zap.String("key", a.key))

	case *actor.Stopped:
		a.logger.Debug("Key actor stopped", zap.String("key", a.key))
	}
}

func (a *keyActor) run(req *runRequest) (err error) {
	if err := req.ctx.Err(); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Recovered panic in serialized work",
				zap.String("key", a.key), zap.Any("panic", r))
			err = fmt.Errorf("panic in serialized work: %v", r)
		}
	}()
	return req.fn(req.ctx)
}

// ActorSerializer keeps one actor per key inside a local actor system.
type ActorSerializer struct {
	system  *actor.ActorSystem
	logger  *zap.Logger
	timeout time.Duration

	mu     sync.Mutex
	pids   map[string]*actor.PID
	closed bool
}

func NewActorSerializer(logger *zap.Logger, timeout time.Duration) *ActorSerializer {
	return &ActorSerializer{
		system:  actor.NewActorSystem(),
		logger:  logger.Named("serializer"),
		timeout: timeout,
		pids:    make(map[string]*actor.PID),
	}
}

func (s *ActorSerializer) pid(key string) (*actor.PID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if pid, ok := s.pids[key]; ok {
		return pid, nil
	}
	props := actor.PropsFromProducer(func() actor.Actor {
		return &keyActor{key: key, logger: s.logger}
	})
	pid := s.system.Root.Spawn(props)
	s.pids[key] = pid
	return pid, nil
}

func (s *ActorSerializer) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	pid, err := s.pid(key)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	future := s.system.Root.RequestFuture(pid, &runRequest{ctx: ctx, fn: fn}, s.timeout)
	result, err := future.Result()
	if err != nil {
		return fmt.Errorf("serialized call for %s failed: %w", key, err)
	}
	res, ok := result.(*runResult)
	if !ok {
		return fmt.Errorf("unexpected response %T", result)
	}
	return res.err
}

func (s *ActorSerializer) Forget(key string) {
	s.mu.Lock()
	pid, ok := s.pids[key]
	delete(s.pids, key)
	s.mu.Unlock()

	if ok {
		s.system.Root.Stop(pid)
	}
}

func (s *ActorSerializer) Close() error {
	s.mu.Lock()
	pids := s.pids
	s.pids = make(map[string]*actor.PID)
	s.closed = true
	s.mu.Unlock()

	for _, pid := range pids {
		s.system.Root.Stop(pid)
	}
	return nil
}
