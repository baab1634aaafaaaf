package discovery

import (
	"context"
	"fmt"

	"github.com/example/dinein/pkg/config"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
	"go.uber.org/zap"
)

type ServiceDiscovery struct {
	client *clientv3.Client
	config *config.EtcdConfig
	logger *zap.Logger
}

type ServiceInstance struct {
	Name string
	Host string
	Port int
}

func (i *ServiceInstance) Addr() string {
	return fmt.Sprintf("%s:%d", i.Host, i.Port)
}

func NewServiceDiscovery(cfg *config.EtcdConfig, logger *zap.Logger) (*ServiceDiscovery, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	return &ServiceDiscovery{
		client: cli,
		config: cfg,
		logger: logger.Named("discovery"),
	}, nil
}

func (sd *ServiceDiscovery) key(instance *ServiceInstance) string {
	return fmt.Sprintf("%s/services/%s/%s", sd.config.Prefix, instance.Name, instance.Addr())
}

// Register announces the instance under a lease kept alive until ctx ends.
func (sd *ServiceDiscovery) Register(ctx context.Context, instance *ServiceInstance) error {
	lease, err := sd.client.Grant(ctx, sd.config.TTL)
	if err != nil {
		return fmt.Errorf("failed to create lease: %w", err)
	}

	_, err = sd.client.Put(ctx, sd.key(instance), instance.Addr(), clientv3.WithLease(lease.ID))
	if err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	ch, err := sd.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return fmt.Errorf("failed to keep alive: %w", err)
	}

	go func() {
		for range ch {
		}
		sd.logger.Info("Lease keep-alive stopped", zap.String("service", instance.Name))
	}()

	sd.logger.Info("Service registered", zap.String("service", instance.Name), zap.String("addr", instance.Addr()))
	return nil
}

// Discover lists the registered instances of serviceName.
func (sd *ServiceDiscovery) Discover(ctx context.Context, serviceName string) ([]string, error) {
	prefix := fmt.Sprintf("%s/services/%s/", sd.config.Prefix, serviceName)

	resp, err := sd.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to discover service: %w", err)
	}

	addrs := make([]string, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		addrs = append(addrs, string(kv.Value))
	}
	return addrs, nil
}

func (sd *ServiceDiscovery) Deregister(ctx context.Context, instance *ServiceInstance) error {
	_, err := sd.client.Delete(ctx, sd.key(instance))
	if err != nil {
		return fmt.Errorf("failed to deregister service: %w", err)
	}
	return nil
}

// RunElected campaigns for leadership of name and runs fn while this
// instance leads. fn's context is cancelled when leadership is lost. It
// returns when ctx is done.
func (sd *ServiceDiscovery) RunElected(ctx context.Context, name, id string, fn func(ctx context.Context) error) error {
	for {
		if err := sd.lead(ctx, name, id, fn); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		sd.logger.Warn("Leadership lost, campaigning again", zap.String("election", name))
	}
}

func (sd *ServiceDiscovery) lead(ctx context.Context, name, id string, fn func(ctx context.Context) error) error {
	session, err := concurrency.NewSession(sd.client, concurrency.WithTTL(int(sd.config.TTL)), concurrency.WithContext(ctx))
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to create etcd session: %w", err)
	}
	defer session.Close()

	election := concurrency.NewElection(session, fmt.Sprintf("%s/election/%s", sd.config.Prefix, name))
	if err := election.Campaign(ctx, id); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to campaign: %w", err)
	}
	sd.logger.Info("Elected leader", zap.String("election", name), zap.String("id", id))

	leadCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-session.Done():
			cancel()
		case <-leadCtx.Done():
		}
	}()

	runErr := fn(leadCtx)

	resignCtx, resignCancel := context.WithTimeout(context.Background(), sd.config.DialTimeout)
	defer resignCancel()
	if err := election.Resign(resignCtx); err != nil {
		sd.logger.Warn("Failed to resign", zap.String("election", name), zap.Error(err))
	}
	if runErr != nil && leadCtx.Err() == nil {
		return runErr
	}
	return nil
}

func (sd *ServiceDiscovery) Close() error {
	return sd.client.Close()
}
