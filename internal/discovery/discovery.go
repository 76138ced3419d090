package discovery

import (
	"fmt"
	"sync"

	consulapi "github.com/hashicorp/consul/api"
	"go.uber.org/zap"
)

// Discovery resolves a service name to a base URL.
type Discovery interface {
	Lookup(service string) (string, error)
}

type staticDiscovery struct {
	m map[string]string
}

func (s *staticDiscovery) Lookup(service string) (string, error) {
	if v, ok := s.m[service]; ok && v != "" {
		return v, nil
	}
	return "", fmt.Errorf("service not found: %s", service)
}

type consulDiscovery struct {
	client *consulapi.Client
	mu     sync.RWMutex
	cache  map[string][]string
	log    *zap.SugaredLogger
}

func (c *consulDiscovery) Lookup(service string) (string, error) {
	c.mu.RLock()
	addrs, ok := c.cache[service]
	c.mu.RUnlock()
	if ok && len(addrs) > 0 {
		return addrs[0], nil
	}

	entries, _, err := c.client.Health().Service(service, "", true, nil)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("no healthy instances for %s", service)
	}
	urls := make([]string, 0, len(entries))
	for _, e := range entries {
		addr := e.Service.Address
		if addr == "" {
			addr = e.Node.Address
		}
		urls = append(urls, fmt.Sprintf("http://%s:%d", addr, e.Service.Port))
	}
	c.mu.Lock()
	c.cache[service] = urls
	c.mu.Unlock()
	c.log.Debugw("discovered service", "service", service, "instances", len(urls))
	return urls[0], nil
}

// New prefers Consul when consulAddr is set and falls back to the static
// map otherwise.
func New(consulAddr string, static map[string]string, log *zap.SugaredLogger) (Discovery, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if consulAddr != "" {
		cfg := consulapi.DefaultConfig()
		cfg.Address = consulAddr
		client, err := consulapi.NewClient(cfg)
		if err != nil {
			return nil, err
		}
		return &consulDiscovery{client: client, cache: map[string][]string{}, log: log}, nil
	}
	m := make(map[string]string, len(static))
	for k, v := range static {
		m[k] = v
	}
	return &staticDiscovery{m: m}, nil
}
