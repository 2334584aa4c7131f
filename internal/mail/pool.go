package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/smtp"
	"sync"
	"time"
)

// Connections older than this are re-dialed instead of reused.
const maxConnectionAge = 5 * time.Minute

// Config holds the SMTP endpoint and sender identity.
type Config struct {
	Host     string
	Port     string
	From     string
	Password string
	PoolSize int
}

type pooledConn struct {
	client    *smtp.Client
	createdAt time.Time
}

// Pool keeps a small set of authenticated SMTP connections warm so each
// sweep does not pay the dial+TLS+auth handshake per email. When the pool
// runs dry a direct connection is dialed instead of blocking.
type Pool struct {
	cfg       Config
	log       *slog.Logger
	conns     chan *pooledConn
	closeOnce sync.Once
}

// NewPool dials the initial set of connections. A dial failure here is
// fatal so misconfiguration surfaces at startup, not mid-sweep.
func NewPool(ctx context.Context, cfg Config, log *slog.Logger) (*Pool, error) {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 1
	}
	p := &Pool{
		cfg:   cfg,
		log:   log,
		conns: make(chan *pooledConn, cfg.PoolSize),
	}

	for i := 0; i < cfg.PoolSize; i++ {
		client, err := p.dial(ctx)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("smtp pool init: %w", err)
		}
		p.conns <- &pooledConn{client: client, createdAt: time.Now()}
	}

	log.Info("SMTP pool initialized", "size", cfg.PoolSize, "host", cfg.Host)
	return p, nil
}

func (p *Pool) dial(ctx context.Context) (*smtp.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client, err := smtp.Dial(p.cfg.Host + ":" + p.cfg.Port)
	if err != nil {
		return nil, err
	}

	if err := client.StartTLS(&tls.Config{ServerName: p.cfg.Host}); err != nil {
		client.Close()
		return nil, err
	}

	auth := smtp.PlainAuth("", p.cfg.From, p.cfg.Password, p.cfg.Host)
	if err := client.Auth(auth); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}

// get returns a live connection, discarding aged or dead pooled ones and
// falling back to a direct dial when the pool is empty.
func (p *Pool) get(ctx context.Context) (*smtp.Client, error) {
	for {
		select {
		case pc := <-p.conns:
			if pc == nil {
				return nil, fmt.Errorf("smtp pool closed")
			}
			if time.Since(pc.createdAt) > maxConnectionAge {
				p.log.Debug("discarding aged SMTP connection", "age", time.Since(pc.createdAt))
				pc.client.Close()
				continue
			}
			if err := pc.client.Noop(); err != nil {
				p.log.Debug("discarding dead SMTP connection", "error", err)
				pc.client.Close()
				continue
			}
			return pc.client, nil
		default:
			return p.dial(ctx)
		}
	}
}

// put returns a connection to the pool. Unhealthy connections are closed;
// so are healthy ones when the pool is already full.
func (p *Pool) put(client *smtp.Client, healthy bool) {
	if client == nil {
		return
	}
	if !healthy {
		client.Close()
		return
	}
	select {
	case p.conns <- &pooledConn{client: client, createdAt: time.Now()}:
	default:
		client.Close()
	}
}

// Close drains and closes every pooled connection.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.conns)
		for pc := range p.conns {
			if pc != nil && pc.client != nil {
				pc.client.Close()
			}
		}
		p.log.Info("SMTP pool closed")
	})
}
