// Package server implements the TCP listener, the bounded accept loop,
// and the per-connection command/subscribe handlers that sit on top of
// store.Store, command and conn.
package server

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"miniredis/conn"
	"miniredis/internal/config"
	"miniredis/internal/logging"
	"miniredis/internal/metrics"
	"miniredis/store"
)

// Server owns the listening socket, the bounded-connection semaphore,
// and the shared store. One Server corresponds to one running
// miniredis instance.
type Server struct {
	cfg config.Config
	log logging.Logger

	store    *store.Store
	listener net.Listener
	sem      *semaphore.Weighted

	shutdownCh chan struct{}
	wg         sync.WaitGroup

	metricsEnabled bool
}

// New binds the listening socket and prepares the server. The store's
// reaper goroutine is started but no connections are accepted until
// Run is called.
func New(cfg config.Config, log logging.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen on %s", cfg.Addr)
	}

	return &Server{
		cfg:            cfg,
		log:            log,
		store:          store.New(cfg.PubSubBufferSize),
		listener:       ln,
		sem:            semaphore.NewWeighted(int64(cfg.MaxConnections)),
		shutdownCh:     make(chan struct{}),
		metricsEnabled: cfg.Metrics.Enabled,
	}, nil
}

// Addr returns the bound listen address, useful when cfg.Addr used
// port 0 for an ephemeral port (as tests do).
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Run accepts connections until ctx is cancelled, then drains every
// in-flight handler before returning. The returned error aggregates
// both a fatal accept failure (if any) and a drain timeout (if handlers
// are still running once the context's remaining deadline has passed,
// or after 30s when the context has no deadline left).
func (s *Server) Run(ctx context.Context) error {
	acceptErrCh := make(chan error, 1)
	go func() {
		acceptErrCh <- s.acceptLoop(ctx)
	}()

	var result *multierror.Error

	select {
	case err := <-acceptErrCh:
		if err != nil {
			result = multierror.Append(result, err)
		}
	case <-ctx.Done():
		s.log.Infof("shutdown requested")
	}

	if err := s.shutdown(ctx); err != nil {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}

// shutdown stops the accept loop, notifies every handler, and waits
// for them to drain.
func (s *Server) shutdown(ctx context.Context) error {
	close(s.shutdownCh)
	if err := s.listener.Close(); err != nil {
		s.log.Warnf("listener close: %v", err)
	}

	drained := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(drainTimeout(ctx)):
		s.store.Release()
		s.store.Wait()
		return errors.New("timed out waiting for connections to drain")
	}

	s.store.Release()
	s.store.Wait()
	return nil
}

func drainTimeout(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			return d
		}
	}
	return 30 * time.Second
}

// acceptLoop gates accept with the connection semaphore and applies
// the exponential accept-error backoff: 1s, 2s, 4s, ... doubling after
// each consecutive failure, giving up once the next sleep would exceed
// 64s.
func (s *Server) acceptLoop(ctx context.Context) error {
	backoff := time.Second

	for {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return nil // context cancelled; shutdown in progress.
		}

		netConn, err := s.listener.Accept()
		if err != nil {
			s.sem.Release(1)

			select {
			case <-ctx.Done():
				return nil
			default:
			}

			if backoff > 64*time.Second {
				return errors.Wrap(err, "accept")
			}
			s.log.Warnf("accept error, retrying in %s: %v", backoff, err)
			time.Sleep(backoff)
			backoff *= 2
			continue
		}

		backoff = time.Second
		s.wg.Add(1)
		metrics.ConnectionsActive.Inc()
		go s.serve(netConn)
	}
}

func (s *Server) serve(netConn net.Conn) {
	id := uuid.NewString()
	h := &connHandler{
		id:    id,
		conn:  conn.New(netConn),
		store: s.store,
		log:   s.log.With("conn_id", id, "remote_addr", netConn.RemoteAddr().String()),
		done:  s.shutdownCh,
	}

	defer func() {
		h.conn.Close()
		s.sem.Release(1)
		metrics.ConnectionsActive.Dec()
		s.wg.Done()
	}()

	h.run()
}
