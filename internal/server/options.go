package server

import (
	"errors"
	"time"

	"github.com/HaPhanBaoMinh/netobs/internal/topology"
)

type Option func(*Server) error

// WithDefaults sets the pair options used when a request does not override them.
func WithDefaults(opts topology.Options) Option {
	return func(s *Server) error {
		if opts.Range <= 0 {
			return errors.New("default metric range must be positive")
		}
		s.defaults = opts
		return nil
	}
}

// WithWriteTimeout bounds how long a handler may take to answer.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) error {
		if d <= 0 {
			return errors.New("write timeout must be positive")
		}
		s.srv.WriteTimeout = d
		return nil
	}
}
