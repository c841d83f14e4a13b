package connector

import (
	"context"
)

// sshDialer fills the per-host fields of a shared client Config.
type sshDialer struct {
	base Config
}

// NewDialer returns a Dialer that connects with base as the template for
// every host. Username, Address and Port in base are ignored.
func NewDialer(base Config) Dialer {
	return &sshDialer{base: base}
}

func (d *sshDialer) Dial(ctx context.Context, host Host) (Connection, error) {
	cfg := d.base
	cfg.KeyFiles = append([]string(nil), d.base.KeyFiles...)
	cfg.Username = host.User
	cfg.Address = host.Address
	cfg.Port = host.Port
	return NewConnection(ctx, cfg)
}

var _ Dialer = (*sshDialer)(nil)
