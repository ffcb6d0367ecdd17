package netutil

import (
	"net"
	"time"
)

type keepAliveSetter interface {
	SetKeepAlive(bool) error
	SetKeepAlivePeriod(time.Duration) error
}

type keepAliveListener struct {
	net.Listener
	period time.Duration
}

// KeepAliveListener enables TCP keep-alive with the given period on every
// accepted connection that supports it. A zero period leaves the listener
// untouched and a negative one disables keep-alives.
func KeepAliveListener(l net.Listener, period time.Duration) net.Listener {
	if period == 0 {
		return l
	}

	return &keepAliveListener{Listener: l, period: period}
}

func (ln *keepAliveListener) Accept() (net.Conn, error) {
	conn, err := ln.Listener.Accept()
	if err != nil {
		return nil, err
	}

	kc, ok := conn.(keepAliveSetter)
	if !ok {
		return conn, nil
	}

	if ln.period < 0 {
		kc.SetKeepAlive(false)
		return conn, nil
	}

	kc.SetKeepAlive(true)
	kc.SetKeepAlivePeriod(ln.period)

	return conn, nil
}
