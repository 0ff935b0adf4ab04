package core

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestDialerDialConnects(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err == nil {
			c.Close()
		}
	}()

	d := NewDialer(time.Second, time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	conn, err := d.Dial(ctx, ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.Close()
}

func TestDialerDialUnreachable(t *testing.T) {
	d := NewDialer(50*time.Millisecond, 0)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// Port 1 on loopback refuses immediately; any other failure mode still
	// proves Dial surfaces the error rather than hanging.
	if _, err := d.Dial(ctx, "127.0.0.1:1"); err == nil {
		t.Fatalf("expected dial failure against an unreachable port")
	}
}
