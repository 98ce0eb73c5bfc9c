package backend

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"

	"pkt.systems/x3270script/schema"
)

const fakeStatus = "U F U C(fake) I 2 24 80 0 0 0x0 -"

// serveFakeEmulator answers each command line with its text as data.
func serveFakeEmulator(t *testing.T, ln net.Listener) {
	t.Helper()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				scanner := bufio.NewScanner(conn)
				for scanner.Scan() {
					line := scanner.Text()
					if line == "Quit()" {
						return
					}
					if _, err := fmt.Fprintf(conn, "data: %s\n%s\nok\n", line, fakeStatus); err != nil {
						return
					}
				}
			}(conn)
		}
	}()
}

func listenFake(t *testing.T) (net.Listener, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	serveFakeEmulator(t, ln)
	return ln, ln.Addr().(*net.TCPAddr).Port
}

func TestSocketExchange(t *testing.T) {
	_, port := listenFake(t)
	s := NewSocket(SocketConfig{Port: port})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Close()

	reply, err := s.Exchange(ctx, "Query(Host)")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if !reply.OK || len(reply.Data) != 1 || reply.Data[0] != "Query(Host)" || reply.Status != fakeStatus {
		t.Fatalf("reply = %+v", reply)
	}

	if _, err := s.Exchange(ctx, "Quit()"); !errors.Is(err, schema.ErrEndOfStream) {
		t.Fatalf("expected end of stream after Quit, got %v", err)
	}
	if s.LastError() == "" {
		t.Fatalf("expected last error after end of stream")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestSocketRetriesUntilListening(t *testing.T) {
	reserved, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := reserved.Addr().(*net.TCPAddr).Port
	_ = reserved.Close()

	go func() {
		time.Sleep(150 * time.Millisecond)
		ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
		if err != nil {
			return
		}
		t.Cleanup(func() { _ = ln.Close() })
		serveFakeEmulator(t, ln)
	}()

	s := NewSocket(SocketConfig{Port: port, RetryInterval: 20 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Close()
	if _, err := s.Exchange(ctx, ""); err != nil {
		t.Fatalf("exchange: %v", err)
	}
}

func TestSocketStartTimesOut(t *testing.T) {
	reserved, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := reserved.Addr().(*net.TCPAddr).Port
	_ = reserved.Close()

	s := NewSocket(SocketConfig{Port: port, RetryInterval: 10 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	err = s.Start(ctx)
	if !errors.Is(err, schema.ErrConnectFailed) {
		t.Fatalf("expected connect failure, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("start took %s", elapsed)
	}
	if s.LastError() == "" {
		t.Fatalf("expected last error text")
	}
}

func TestSocketFromEnv(t *testing.T) {
	_, port := listenFake(t)
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{name: "missing", env: map[string]string{}, wantErr: true},
		{name: "non-numeric", env: map[string]string{"X3270PORT": "abc"}, wantErr: true},
		{name: "out of range", env: map[string]string{"X3270PORT": "70000"}, wantErr: true},
		{name: "valid", env: map[string]string{"X3270PORT": strconv.Itoa(port)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSocketFromEnv(SocketConfig{RetryInterval: 10 * time.Millisecond}, envconfig.MapLookuper(tc.env))
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			err := s.Start(ctx)
			defer s.Close()
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected start failure")
				}
				return
			}
			if err != nil {
				t.Fatalf("start: %v", err)
			}
		})
	}
}

func TestSocketFromProcessEnv(t *testing.T) {
	_, port := listenFake(t)
	t.Setenv("X3270PORT", strconv.Itoa(port))
	s := NewSocketFromEnv(SocketConfig{}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Close()
	reply, err := s.Exchange(ctx, "Enter()")
	if err != nil || !reply.OK {
		t.Fatalf("exchange = %+v, %v", reply, err)
	}
}
