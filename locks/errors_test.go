package locks

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
)

func TestWrapConnError(t *testing.T) {
	plain := errors.New("syntax error")

	tests := []struct {
		name     string
		err      error
		wantConn bool
	}{
		{name: "nil", err: nil},
		{name: "plain error", err: plain},
		{name: "bad conn", err: driver.ErrBadConn, wantConn: true},
		{name: "eof", err: io.EOF, wantConn: true},
		{name: "wrapped eof", err: fmt.Errorf("read: %w", io.ErrUnexpectedEOF), wantConn: true},
		{name: "store closed", err: ErrStoreClosed, wantConn: true},
		{name: "dial error", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, wantConn: true},
		{name: "deadline", err: context.DeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WrapConnError(tt.err)
			if IsConnectionLost(got) != tt.wantConn {
				t.Errorf("IsConnectionLost(%v) = %v, want %v", got, !tt.wantConn, tt.wantConn)
			}
			if !tt.wantConn && got != tt.err {
				t.Errorf("expected error to pass through unchanged, got %v", got)
			}
			if tt.wantConn && !errors.Is(got, tt.err) {
				t.Errorf("expected cause %v to be preserved", tt.err)
			}
		})
	}
}

func TestConnectionErrorWithCode(t *testing.T) {
	err := fmt.Errorf("acquire: %w", &ConnectionError{Code: 14, Err: errors.New("unable to open database file")})
	if IsConnectionLost(err) {
		t.Error("a connection error with a qualifying code is not a lost connection")
	}

	wrapped := WrapConnError(err)
	if wrapped != err {
		t.Error("existing connection errors must not be wrapped twice")
	}
}
