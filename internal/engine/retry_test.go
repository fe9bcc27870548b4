package engine

import (
	"context"
	"errors"
	"net"
	"testing"
)

func TestConnectRetrySucceedsFirstTry(t *testing.T) {
	calls := 0
	got, err := RetryDo(context.Background(), ConnectRetry, func() (string, error) {
		calls++
		return "pool", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "pool" || calls != 1 {
		t.Errorf("got %q after %d calls", got, calls)
	}
}

func TestConnectRetryRecoversFromDialError(t *testing.T) {
	calls := 0
	got, err := RetryDo(context.Background(), ConnectRetry, func() (int, error) {
		calls++
		if calls == 1 {
			return 0, &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 || calls != 2 {
		t.Errorf("got %d after %d calls, want 42 after 2", got, calls)
	}
}

func TestConnectRetryGivesUpOnPermanentError(t *testing.T) {
	calls := 0
	_, err := RetryDo(context.Background(), ConnectRetry, func() (int, error) {
		calls++
		return 0, errors.New("password authentication failed")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("permanent errors must not be retried, got %d calls", calls)
	}
}

func TestConnectRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RetryDo(ctx, ConnectRetry, func() (int, error) {
		return 0, &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	})
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
