package promise

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDeferred_ResolveOnce(t *testing.T) {
	d := NewDeferred[bool]()

	if _, ok, _ := d.Poll(); ok {
		t.Fatal("Expected pending deferred")
	}

	d.Resolve(true)
	d.Resolve(false)
	d.Reject(errors.New("late"))

	v, ok, err := d.Poll()
	if !ok || err != nil || !v {
		t.Errorf("Expected (true, true, nil), got (%v, %v, %v)", v, ok, err)
	}
}

func TestDeferred_Reject(t *testing.T) {
	d := NewDeferred[int]()
	wantErr := errors.New("payout query failed")

	go func() {
		time.Sleep(10 * time.Millisecond)
		d.Reject(wantErr)
	}()

	_, err := d.Wait(context.Background())
	if !errors.Is(err, wantErr) {
		t.Errorf("Expected %v, got: %v", wantErr, err)
	}
}

func TestDeferred_WaitContextCancelled(t *testing.T) {
	d := NewDeferred[string]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := d.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got: %v", err)
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		status   Status
		expected string
	}{
		{NotReady, "not_ready"},
		{Successful, "successful"},
		{Failed, "failed"},
		{Status(9), "status(9)"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.expected {
			t.Errorf("Status(%d).String() = %q, expected %q", int(tt.status), got, tt.expected)
		}
	}
}
