package main

import (
	"context"
	"errors"
	"testing"

	"github.com/masahif/sqlitecrawler/internal/config"
)

func TestExitCodeSuccess(t *testing.T) {
	if got := exitCode(context.Background(), nil); got != 0 {
		t.Errorf("exitCode(nil) = %d, want 0", got)
	}
}

func TestExitCodeUsageError(t *testing.T) {
	if got := exitCode(context.Background(), config.ErrMissingCustomUA); got != 2 {
		t.Errorf("exitCode(ErrMissingCustomUA) = %d, want 2", got)
	}
}

func TestExitCodeRuntimeError(t *testing.T) {
	if got := exitCode(context.Background(), errors.New("open storage: disk full")); got != 1 {
		t.Errorf("exitCode(runtime error) = %d, want 1", got)
	}
}

func TestExitCodeInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := exitCode(ctx, context.Canceled); got != 130 {
		t.Errorf("exitCode(context.Canceled) = %d, want 130", got)
	}
	// A wrapped cancellation surfaced through ctx.Err(), even if the
	// controller returned a different error, still counts as interrupted.
	if got := exitCode(ctx, errors.New("lease frontier: context canceled")); got != 130 {
		t.Errorf("exitCode(ctx cancelled, unrelated error) = %d, want 130", got)
	}
}
