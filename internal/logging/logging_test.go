package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewWritesToFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "sidekick.log")
	logger, closeLog, err := New(path, zerolog.InfoLevel)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Info().Str("component", "test").Msg("hello")
	logger.Debug().Msg("filtered out")
	if err := closeLog(); err != nil {
		t.Fatalf("close log: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"hello"`) {
		t.Fatalf("log file = %q, want to contain hello", data)
	}
	if strings.Contains(string(data), "filtered out") {
		t.Fatalf("log file = %q, want debug line filtered", data)
	}
}

func TestNewEmptyPathIsDisabled(t *testing.T) {
	t.Parallel()

	logger, closeLog, err := New("", zerolog.InfoLevel)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Info().Msg("dropped")
	if err := closeLog(); err != nil {
		t.Fatalf("close log: %v", err)
	}
}
