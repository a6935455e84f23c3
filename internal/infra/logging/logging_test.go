//go:build !integration

package logging_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"ingestion-pipeline/internal/infra/logging"
)

func TestWithContextFields(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := logging.WithTraceID(context.Background(), "trace-1")
	ctx = logging.WithRecordID(ctx, "sku-1")
	ctx = logging.WithJobID(ctx, "job-1")

	logging.With(ctx, &base).Info().Msg("hello")

	out := buf.String()
	for _, want := range []string{`"trace_id":"trace-1"`, `"record_id":"sku-1"`, `"job_id":"job-1"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log line missing %s: %s", want, out)
		}
	}
}

func TestWithEmptyContext(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	logging.With(context.Background(), &base).Info().Msg("hello")

	out := buf.String()
	for _, field := range []string{"trace_id", "record_id", "job_id"} {
		if strings.Contains(out, field) {
			t.Errorf("unexpected %s on a bare context: %s", field, out)
		}
	}
}

func TestTraceDuration(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	done := logging.TraceDuration(&base, "Engine.Process")
	done()

	out := buf.String()
	if !strings.Contains(out, `"message":"start"`) || !strings.Contains(out, `"message":"finish"`) {
		t.Errorf("expected start and finish trace lines, got: %s", out)
	}
	if !strings.Contains(out, "Engine.Process") {
		t.Errorf("method name missing from trace lines: %s", out)
	}
}
