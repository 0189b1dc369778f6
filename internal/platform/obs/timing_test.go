package obs

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestTimeLogsRunIDAndError(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer slog.SetDefault(prev)

	ctx := WithRunID(context.Background(), "run-1")

	func() (err error) {
		defer Time(ctx, "sim.step")(&err)
		return errors.New("boom")
	}()

	out := buf.String()
	for _, want := range []string{"op=sim.step", "run_id=run-1", "err=boom", "level=WARN"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}

	buf.Reset()
	func() (err error) {
		defer Time(ctx, "sim.close")(&err)
		return nil
	}()
	if !strings.Contains(buf.String(), "level=DEBUG") {
		t.Errorf("successful op should log at debug, got %q", buf.String())
	}
}
