package progress_test

import (
	"bytes"
	"strings"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/geopub/colltask/progress"
)

func TestLive(t *testing.T) {
	var buf bytes.Buffer
	l := progress.NewLive(&buf, "Downloading files")

	l.Start(4)
	for i := 0; i < 4; i++ {
		l.Step()
	}
	l.Finish()

	out := buf.String()
	if !strings.Contains(out, "\rDownloading files: 0/4 (0%)") {
		t.Fatalf("missing initial frame in %q", out)
	}
	if !strings.Contains(out, "\rDownloading files: 2/4 (50%)") {
		t.Fatalf("missing midpoint frame in %q", out)
	}
	if !strings.Contains(out, "\rDownloading files: 4/4 (100%)") {
		t.Fatalf("missing final frame in %q", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Fatalf("Finish must terminate the line, got %q", out)
	}
}

func TestLog(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	l := progress.NewLog("processing")
	l.Start(40)
	for i := 0; i < 40; i++ {
		l.Step()
	}
	l.Finish()

	var progressLines, startLines, completeLines int
	for _, entry := range hook.AllEntries() {
		switch {
		case strings.HasPrefix(entry.Message, "Starting processing"):
			startLines++
		case strings.HasPrefix(entry.Message, "Progress:"):
			progressLines++
		case strings.HasPrefix(entry.Message, "Completed processing"):
			completeLines++
		}
	}

	if startLines != 1 || completeLines != 1 {
		t.Fatalf("expected one start and one completion line, got %d and %d", startLines, completeLines)
	}
	// 40 items at 10% intervals is one line per 4 items
	if progressLines != 10 {
		t.Fatalf("expected 10 progress lines, got %d", progressLines)
	}
}

func TestLogSmallBatch(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	l := progress.NewLog("processing")
	l.Start(1)
	l.Step()
	l.Finish()

	found := false
	for _, entry := range hook.AllEntries() {
		if strings.Contains(entry.Message, "Progress: 1/1 items (100%)") {
			found = true
		}
	}
	if !found {
		t.Fatal("final item must always log progress")
	}
}

func TestNop(t *testing.T) {
	// must be safe to use without any setup
	var r progress.Reporter = progress.Nop{}
	r.Start(3)
	r.Step()
	r.Finish()
}
