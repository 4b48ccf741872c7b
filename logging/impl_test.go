package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"
)

func TestConsoleOutputFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewBlankLogger("monitor")
	logger.AddAppender(NewWriterAppender(&buf))

	logger.Infow("cycle complete", "seats", 3)
	line := strings.TrimSuffix(buf.String(), "\n")
	parts := strings.Split(line, "\t")
	test.That(t, parts, test.ShouldHaveLength, 6)
	test.That(t, parts[1], test.ShouldEqual, "INFO")
	test.That(t, parts[2], test.ShouldEqual, "monitor")
	test.That(t, parts[3], test.ShouldStartWith, "logging/impl_test.go:")
	test.That(t, parts[4], test.ShouldEqual, "cycle complete")

	fields := map[string]interface{}{}
	test.That(t, json.Unmarshal([]byte(parts[5]), &fields), test.ShouldBeNil)
	test.That(t, fields["seats"], test.ShouldEqual, 3.0)
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewBlankLogger("")
	logger.AddAppender(NewWriterAppender(&buf))
	logger.SetLevel(WARN)

	logger.Debug("dropped")
	logger.Info("dropped")
	test.That(t, buf.Len(), test.ShouldEqual, 0)

	logger.Warn("kept")
	test.That(t, buf.String(), test.ShouldContainSubstring, "kept")
}

func TestSubloggerAndFields(t *testing.T) {
	logger, observed := NewObservedTestLogger(t)
	sub := logger.Sublogger("session").WithFields("session_id", "abc")
	sub.Infow("frame read", "cycle", 1)

	entries := observed.All()
	test.That(t, entries, test.ShouldHaveLength, 1)
	test.That(t, entries[0].LoggerName, test.ShouldEqual, "session")
	ctx := entries[0].ContextMap()
	test.That(t, ctx["session_id"], test.ShouldEqual, "abc")
	test.That(t, ctx["cycle"], test.ShouldEqual, int64(1))

	named := NewBlankLogger("web").Sublogger("ws")
	test.That(t, named.(*impl).name, test.ShouldEqual, "web.ws")
}

func TestLevelFromString(t *testing.T) {
	for str, expected := range map[string]Level{"debug": DEBUG, "INFO": INFO, "warn": WARN, "Error": ERROR} {
		level, err := LevelFromString(str)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, level, test.ShouldEqual, expected)
	}
	_, err := LevelFromString("verbose")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestFileAppender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitor.log")
	logger, err := NewLoggerFromConfig("file", Config{Level: "debug", File: path, MaxSizeMB: 1})
	test.That(t, err, test.ShouldBeNil)
	logger.Debugw("written to disk", "key", "value")
	test.That(t, logger.Sync(), test.ShouldBeNil)

	contents, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(contents), test.ShouldContainSubstring, `"msg":"written to disk"`)
	test.That(t, string(contents), test.ShouldContainSubstring, `"key":"value"`)

	_, err = NewLoggerFromConfig("file", Config{Level: "loud"})
	test.That(t, err, test.ShouldNotBeNil)
}
