package telemetry

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
)

// SlogAPI implements API using the log/slog package.
type SlogAPI struct {
	idcounter *uint64
	dumpDir   string
}

// NewSlogAPI creates a SlogAPI, long messages are written as files under dumpDir,
// an empty dumpDir logs them at debug level instead.
func NewSlogAPI(dumpDir string) SlogAPI {
	var idcounter uint64
	if dumpDir != "" {
		err := os.MkdirAll(dumpDir, 0777)
		if err != nil {
			slog.Warn("failed to create message dump directory", "dir", dumpDir, "err", err)
			dumpDir = ""
		}
	}
	return SlogAPI{idcounter: &idcounter, dumpDir: dumpDir}
}

func (SlogAPI) formatParams(out *[]any, params []any) {
	for i, p := range params {
		*out = append(
			*out,
			fmt.Sprintf("params.%d", i),
			p,
		)
	}
}

func (s SlogAPI) ReportBroken(id string, params ...any) {
	remainingPairs := []any{"id", id}
	s.formatParams(&remainingPairs, params)
	slog.Error("broken component", remainingPairs...)
}

func (s SlogAPI) ReportWarning(id string, params ...any) {
	remainingPairs := []any{"id", id}
	s.formatParams(&remainingPairs, params)
	slog.Warn("warning", remainingPairs...)
}

func (s SlogAPI) ReportDebug(message string, params ...any) {
	remainingPairs := []any{}
	s.formatParams(&remainingPairs, params)
	slog.Debug(message, remainingPairs...)
}

func (s SlogAPI) ReportCount(id string, count int64) {
	slog.Info("count", "id", id, "n", count)
}

func (s SlogAPI) StoreLongMessage(contents string) string {
	if s.idcounter == nil {
		var idcounter uint64
		s.idcounter = &idcounter
	}
	id := strconv.FormatUint(atomic.AddUint64(s.idcounter, 1), 10)

	if s.dumpDir == "" {
		slog.Debug("long message", "message_id", id, "contents", contents)
		return id
	}

	err := os.WriteFile(filepath.Join(s.dumpDir, id), []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to write long message", "message_id", id, "err", err)
	}
	return id
}
