// Package journal persists evaluation results as NDJSON files and,
// optionally, to a Redis stream for downstream consumers.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/you/flash-arb/internal/types"
)

// TradeRecord is an executed (or failed) settlement attempt.
type TradeRecord struct {
	types.Opportunity
	TxHash  string `json:"txHash,omitempty"`
	Status  string `json:"status"`
	GasUsed uint64 `json:"gasUsed,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SimulationRecord is a dry-run walk-through of an opportunity.
type SimulationRecord struct {
	types.Opportunity
	Steps []string `json:"steps"`
}

// Writer appends records to per-category NDJSON files. It is safe for
// concurrent use.
type Writer struct {
	mu    sync.Mutex
	files map[string]*os.File
	log   *zap.Logger
}

func NewWriter(log *zap.Logger) *Writer {
	return &Writer{files: make(map[string]*os.File), log: log}
}

func (w *Writer) Opportunity(path string, opp types.Opportunity) error {
	return w.append(path, opp)
}

func (w *Writer) Trade(path string, rec TradeRecord) error {
	return w.append(path, rec)
}

func (w *Writer) Simulation(path string, rec SimulationRecord) error {
	return w.append(path, rec)
}

func (w *Writer) append(path string, v any) error {
	if path == "" {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal journal record: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	f, ok := w.files[path]
	if !ok {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create journal dir: %w", err)
			}
		}
		f, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open journal %s: %w", path, err)
		}
		w.files[path] = f
	}

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append journal %s: %w", path, err)
	}
	return nil
}

func (w *Writer) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, f := range w.files {
		if err := f.Close(); err != nil {
			w.log.Warn("journal close failed", zap.String("path", path), zap.Error(err))
		}
	}
	w.files = make(map[string]*os.File)
}
