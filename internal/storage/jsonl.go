package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"liquidityPilot/internal/model"
)

// JsonlJournal appends execution records to a JSONL file.
type JsonlJournal struct {
	path string
	mu   sync.Mutex
}

func NewJsonlJournal(path string) *JsonlJournal {
	return &JsonlJournal{path: path}
}

// Record appends one execution record as a JSON line.
func (s *JsonlJournal) Record(_ context.Context, record model.ExecutionRecord) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal execution record: %w", err)
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create journal dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if _, err := writer.Write(line); err != nil {
		return fmt.Errorf("write execution record: %w", err)
	}
	if err := writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush journal: %w", err)
	}
	return nil
}

// ExecutionStatus returns the status of the latest record for txHash. A missing file means not found.
func (s *JsonlJournal) ExecutionStatus(_ context.Context, txHash string) (string, bool, error) {
	if txHash == "" {
		return "", false, fmt.Errorf("tx hash required")
	}
	hash := common.HexToHash(txHash)

	s.mu.Lock()
	records, err := ReadJsonl(s.path)
	s.mu.Unlock()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, err
	}

	for i := len(records) - 1; i >= 0; i-- {
		if result := records[i].Result; result != nil && result.TxHash == hash {
			return records[i].Status, true, nil
		}
	}
	return "", false, nil
}

// ReadJsonl decodes every record of a journal file.
func ReadJsonl(path string) ([]model.ExecutionRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}

	var records []model.ExecutionRecord
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var record model.ExecutionRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, fmt.Errorf("decode journal line %d: %w", len(records)+1, err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}
	return records, nil
}
