package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kayz/weave/internal/promptgen"
)

// Trail writes one JSONL record per render into date-stamped files and
// prunes files older than the retention window.
type Trail struct {
	dir           string
	filePrefix    string
	retentionDays int

	mu sync.Mutex
}

// Record is the persisted shape of one render.
type Record struct {
	Timestamp       string   `json:"timestamp"`
	TraceID         string   `json:"trace_id"`
	TemplateID      string   `json:"template_id"`
	TemplateVersion int      `json:"template_version"`
	RequestDigest   string   `json:"request_digest"`
	MessageCount    int      `json:"message_count"`
	Roles           []string `json:"roles"`
	TokenEstimate   int      `json:"token_estimate"`
}

// NewTrail creates a trail rooted at dir. An empty prefix defaults to
// "render"; retentionDays <= 0 disables cleanup.
func NewTrail(dir, filePrefix string, retentionDays int) *Trail {
	prefix := strings.TrimSpace(filePrefix)
	if prefix == "" {
		prefix = "render"
	}
	return &Trail{dir: dir, filePrefix: prefix, retentionDays: retentionDays}
}

// Write appends a render record and runs retention cleanup. The digest
// covers the render context so identical requests hash identically.
func (t *Trail) Write(tpl *promptgen.Template, renderCtx any, msgs []promptgen.Message, tokenEstimate int) (Record, error) {
	now := time.Now()

	rec := Record{
		Timestamp:       now.Format(time.RFC3339),
		TraceID:         uuid.NewString(),
		TemplateID:      tpl.ID(),
		TemplateVersion: tpl.Version(),
		RequestDigest:   requestDigest(tpl, renderCtx),
		MessageCount:    len(msgs),
		Roles:           messageRoles(msgs),
		TokenEstimate:   tokenEstimate,
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("marshal audit record: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := os.MkdirAll(t.dir, 0755); err != nil {
		return Record{}, fmt.Errorf("create audit dir: %w", err)
	}
	fileName := fmt.Sprintf("%s-%s.jsonl", t.filePrefix, now.Format("2006-01-02"))
	if err := appendJSONL(filepath.Join(t.dir, fileName), line); err != nil {
		return Record{}, err
	}
	if err := t.cleanupWithNow(now); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Cleanup removes files older than the retention window.
func (t *Trail) Cleanup() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cleanupWithNow(time.Now())
}

func (t *Trail) cleanupWithNow(now time.Time) error {
	if t.retentionDays <= 0 {
		return nil
	}

	entries, err := os.ReadDir(t.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("list audit dir: %w", err)
	}

	cutoff := now.AddDate(0, 0, -t.retentionDays)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, t.filePrefix+"-") || !strings.HasSuffix(name, ".jsonl") {
			continue
		}

		filePath := filepath.Join(t.dir, name)
		fileDate, ok := parseFileDate(name, t.filePrefix)
		if ok {
			if fileDate.Before(startOfDay(cutoff)) {
				if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("remove old audit file %s: %w", filePath, err)
				}
			}
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("stat audit file %s: %w", filePath, err)
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove old audit file %s: %w", filePath, err)
			}
		}
	}

	return nil
}

func appendJSONL(filePath string, line []byte) error {
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write audit file: %w", err)
	}
	return nil
}

func parseFileDate(filename, prefix string) (time.Time, bool) {
	raw := strings.TrimSuffix(filename, ".jsonl")
	raw = strings.TrimPrefix(raw, prefix+"-")
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func requestDigest(tpl *promptgen.Template, renderCtx any) string {
	payload, _ := json.Marshal(struct {
		TemplateID      string `json:"template_id"`
		TemplateVersion int    `json:"template_version"`
		Context         any    `json:"context"`
	}{tpl.ID(), tpl.Version(), renderCtx})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func messageRoles(msgs []promptgen.Message) []string {
	roles := make([]string, 0, len(msgs))
	for _, m := range msgs {
		roles = append(roles, m.Role)
	}
	return roles
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
