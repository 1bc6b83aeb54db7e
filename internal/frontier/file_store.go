package frontier

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/webcorpus/harvester/internal/crawler"
)

// Journal file names inside the state directory.
const (
	pendingFile = "pending_urls"
	doneFile    = "done_urls"
	erroredFile = "errored_urls"
)

// FileStore is a transactional-file frontier. Discovered URLs append to the
// pending journal as "url|depth" lines; completions and failures append to
// the done and errored journals. Replay on open subtracts done and errored
// entries from pending, so a crash mid-run requeues whatever was reserved
// but never finished. The pending journal is compacted on Close.
type FileStore struct {
	mu       sync.Mutex
	dir      string
	maxDepth int
	logger   *zap.Logger

	pending    map[string]int
	inProgress map[string]int
	done       map[string]struct{}
	errored    map[string]struct{}

	pendingW *os.File
	doneW    *os.File
	erroredW *os.File
	closed   bool
}

// NewFileStore opens (or creates) the frontier journals under dir and
// replays them into memory.
func NewFileStore(dir string, maxDepth int, logger *zap.Logger) (*FileStore, error) {
	if maxDepth < 0 {
		return nil, fmt.Errorf("max depth must be >= 0, got %d", maxDepth)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create frontier dir %s: %w", dir, err)
	}

	s := &FileStore{
		dir:        dir,
		maxDepth:   maxDepth,
		logger:     logger,
		pending:    make(map[string]int),
		inProgress: make(map[string]int),
		done:       make(map[string]struct{}),
		errored:    make(map[string]struct{}),
	}
	if err := s.replay(); err != nil {
		return nil, err
	}
	if err := s.openWriters(); err != nil {
		return nil, err
	}

	logger.Info("frontier opened",
		zap.String("dir", dir),
		zap.Int("pending", len(s.pending)),
		zap.Int("done", len(s.done)),
		zap.Int("errored", len(s.errored)),
	)
	return s, nil
}

func (s *FileStore) replay() error {
	if err := readLines(filepath.Join(s.dir, doneFile), func(line string) {
		s.done[line] = struct{}{}
	}); err != nil {
		return err
	}
	if err := readLines(filepath.Join(s.dir, erroredFile), func(line string) {
		s.errored[line] = struct{}{}
	}); err != nil {
		return err
	}
	return readLines(filepath.Join(s.dir, pendingFile), func(line string) {
		url, depth := parsePendingLine(line)
		if _, ok := s.done[url]; ok {
			return
		}
		if _, ok := s.errored[url]; ok {
			return
		}
		// Keep the shallowest depth seen for a URL.
		if existing, ok := s.pending[url]; !ok || depth < existing {
			s.pending[url] = depth
		}
	})
}

func (s *FileStore) openWriters() error {
	var err error
	if s.pendingW, err = appendFile(filepath.Join(s.dir, pendingFile)); err != nil {
		return err
	}
	if s.doneW, err = appendFile(filepath.Join(s.dir, doneFile)); err != nil {
		return err
	}
	if s.erroredW, err = appendFile(filepath.Join(s.dir, erroredFile)); err != nil {
		return err
	}
	return nil
}

// Seed adds URLs at depth 0 if untracked.
func (s *FileStore) Seed(ctx context.Context, urls []string) error {
	for _, u := range urls {
		if _, err := s.EnqueueDiscovered(ctx, u, 0); err != nil {
			return err
		}
	}
	return nil
}

// EnqueueDiscovered adds url at depth unless it is beyond the depth bound or
// already tracked in any of the four sets.
func (s *FileStore) EnqueueDiscovered(_ context.Context, url string, depth int) (bool, error) {
	if depth > s.maxDepth {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tracked(url) {
		return false, nil
	}
	if err := writeLine(s.pendingW, fmt.Sprintf("%s|%d", url, depth)); err != nil {
		return false, fmt.Errorf("persist pending %s: %w", url, err)
	}
	s.pending[url] = depth
	return true, nil
}

// NextBatch reserves up to n pending URLs, shallowest depth first.
func (s *FileStore) NextBatch(_ context.Context, n int) ([]crawler.URLRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 || len(s.pending) == 0 {
		return nil, nil
	}

	records := make([]crawler.URLRecord, 0, len(s.pending))
	for url, depth := range s.pending {
		records = append(records, crawler.URLRecord{URL: url, Depth: depth, Status: crawler.URLStatusPending})
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Depth != records[j].Depth {
			return records[i].Depth < records[j].Depth
		}
		return records[i].URL < records[j].URL
	})
	if len(records) > n {
		records = records[:n]
	}

	for i := range records {
		records[i].Status = crawler.URLStatusInProgress
		s.inProgress[records[i].URL] = records[i].Depth
		delete(s.pending, records[i].URL)
	}
	// Reservations are not journaled: if the process dies here, replay
	// finds the URL still pending and requeues it.
	return records, nil
}

// Complete transitions an in-progress URL to done, persisted before return.
func (s *FileStore) Complete(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.inProgress[url]; !ok {
		return fmt.Errorf("complete %s: not in progress", url)
	}
	if err := writeLine(s.doneW, url); err != nil {
		return fmt.Errorf("persist done %s: %w", url, err)
	}
	delete(s.inProgress, url)
	s.done[url] = struct{}{}
	return nil
}

// Fail transitions an in-progress URL to errored, persisted before return.
func (s *FileStore) Fail(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.inProgress[url]; !ok {
		return fmt.Errorf("fail %s: not in progress", url)
	}
	if err := writeLine(s.erroredW, url); err != nil {
		return fmt.Errorf("persist errored %s: %w", url, err)
	}
	delete(s.inProgress, url)
	s.errored[url] = struct{}{}
	return nil
}

// Counts reports the size of each tracking set.
func (s *FileStore) Counts(_ context.Context) (crawler.Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return crawler.Counts{
		Pending:    len(s.pending),
		InProgress: len(s.inProgress),
		Done:       len(s.done),
		Errored:    len(s.errored),
	}, nil
}

// Close compacts the pending journal and closes the writers. In-progress
// entries are written back as pending so an interrupted run resumes them.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var lines []string
	for url, depth := range s.pending {
		lines = append(lines, fmt.Sprintf("%s|%d", url, depth))
	}
	for url, depth := range s.inProgress {
		lines = append(lines, fmt.Sprintf("%s|%d", url, depth))
	}
	sort.Strings(lines)

	if err := s.pendingW.Close(); err != nil {
		return fmt.Errorf("close pending journal: %w", err)
	}
	if err := rewriteFile(filepath.Join(s.dir, pendingFile), lines); err != nil {
		return err
	}
	if err := s.doneW.Close(); err != nil {
		return fmt.Errorf("close done journal: %w", err)
	}
	if err := s.erroredW.Close(); err != nil {
		return fmt.Errorf("close errored journal: %w", err)
	}
	return nil
}

func (s *FileStore) tracked(url string) bool {
	if _, ok := s.pending[url]; ok {
		return true
	}
	if _, ok := s.inProgress[url]; ok {
		return true
	}
	if _, ok := s.done[url]; ok {
		return true
	}
	_, ok := s.errored[url]
	return ok
}

func parsePendingLine(line string) (string, int) {
	idx := strings.LastIndex(line, "|")
	if idx < 0 {
		return line, 0
	}
	depth, err := strconv.Atoi(line[idx+1:])
	if err != nil {
		return line, 0
	}
	return line[:idx], depth
}

func readLines(path string, fn func(string)) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			fn(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", path, err)
	}
	return nil
}

func appendFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	return f, nil
}

func writeLine(f *os.File, line string) error {
	if _, err := f.WriteString(line + "\n"); err != nil {
		return err
	}
	return f.Sync()
}

func rewriteFile(path string, lines []string) error {
	tmp := path + ".tmp"
	content := ""
	if len(lines) > 0 {
		content = strings.Join(lines, "\n") + "\n"
	}
	if err := os.WriteFile(tmp, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
