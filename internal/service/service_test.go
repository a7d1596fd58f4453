package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"doubtiq-go/internal/model"
	"doubtiq-go/pkg/hash"
	"doubtiq-go/pkg/llm"
	"doubtiq-go/pkg/mail"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	hash.Cost = bcrypt.MinCost
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Chat{}, &model.Message{}, &model.Doubt{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

// fakeLLM records prompts and answers with canned replies.
type fakeLLM struct {
	mu          sync.Mutex
	reply       string
	err         error
	prompts     []string
	visionCalls []string
	chunks      []string
}

func (f *fakeLLM) Complete(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeLLM) CompleteVision(_ context.Context, prompt, imageURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	f.visionCalls = append(f.visionCalls, imageURL)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeLLM) StreamChat(_ context.Context, prompt string, writer llm.MessageWriter) error {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	chunks, err := f.chunks, f.err
	f.mu.Unlock()
	if err != nil {
		return err
	}
	for _, c := range chunks {
		if err := writer.WriteMessage(1, []byte(c)); err != nil {
			return err
		}
	}
	return nil
}

// fakeMailer captures sent messages.
type fakeMailer struct {
	mu         sync.Mutex
	configured bool
	err        error
	sent       []mail.Message
}

func (f *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMailer) Configured() bool { return f.configured }

func (f *fakeMailer) last() mail.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) ExtractText(_ context.Context, r io.Reader, _ string) (string, error) {
	_, _ = io.Copy(io.Discard, r)
	return f.text, f.err
}

type fakeArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{objects: map[string][]byte{}}
}

func (f *fakeArchive) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if f.err != nil {
		return f.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.objects[key] = data
	f.mu.Unlock()
	return nil
}

func (f *fakeArchive) PresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://files.example.com/" + key, nil
}

type fakeIndex struct {
	mu      sync.Mutex
	indexed []uint
	err     error
}

func (f *fakeIndex) Index(_ context.Context, doubt *model.Doubt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.indexed = append(f.indexed, doubt.ID)
	return nil
}

func (f *fakeIndex) Search(_ context.Context, userID uint, query string, _ int) ([]model.DoubtHit, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []model.DoubtHit{{ID: 1, Question: query, Answer: fmt.Sprintf("for user %d", userID)}}, nil
}

// clock is a settable time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Now()}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

var errBoom = errors.New("boom")

func pdfBytes() []byte {
	return []byte("%PDF-1.4\n" + strings.Repeat("x", 32))
}

// pngBytes is the PNG signature followed by padding; enough for sniffing.
func pngBytes() []byte {
	return append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
}
