package services

import (
	"context"
	"net/http"
	"path"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/YouXam/ucloud-bot/internal/database"
	"github.com/YouXam/ucloud-bot/internal/dto"
	"github.com/YouXam/ucloud-bot/internal/models"
	"github.com/YouXam/ucloud-bot/internal/upstream"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: is its own database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	require.NoError(t, database.AutoMigrate(db))
	return db
}

var errUnauthorized = &upstream.StatusError{Endpoint: "http://mirror", StatusCode: http.StatusUnauthorized, Body: "bad credentials"}

var errUnavailable = &upstream.StatusError{Endpoint: "http://mirror", StatusCode: http.StatusBadGateway, Body: "down"}

type sentMessage struct {
	ChatID   int64
	Text     string
	ReplyTo  int
	Keyboard models.Keyboard
}

type editedMessage struct {
	ChatID    int64
	MessageID int
	Text      string
	Keyboard  models.Keyboard
}

type answer struct {
	CallbackID string
	Text       string
	Alert      bool
}

// fakeMessenger records every chat call.
type fakeMessenger struct {
	mu        sync.Mutex
	nextID    int
	sent      []sentMessage
	edits     []editedMessage
	keyboards []editedMessage
	answers   []answer
	photos    [][]string
	sendErr   error
	fileErr   error
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{nextID: 500}
}

func (f *fakeMessenger) SendMessage(_ context.Context, chatID int64, text string, replyTo int, kb models.Keyboard) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.nextID++
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Text: text, ReplyTo: replyTo, Keyboard: kb.Clone()})
	return f.nextID, nil
}

func (f *fakeMessenger) EditMessage(_ context.Context, chatID int64, messageID int, text string, kb models.Keyboard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, editedMessage{ChatID: chatID, MessageID: messageID, Text: text, Keyboard: kb.Clone()})
	return nil
}

func (f *fakeMessenger) EditKeyboard(_ context.Context, chatID int64, messageID int, kb models.Keyboard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keyboards = append(f.keyboards, editedMessage{ChatID: chatID, MessageID: messageID, Keyboard: kb.Clone()})
	return nil
}

func (f *fakeMessenger) AnswerCallback(_ context.Context, callbackID, text string, alert bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, answer{CallbackID: callbackID, Text: text, Alert: alert})
	return nil
}

func (f *fakeMessenger) SendPhotos(_ context.Context, _ int64, urls []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(urls) > 0 {
		f.photos = append(f.photos, append([]string(nil), urls...))
	}
	return nil
}

func (f *fakeMessenger) FileURL(_ context.Context, fileID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fileErr != nil {
		return "", f.fileErr
	}
	return "https://files.example/" + fileID, nil
}

func (f *fakeMessenger) Sent() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func (f *fakeMessenger) Edits() []editedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]editedMessage(nil), f.edits...)
}

func (f *fakeMessenger) LastEdit() editedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.edits) == 0 {
		return editedMessage{}
	}
	return f.edits[len(f.edits)-1]
}

func (f *fakeMessenger) Keyboards() []editedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]editedMessage(nil), f.keyboards...)
}

func (f *fakeMessenger) Answers() []answer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]answer(nil), f.answers...)
}

func (f *fakeMessenger) Photos() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.photos...)
}

// fakeBackend serves canned data per username. Uploads block on uploadGate
// when it is set.
type fakeBackend struct {
	mu            sync.Mutex
	undone        map[string]*dto.UndoneList
	undoneErr     map[string]error
	details       map[string]*dto.Detail
	detailErr     error
	items         map[string]*dto.UndoneItem
	homeworkCalls map[string]int
	uploadGate    chan struct{}
	uploadErr     error
	uploads       []dto.UploadRequest
	submitErr     error
	submits       []dto.SubmitRequest
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		undone:        map[string]*dto.UndoneList{},
		undoneErr:     map[string]error{},
		details:       map[string]*dto.Detail{},
		items:         map[string]*dto.UndoneItem{},
		homeworkCalls: map[string]int{},
	}
}

func (f *fakeBackend) UndoneList(_ context.Context, cred upstream.Credentials) (*dto.UndoneList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.undoneErr[cred.Username]; err != nil {
		return nil, err
	}
	if list, ok := f.undone[cred.Username]; ok {
		return list, nil
	}
	return &dto.UndoneList{}, nil
}

func (f *fakeBackend) Homework(_ context.Context, _ upstream.Credentials, id string) (*dto.Detail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.homeworkCalls[id]++
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	if d, ok := f.details[id]; ok {
		return d, nil
	}
	return &dto.Detail{
		ID:                id,
		AssignmentTitle:   "Lab " + id,
		AssignmentEndTime: "2024-05-02 23:59:00",
		CourseInfo:        &dto.CourseInfo{ID: 1, Name: "Networks", Teachers: "Li"},
	}, nil
}

func (f *fakeBackend) CachedItem(_ context.Context, _ upstream.Credentials, id string) (*dto.UndoneItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if item, ok := f.items[id]; ok {
		return item, nil
	}
	return nil, &upstream.StatusError{Endpoint: "http://mirror", StatusCode: http.StatusNotFound}
}

func (f *fakeBackend) Upload(_ context.Context, _ upstream.Credentials, req dto.UploadRequest) (*dto.UploadResult, error) {
	f.mu.Lock()
	f.uploads = append(f.uploads, req)
	gate := f.uploadGate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return &dto.UploadResult{
		ResourceID: "res-" + path.Base(req.URL),
		PreviewURL: "https://preview.example/" + path.Base(req.URL),
	}, nil
}

func (f *fakeBackend) Submit(_ context.Context, _ upstream.Credentials, req dto.SubmitRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submits = append(f.submits, req)
	return nil
}

func (f *fakeBackend) Submits() []dto.SubmitRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dto.SubmitRequest(nil), f.submits...)
}

func (f *fakeBackend) Uploads() []dto.UploadRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dto.UploadRequest(nil), f.uploads...)
}

func (f *fakeBackend) HomeworkCalls(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.homeworkCalls[id]
}
