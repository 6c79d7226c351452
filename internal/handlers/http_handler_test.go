package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SleepySmurf/internal/contracts"
)

// fakeStorageReader хранилище-заглушка для тестов HTTP API
type fakeStorageReader struct {
	users      []contracts.TelegramUser
	reminders  map[int64][]contracts.Reminder
	deleted    map[int64][]contracts.DeletedReminder
	failAll    bool
	lastLimit  int
	lastUserID int64
}

func (f *fakeStorageReader) GetUsers() ([]contracts.TelegramUser, error) {
	if f.failAll {
		return nil, fmt.Errorf("база недоступна")
	}
	return f.users, nil
}

func (f *fakeStorageReader) GetTodayReminders(userID int64) ([]contracts.Reminder, error) {
	if f.failAll {
		return nil, fmt.Errorf("база недоступна")
	}
	f.lastUserID = userID
	return f.reminders[userID], nil
}

func (f *fakeStorageReader) GetDeletedReminders(userID int64, limit int) ([]contracts.DeletedReminder, error) {
	if f.failAll {
		return nil, fmt.Errorf("база недоступна")
	}
	f.lastUserID = userID
	f.lastLimit = limit
	return f.deleted[userID], nil
}

func newTestRouter(storage *fakeStorageReader) *mux.Router {
	router := mux.NewRouter()
	NewHTTPHandler(storage).RegisterRoutes(router)
	return router
}

func doRequest(t *testing.T, router *mux.Router, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var body map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestGetUsersHandler(t *testing.T) {
	storage := &fakeStorageReader{
		users: []contracts.TelegramUser{
			{TelegramID: 100, Username: "ivan", FirstName: "Иван", RegisteredAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
			{TelegramID: 200, Username: "olga", FirstName: "Ольга", RegisteredAt: time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)},
		},
	}

	rec, body := doRequest(t, newTestRouter(storage), "/v1/users")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, float64(2), body["total_count"])
	assert.Len(t, body["users"], 2)
}

func TestGetTodayRemindersHandler(t *testing.T) {
	storage := &fakeStorageReader{
		reminders: map[int64][]contracts.Reminder{
			100: {
				{ID: 1, UserID: 100, Text: "сдать отчет", Priority: 5},
				{ID: 2, UserID: 100, Text: "полить цветы", Priority: 1},
			},
		},
	}

	rec, body := doRequest(t, newTestRouter(storage), "/v1/users/100/reminders/today")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(100), body["user_id"])
	assert.Equal(t, float64(2), body["count"])
	assert.Equal(t, int64(100), storage.lastUserID)
}

func TestGetTodayRemindersHandlerEmptyList(t *testing.T) {
	storage := &fakeStorageReader{}

	rec, body := doRequest(t, newTestRouter(storage), "/v1/users/100/reminders/today")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), body["count"])
}

func TestGetHistoryHandlerLimit(t *testing.T) {
	storage := &fakeStorageReader{
		deleted: map[int64][]contracts.DeletedReminder{
			100: {{OriginalID: 7, UserID: 100, Text: "старое", Reason: contracts.ReasonExpired}},
		},
	}
	router := newTestRouter(storage)

	rec, body := doRequest(t, router, "/v1/users/100/history")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, storage.lastLimit, "лимит по умолчанию")
	assert.Equal(t, float64(1), body["count"])

	doRequest(t, router, "/v1/users/100/history?limit=3")
	assert.Equal(t, 3, storage.lastLimit)

	// Мусорный лимит не ломает запрос, действует значение по умолчанию
	rec, _ = doRequest(t, router, "/v1/users/100/history?limit=мало")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, storage.lastLimit)
}

func TestBadUserIDReturns400(t *testing.T) {
	router := newTestRouter(&fakeStorageReader{})

	rec, body := doRequest(t, router, "/v1/users/abc/reminders/today")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "ID")

	rec, _ = doRequest(t, router, "/v1/users/abc/history")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStorageFailureReturns500(t *testing.T) {
	router := newTestRouter(&fakeStorageReader{failAll: true})

	for _, path := range []string{
		"/v1/users",
		"/v1/users/100/reminders/today",
		"/v1/users/100/history",
	} {
		rec, body := doRequest(t, router, path)
		assert.Equal(t, http.StatusInternalServerError, rec.Code, path)
		assert.NotEmpty(t, body["error"], path)
	}
}
