package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"SleepySmurf/internal/contracts"
)

// StorageReader часть хранилища, нужная HTTP API (только чтение)
type StorageReader interface {
	GetUsers() ([]contracts.TelegramUser, error)
	GetTodayReminders(userID int64) ([]contracts.Reminder, error)
	GetDeletedReminders(userID int64, limit int) ([]contracts.DeletedReminder, error)
}

// HTTPHandler обрабатывает HTTP запросы операторского API
type HTTPHandler struct {
	storage StorageReader
}

// NewHTTPHandler создает новый HTTP обработчик
func NewHTTPHandler(storage StorageReader) *HTTPHandler {
	return &HTTPHandler{storage: storage}
}

// RegisterRoutes настраивает маршруты API
func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/v1/users", h.GetUsersHandler).Methods("GET")
	router.HandleFunc("/v1/users/{id}/reminders/today", h.GetTodayRemindersHandler).Methods("GET")
	router.HandleFunc("/v1/users/{id}/history", h.GetHistoryHandler).Methods("GET")
}

// GetUsersHandler обрабатывает запрос списка пользователей
func (h *HTTPHandler) GetUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := h.storage.GetUsers()
	if err != nil {
		log.Printf("[HTTP] Ошибка получения пользователей: %v", err)
		writeError(w, http.StatusInternalServerError, "Ошибка получения пользователей")
		return
	}

	writeJSON(w, map[string]interface{}{
		"users":       users,
		"total_count": len(users),
	})
}

// GetTodayRemindersHandler обрабатывает запрос напоминаний на сегодня
func (h *HTTPHandler) GetTodayRemindersHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}

	reminders, err := h.storage.GetTodayReminders(userID)
	if err != nil {
		log.Printf("[HTTP] Ошибка получения напоминаний пользователя %d: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "Ошибка получения напоминаний")
		return
	}

	writeJSON(w, map[string]interface{}{
		"user_id":   userID,
		"reminders": reminders,
		"count":     len(reminders),
	})
}

// GetHistoryHandler обрабатывает запрос истории удалений
func (h *HTTPHandler) GetHistoryHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}

	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	deleted, err := h.storage.GetDeletedReminders(userID, limit)
	if err != nil {
		log.Printf("[HTTP] Ошибка получения истории пользователя %d: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "Ошибка получения истории")
		return
	}

	writeJSON(w, map[string]interface{}{
		"user_id": userID,
		"deleted": deleted,
		"count":   len(deleted),
	})
}

// parseUserID извлекает ID пользователя из пути запроса
func parseUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	vars := mux.Vars(r)
	userID, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Некорректный ID пользователя")
		return 0, false
	}
	return userID, true
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{"error": message})
}
