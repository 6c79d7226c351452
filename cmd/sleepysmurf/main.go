package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"

	"SleepySmurf/internal/config"
	"SleepySmurf/internal/contracts"
	"SleepySmurf/internal/db"
	"SleepySmurf/internal/handlers"
	"SleepySmurf/internal/services"
	"SleepySmurf/internal/telegram"
)

// appStorage объединяет контракт хранилища и методы чтения для HTTP API
type appStorage interface {
	contracts.Storage
	GetUsers() ([]contracts.TelegramUser, error)
}

func main() {
	// Загружаем конфигурацию
	cfg := config.Load()
	clock := clockwork.NewRealClock()

	// Подключаемся к хранилищу
	var storage appStorage
	switch cfg.Database.Driver {
	case "postgres":
		base := &db.PostgresBase{}
		if err := base.Connect(context.Background(), cfg.Database.DSN); err != nil {
			log.Fatalf("Ошибка подключения к Postgres: %v", err)
		}
		if err := base.Migrate("internal/migrations"); err != nil {
			log.Fatalf("Ошибка применения миграций: %v", err)
		}
		storage = services.NewPostgresStorage(base.DB, cfg.Limits, cfg.Scheduler.RetentionDays, clock)
		log.Println("Хранилище Postgres инициализировано")
	case "sqlite":
		s, err := services.NewSQLiteStorage(cfg.Database.SQLitePath, cfg.Limits, cfg.Scheduler.RetentionDays, clock)
		if err != nil {
			log.Fatalf("Ошибка открытия SQLite: %v", err)
		}
		storage = s
		log.Printf("Хранилище SQLite инициализировано: %s", cfg.Database.SQLitePath)
	default:
		log.Fatalf("Неизвестный драйвер хранилища: %s", cfg.Database.Driver)
	}

	// Инициализируем сервис диалогов
	conversations := services.NewConversationService(cfg.Limits, clock)

	// Триггеры ежедневных задач
	dispatchTrigger, err := services.NewDailyTrigger(cfg.Scheduler.DispatchTime)
	if err != nil {
		log.Fatalf("Ошибка разбора DISPATCH_TIME: %v", err)
	}
	sweepTrigger, err := services.NewDailyTrigger(cfg.Scheduler.SweepTime)
	if err != nil {
		log.Fatalf("Ошибка разбора SWEEP_TIME: %v", err)
	}

	// Чистка работает независимо от наличия бота
	sweepService := services.NewSweepService(storage, sweepTrigger, clock)
	if err := sweepService.Start(); err != nil {
		log.Fatalf("Ошибка запуска чистки: %v", err)
	}

	// Переменные для graceful shutdown
	var bot *telegram.TelegramBot
	var dispatchService *services.DispatchService

	// Инициализируем Telegram бота
	if cfg.Telegram.Token != "" && cfg.Telegram.Token != "your_bot_token_here" {
		mode := telegram.ModePolling // по умолчанию polling
		if cfg.Telegram.Mode == "webhook" {
			mode = telegram.ModeWebhook
		}

		botConfig := telegram.BotConfig{
			Token:      cfg.Telegram.Token,
			Mode:       mode,
			WebhookURL: cfg.Telegram.WebhookURL,
			Port:       cfg.Telegram.WebhookPort,
		}

		bot, err = telegram.NewBot(botConfig)
		if err != nil {
			log.Fatalf("Ошибка создания Telegram бота: %v", err)
		}

		// Обработчик сообщений
		messageProcessor := telegram.NewMessageProcessor(storage, conversations)
		bot.AddHandler(messageProcessor.ProcessMessage)

		// Ежедневная рассылка дайджестов
		dispatchService = services.NewDispatchService(
			storage,
			bot,
			dispatchTrigger,
			time.Duration(cfg.Scheduler.SendTimeoutSeconds)*time.Second,
			clock,
		)
		if err := dispatchService.Start(); err != nil {
			log.Fatalf("Ошибка запуска рассылки: %v", err)
		}

		if err := bot.Start(); err != nil {
			log.Fatalf("Ошибка запуска Telegram бота: %v", err)
		}

		log.Printf("Telegram бот запущен в режиме: %s", bot.GetMode())
		log.Printf("Время рассылки: %s, время чистки: %s", cfg.Scheduler.DispatchTime, cfg.Scheduler.SweepTime)
	} else {
		log.Println("TELEGRAM_BOT_TOKEN не задан или равен значению по умолчанию, Telegram бот не запущен")
	}

	// Настраиваем HTTP маршруты
	router := mux.NewRouter()
	httpHandler := handlers.NewHTTPHandler(storage)
	httpHandler.RegisterRoutes(router)

	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTP.Port,
		Handler: router,
	}

	go func() {
		log.Printf("HTTP сервер запущен на :%s", cfg.HTTP.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Ошибка запуска сервера: %v", err)
		}
	}()

	// Ожидаем сигнала для завершения
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	<-signalChan

	log.Println("Сервер завершает работу")

	// Graceful shutdown
	if dispatchService != nil {
		log.Println("Останавливаем рассылку...")
		if err := dispatchService.Stop(); err != nil {
			log.Printf("Ошибка остановки рассылки: %v", err)
		}
	}

	log.Println("Останавливаем чистку...")
	if err := sweepService.Stop(); err != nil {
		log.Printf("Ошибка остановки чистки: %v", err)
	}

	if bot != nil {
		log.Println("Останавливаем Telegram бота...")
		if err := bot.Stop(); err != nil {
			log.Printf("Ошибка остановки бота: %v", err)
		}
	}

	if err := httpServer.Shutdown(context.Background()); err != nil {
		log.Printf("Ошибка остановки HTTP сервера: %v", err)
	}

	// Закрываем хранилище последним
	if err := storage.Close(); err != nil {
		log.Printf("Ошибка закрытия хранилища: %v", err)
	}

	log.Println("Сервер успешно завершил работу")
}
