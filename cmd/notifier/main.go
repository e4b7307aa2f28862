package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tazhate/studentreminder/config"
	"github.com/tazhate/studentreminder/internal/api"
	"github.com/tazhate/studentreminder/internal/bot"
	"github.com/tazhate/studentreminder/internal/clients/backend"
	"github.com/tazhate/studentreminder/internal/clients/caldav"
	"github.com/tazhate/studentreminder/internal/clients/sms"
	"github.com/tazhate/studentreminder/internal/notifier"
	"github.com/tazhate/studentreminder/internal/scheduler"
	"github.com/tazhate/studentreminder/internal/service"
	"github.com/tazhate/studentreminder/internal/session"
	"github.com/tazhate/studentreminder/internal/source"
	"github.com/tazhate/studentreminder/internal/storage"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("Invalid timezone: %v", err)
	}
	// Due dates carry no zone and are read in time.Local; the configured
	// timezone stands in for the host's when set.
	time.Local = loc

	store, err := storage.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to init storage: %v", err)
	}
	defer store.Close()

	ids := storage.NewNotificationIDs(store)
	if n, err := ids.ImportLegacy(); err != nil {
		log.Printf("Error importing legacy notification ids: %v", err)
	} else if n > 0 {
		log.Printf("Imported %d legacy notification ids", n)
	}
	flags := storage.NewNotifiedFlags(store)

	local := notifier.NewLocal(store, loc)

	var tgBot *bot.Bot
	if cfg.Telegram.Token != "" {
		tgBot, err = bot.New(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			log.Fatalf("Failed to init bot: %v", err)
		}
		local.SetSender(tgBot, cfg.Telegram.ChatID)
		tgBot.SetPending(local)
	} else {
		log.Println("Telegram not configured, notifications will not be scheduled")
	}

	notifications := service.NewNotificationService(local, ids, flags)

	cal := caldav.NewClient(cfg.CalDAV.URL, cfg.CalDAV.Username, cfg.CalDAV.Password)
	if cal.IsConfigured() {
		cal.SetCalendarPath(cfg.CalDAV.Calendar)
		if cal.CalendarPath() == "" {
			calendars, err := cal.DiscoverCalendars(context.Background())
			if err != nil {
				log.Printf("Error discovering calendars: %v", err)
			} else if len(calendars) > 0 {
				cal.SetCalendarPath(calendars[0].Path)
				log.Printf("Mirroring reminders to calendar %q", calendars[0].DisplayName)
			}
		}
		if cal.CalendarPath() != "" {
			notifications.SetCalendar(cal)
		}
	}

	live := source.NewLive()

	var sessions session.Provider
	var sessionFile *session.File
	switch {
	case cfg.Session.File != "":
		sessionFile, err = session.NewFile(cfg.Session.File)
		if err != nil {
			log.Fatalf("Failed to init session: %v", err)
		}
		if err := sessionFile.Watch(); err != nil {
			log.Printf("Error watching session file: %v", err)
		}
		sessions = sessionFile
	case cfg.Session.Token != "":
		sessions = session.NewStatic(cfg.Session.Token, cfg.Session.Phone)
	}

	var refresher *source.Refresher
	backendClient := backend.NewClient(cfg.Backend.URL)
	if backendClient.IsConfigured() && sessions != nil {
		refresher = source.NewRefresher(live, backendClient, sessions, cfg.Backend.RefreshInterval)
	}

	var poller *scheduler.Poller
	smsClient := sms.NewClient(cfg.SMS.URL, cfg.SMS.Timeout)
	if smsClient.IsConfigured() && sessions != nil {
		poller = scheduler.NewPoller(live, sessions, smsClient, flags, cfg.Poller.Interval, cfg.Poller.LeadWindow)
	} else {
		log.Println("SMS endpoint or session not configured, due-soon poller disabled")
	}

	apiServer := api.New(notifications, live, cfg.Server.APIToken)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := local.Start(ctx); err != nil {
			log.Printf("Notifier error: %v", err)
		}
	}()

	if tgBot != nil {
		go func() {
			if err := tgBot.Start(ctx); err != nil {
				log.Printf("Bot error: %v", err)
			}
		}()
	}

	if refresher != nil {
		go func() {
			if err := refresher.Start(ctx); err != nil {
				log.Printf("Refresher error: %v", err)
			}
		}()
	}

	if poller != nil {
		go func() {
			if err := poller.Start(ctx); err != nil {
				log.Printf("Poller error: %v", err)
			}
		}()
	}

	go func() {
		if err := apiServer.Start(ctx, ":"+cfg.Server.Port); err != nil {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	log.Println("StudentReminder notifier started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")

	cancel()
	if poller != nil {
		poller.Stop()
	}
	if refresher != nil {
		refresher.Stop()
	}
	if tgBot != nil {
		tgBot.Stop()
	}
	if sessionFile != nil {
		sessionFile.Close()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Printf("Error stopping API server: %v", err)
	}
	local.Stop()

	log.Println("StudentReminder notifier stopped")
}
