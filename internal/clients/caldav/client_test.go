package caldav

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-ical"

	"github.com/tazhate/studentreminder/internal/domain"
)

func TestAlarmToICS(t *testing.T) {
	at := time.Date(2099, 1, 1, 9, 0, 0, 0, time.UTC)
	cal := alarmToICS(Alarm{UID: "t1@studentreminder", Summary: "EXAMS Reminder", Description: "EXAMS", At: at}, at.Add(-time.Hour))
	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		t.Fatalf("encode: %v", err)
	}
	ics := buf.String()

	for _, want := range []string{
		"BEGIN:VEVENT",
		"UID:t1@studentreminder",
		"SUMMARY:EXAMS Reminder",
		"DTSTART:20990101T090000Z",
		"DTEND:20990101T091500Z",
		"BEGIN:VALARM",
		"ACTION:DISPLAY",
		"TRIGGER:PT0S",
	} {
		if !strings.Contains(ics, want) {
			t.Errorf("missing %q in:\n%s", want, ics)
		}
	}
}

func TestObjectPath(t *testing.T) {
	c := NewClient("", "u", "p")
	if _, err := c.objectPath("t1"); err == nil {
		t.Fatal("expected error without calendar path")
	}
	c.SetCalendarPath("/calendars/u/reminders")
	got, err := c.objectPath("t1")
	if err != nil || got != "/calendars/u/reminders/t1.ics" {
		t.Fatalf("objectPath = %q, %v", got, err)
	}
}

func TestPutAndRemoveAlarm(t *testing.T) {
	var mu sync.Mutex
	var requests []string
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "u" || pass != "p" {
			t.Errorf("missing basic auth")
		}
		mu.Lock()
		requests = append(requests, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodPut {
			b, _ := io.ReadAll(r.Body)
			body = string(b)
		}
		mu.Unlock()

		switch r.Method {
		case http.MethodPut:
			w.WriteHeader(http.StatusCreated)
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "u", "p")
	c.SetCalendarPath("/cal/")
	ctx := context.Background()

	at := time.Date(2099, 1, 1, 9, 0, 0, 0, time.UTC)
	if err := c.PutAlarm(ctx, "t1", at, domain.NotificationContent{Title: "CAT Reminder", Body: "CAT"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := c.RemoveAlarm(ctx, "t1"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if len(requests) != 2 || requests[0] != "PUT /cal/t1.ics" || requests[1] != "DELETE /cal/t1.ics" {
		t.Fatalf("requests = %v", requests)
	}
	if !strings.Contains(body, "BEGIN:VALARM") || !strings.Contains(body, "SUMMARY:CAT Reminder") {
		t.Fatalf("unexpected body:\n%s", body)
	}
}
