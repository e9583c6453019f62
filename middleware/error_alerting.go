package middleware

import (
	"bytes"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
)

type AlertConfig struct {
	WebhookURL  string
	Environment string
	AppName     string
}

type ErrorAlertMiddleware struct {
	config        AlertConfig
	httpClient    *http.Client
	alertedErrors map[string]time.Time // hash -> last alert time
	mutex         sync.Mutex
	alertCooldown time.Duration
	wg            sync.WaitGroup
}

func NewErrorAlertMiddleware(config AlertConfig) *ErrorAlertMiddleware {
	return &ErrorAlertMiddleware{
		config:        config,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		alertedErrors: make(map[string]time.Time),
		alertCooldown: 10 * time.Minute, // same error at most once per 10min
	}
}

// HTTPMiddleware recovers panics in handlers, answers 500 and raises an alert
func (m *ErrorAlertMiddleware) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				m.alertOnPanic(fmt.Sprintf("HTTP %s %s", r.Method, r.URL.Path), rec)
				w.WriteHeader(http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// WrapBackgroundTask alerts on errors and panics of a periodic job
func (m *ErrorAlertMiddleware) WrapBackgroundTask(taskName string, task func() error) func() error {
	return func() (err error) {
		context := fmt.Sprintf("Background task: %s", taskName)
		defer func() {
			if rec := recover(); rec != nil {
				m.alertOnPanic(context, rec)
				err = fmt.Errorf("%s panicked: %v", taskName, rec)
			}
		}()

		if err := task(); err != nil {
			m.alertOnError(err, context)
			return err
		}
		return nil
	}
}

// Wait blocks until in-flight alerts have been delivered
func (m *ErrorAlertMiddleware) Wait() {
	m.wg.Wait()
}

func (m *ErrorAlertMiddleware) alertOnError(err error, context string) {
	errorMsg := fmt.Sprintf("%s: %v", context, err)
	log.Printf("❌ %s", errorMsg)

	hash := fmt.Sprintf("%x", md5.Sum([]byte(errorMsg)))

	m.mutex.Lock()
	if lastAlert, exists := m.alertedErrors[hash]; exists && time.Since(lastAlert) < m.alertCooldown {
		m.mutex.Unlock()
		return
	}
	m.alertedErrors[hash] = time.Now()
	m.mutex.Unlock()

	m.send(errorMsg, context)
}

func (m *ErrorAlertMiddleware) alertOnPanic(context string, rec any) {
	errorMsg := fmt.Sprintf("%s: PANIC - %v", context, rec)
	log.Printf("❌ %s", errorMsg)
	m.send(errorMsg, context+" (PANIC)")
}

func (m *ErrorAlertMiddleware) send(errorMsg, context string) {
	if m.config.WebhookURL == "" {
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.postAlert(errorMsg, context)
	}()
}

func (m *ErrorAlertMiddleware) postAlert(errorMsg, context string) {
	prefix := ""
	if m.config.Environment == "dev" {
		prefix = "[dev] "
	}
	payload := map[string]any{
		"text":        fmt.Sprintf("🚨 %s[%s] Error Alert", prefix, m.config.AppName),
		"service":     m.config.AppName,
		"environment": m.config.Environment,
		"context":     context,
		"error":       errorMsg,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		log.Printf("❌ Failed to encode alert: %v", err)
		return
	}

	resp, err := m.httpClient.Post(m.config.WebhookURL, "application/json", bytes.NewReader(payloadBytes))
	if err != nil {
		log.Printf("❌ Failed to send alert: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("❌ Alert webhook failed with status: %d", resp.StatusCode)
	}
}
