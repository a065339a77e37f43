package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/menta-tgbot-go/internal/config"
	"github.com/menta-tgbot-go/internal/models"
	"github.com/menta-tgbot-go/pkg/logger"
)

func chatReply(content string) string {
	body, _ := json.Marshal(map[string]interface{}{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "test",
		"choices": []map[string]interface{}{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	})
	return string(body)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *GroqClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewGroqClient(&config.AIConfig{
		APIKey:          "test-key",
		BaseURL:         srv.URL + "/v1",
		TranscribeModel: "whisper-test",
		VisionModel:     "vision-test",
		SentimentModel:  "sentiment-test",
		Language:        "es",
		Timeout:         5 * time.Second,
		MaxRetries:      3,
	}, nil, logger.Discard())
	c.backoff = time.Millisecond
	return c
}

func TestSentiment_ParsesLabel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		fmt.Fprint(w, chatReply(" negative\n"))
	})

	got, err := c.Sentiment(context.Background(), "todo me sale mal")
	if err != nil {
		t.Fatalf("sentiment: %v", err)
	}
	if got != models.SentimentNegative {
		t.Fatalf("sentiment = %q", got)
	}
}

func TestAnalyzeMeal_RetriesServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "data:image/png;base64,") {
			t.Errorf("request does not carry the image data URL")
		}
		fmt.Fprint(w, chatReply(`{"alimentos":["ensalada"],"evaluacion":"saludable","recomendacion":"¡Muy bien!"}`))
	})

	png := []byte("\x89PNG\r\n\x1a\n0000000000000000")
	got, err := c.AnalyzeMeal(context.Background(), png)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if got.Evaluation != "saludable" || got.Foods[0] != "ensalada" {
		t.Fatalf("analysis = %+v", got)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestWithRetry_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"invalid api key","type":"invalid_request_error"}}`)
	})

	if _, err := c.Sentiment(context.Background(), "hola"); err == nil {
		t.Fatalf("expected error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestTranscribe(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("multipart: %v", err)
		}
		if r.FormValue("model") != "whisper-test" || r.FormValue("language") != "es" {
			t.Errorf("form = %v", r.MultipartForm.Value)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"text":"  hoy estoy muy cansada  "}`)
	})

	got, err := c.Transcribe(context.Background(), []byte("OggS fake audio"), "")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if got != "hoy estoy muy cansada" {
		t.Fatalf("transcript = %q", got)
	}
}
