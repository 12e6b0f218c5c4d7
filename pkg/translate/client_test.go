package translate_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gcloudkit/gcloud/pkg/apierr"
	"github.com/gcloudkit/gcloud/pkg/backoff"
	"github.com/gcloudkit/gcloud/pkg/gcloud"
	"github.com/gcloudkit/gcloud/pkg/translate"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const apiKey = "test-key"

// The v2 API wraps every response in {"data": ...}.
func reply(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"data": v})
}

type fakeTranslate struct {
	requests int
}

func (f *fakeTranslate) handler() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			f.requests++
			if r.URL.Query().Get("key") != apiKey {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"error": map[string]interface{}{
						"code":    400,
						"message": "API key not valid",
						"errors":  []interface{}{map[string]interface{}{"reason": "badRequest"}},
					},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Route("/language/translate/v2", func(r chi.Router) {
		r.Get("/", f.translate)
		r.Get("/detect", f.detect)
		r.Get("/languages", f.languages)
	})
	return r
}

// translate upper-cases its input and claims it was English.
func (f *fakeTranslate) translate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var out []interface{}
	for _, text := range q["q"] {
		t := map[string]interface{}{"translatedText": strings.ToUpper(text), "model": "nmt"}
		if q.Get("source") == "" {
			t["detectedSourceLanguage"] = "en"
		}
		out = append(out, t)
	}
	reply(w, map[string]interface{}{"translations": out})
}

func (f *fakeTranslate) detect(w http.ResponseWriter, r *http.Request) {
	var out []interface{}
	for range r.URL.Query()["q"] {
		out = append(out, []interface{}{
			map[string]interface{}{"language": "de", "confidence": 0.2, "isReliable": false},
			map[string]interface{}{"language": "en", "confidence": 0.9, "isReliable": true},
		})
	}
	reply(w, map[string]interface{}{"detections": out})
}

func (f *fakeTranslate) languages(w http.ResponseWriter, r *http.Request) {
	langs := []interface{}{map[string]interface{}{"language": "en"}, map[string]interface{}{"language": "fr"}}
	if r.URL.Query().Get("target") == "en" {
		langs = []interface{}{
			map[string]interface{}{"language": "en", "name": "English"},
			map[string]interface{}{"language": "fr", "name": "French"},
		}
	}
	reply(w, map[string]interface{}{"languages": langs})
}

func newClient(t *testing.T, f *fakeTranslate, key string) *translate.Client {
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	cfg := gcloud.DefaultConfig()
	cfg.APIKey = key
	cfg.Endpoints[gcloud.ServiceTranslate] = srv.URL + "/language/translate/"

	noSleep := func(context.Context, time.Duration) error { return nil }
	c, err := translate.New(context.Background(), cfg,
		gcloud.WithBackoff(backoff.New(backoff.WithSleep(noSleep))))
	require.NoError(t, err)
	return c
}

func TestTranslate(t *testing.T) {
	f := &fakeTranslate{}
	c := newClient(t, f, apiKey)
	ctx := context.Background()

	out, err := c.Translate(ctx, []string{"hello", "world"}, translate.TranslateOptions{To: "fr"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, &translate.Translation{Text: "HELLO", Origin: "hello", To: "fr", Source: "en", Model: "nmt"}, out[0])
	assert.Equal(t, "WORLD", out[1].Text)

	out, err = c.Translate(ctx, []string{"bonjour"}, translate.TranslateOptions{To: "en", From: "fr"})
	require.NoError(t, err)
	assert.Equal(t, "fr", out[0].Source)

	_, err = c.Translate(ctx, []string{"x"}, translate.TranslateOptions{})
	assert.True(t, apierr.IsInvalid(err))
}

func TestTranslateBatches(t *testing.T) {
	f := &fakeTranslate{}
	c := newClient(t, f, apiKey)

	texts := make([]string, translate.MaxTexts+2)
	for i := range texts {
		texts[i] = "t"
	}
	out, err := c.Translate(context.Background(), texts, translate.TranslateOptions{To: "fr"})
	require.NoError(t, err)
	assert.Len(t, out, len(texts))
	assert.Equal(t, 2, f.requests)
}

func TestDetect(t *testing.T) {
	c := newClient(t, &fakeTranslate{}, apiKey)

	out, err := c.Detect(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, &translate.Detection{Text: "hello", Language: "en", Confidence: 0.9, Reliable: true}, out[0])
}

func TestLanguages(t *testing.T) {
	c := newClient(t, &fakeTranslate{}, apiKey)
	ctx := context.Background()

	langs, err := c.Languages(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []*translate.Language{{Code: "en"}, {Code: "fr"}}, langs)

	langs, err = c.Languages(ctx, "en")
	require.NoError(t, err)
	assert.Equal(t, "French", langs[1].Name)
}

func TestBadKey(t *testing.T) {
	c := newClient(t, &fakeTranslate{}, "wrong")

	_, err := c.Languages(context.Background(), "")
	e, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, e.Code)
	assert.True(t, apierr.IsInvalid(err))
}
