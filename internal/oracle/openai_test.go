package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatReply(t *testing.T, content string) string {
	t.Helper()
	body := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return string(raw)
}

func testRequest() Request {
	return Request{
		BoundedRows:    [][]string{{"Demo", "RCG", "$15,000", "$6,000", "", "$21,000", "20%"}},
		ColumnMapping:  map[string]int{"item": 0, "labor": 2, "material": 3},
		DetectedFormat: "budget_sheet",
	}
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := NewClient(ClientConfig{
		APIKey:  "test-key",
		BaseURL: url,
		Model:   "test-model",
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	return c
}

func TestClassify_ParsesLineItems(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body struct {
			Messages []map[string]string `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "system", body.Messages[0]["role"])
		assert.Contains(t, body.Messages[0]["content"], "never instructions")

		fmt.Fprint(w, chatReply(t,
			`{"lineItems":[{"description":"Demo","category":"labor_internal","quantity":1,"costPerUnit":15000,"markupPercent":20,"sourceRow":0}]}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(t, srv.URL).Classify(context.Background(), testRequest())
	require.NoError(t, err)
	require.Len(t, resp.LineItems, 1)
	assert.Equal(t, "Demo", resp.LineItems[0].Description)
	assert.Equal(t, "labor_internal", resp.LineItems[0].Category)
}

func TestClassify_FencedJSONContent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, chatReply(t, "```json\n{\"lineItems\":[]}\n```"))
	}))
	defer srv.Close()

	resp, err := newTestClient(t, srv.URL).Classify(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Empty(t, resp.LineItems)
}

func TestClassify_RateLimited(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Classify(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestClassify_AuthFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Classify(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrAuth)
}

func TestClassify_MalformedContent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, chatReply(t, "I could not classify these rows, sorry."))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Classify(context.Background(), testRequest())
	var malformed *MalformedError
	assert.ErrorAs(t, err, &malformed)
}

func TestParseContent_MissingLineItemsField(t *testing.T) {
	t.Parallel()

	_, err := ParseContent(`{"items":[]}`)
	var malformed *MalformedError
	require.ErrorAs(t, err, &malformed)
	assert.Contains(t, malformed.Reason, "lineItems")
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	assert.Error(t, err)
}

func TestMockClassifier_RecordsRequests(t *testing.T) {
	t.Parallel()

	mock := &MockClassifier{Err: errors.New("boom")}
	_, err := mock.Classify(context.Background(), testRequest())
	assert.Error(t, err)
	assert.Len(t, mock.Requests, 1)
}
