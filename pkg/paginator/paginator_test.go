package paginator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"competesync/pkg/auth"
	"competesync/pkg/client"
	errs "competesync/pkg/errors"
	"competesync/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRequester serves page bodies by wire page number and records every call
type scriptedRequester struct {
	mu      sync.Mutex
	pages   func(page int) ([]byte, error)
	queries []map[string]string
	headers []map[string]string
}

func (s *scriptedRequester) Request(_ context.Context, _ string, query, headers map[string]string) (*client.Response, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.headers = append(s.headers, headers)
	s.mu.Unlock()

	page, _ := strconv.Atoi(query["pageNo"])
	body, err := s.pages(page)
	if err != nil {
		return nil, err
	}
	return &client.Response{StatusCode: http.StatusOK, Body: body}, nil
}

func (s *scriptedRequester) pageNumbers() []string {
	var out []string
	for _, q := range s.queries {
		out = append(out, q["pageNo"])
	}
	return out
}

func listBody(path []string, n, offset int) []byte {
	items := make([]map[string]any, n)
	for i := range items {
		items[i] = map[string]any{"id": fmt.Sprintf("item-%d", offset+i)}
	}
	var body any = items
	for i := len(path) - 1; i >= 0; i-- {
		body = map[string]any{path[i]: body}
	}
	data, _ := json.Marshal(body)
	return data
}

var defaultPath = []string{"data", "data", "itemList"}

func testEndpoint() Endpoint {
	return Endpoint{URL: "https://example.test/list", PageParam: "pageNo"}
}

func newTestPaginator(r Requester, e Endpoint) *Paginator {
	return New(r, e, logger.NewNopLogger(), nil)
}

func TestFetchAllUntilEmptyPage(t *testing.T) {
	sizes := []int{50, 50, 0}
	r := &scriptedRequester{pages: func(page int) ([]byte, error) {
		return listBody(defaultPath, sizes[page], page*50), nil
	}}

	result := newTestPaginator(r, testEndpoint()).FetchAll(context.Background(), "E1", "", 10)

	assert.Equal(t, ReasonExhausted, result.Reason)
	assert.True(t, result.Complete())
	assert.NoError(t, result.Err)
	assert.Equal(t, 100, result.Count)
	assert.Len(t, result.Items, 100)
	assert.Equal(t, 3, result.Pages)
	assert.Equal(t, []string{"0", "1", "2"}, r.pageNumbers())
	assert.Equal(t, "item-0", result.Items[0]["id"])
	assert.Equal(t, "item-99", result.Items[99]["id"])
}

func TestFetchAllSafetyBound(t *testing.T) {
	r := &scriptedRequester{pages: func(page int) ([]byte, error) {
		return listBody(defaultPath, 5, page*5), nil
	}}

	result := newTestPaginator(r, testEndpoint()).FetchAll(context.Background(), "E1", "", 3)

	assert.Equal(t, ReasonSafetyStopped, result.Reason)
	assert.False(t, result.Complete())
	assert.Equal(t, 15, result.Count)
	assert.Equal(t, 3, result.Pages)
	assert.Equal(t, []string{"0", "1", "2"}, r.pageNumbers())
}

func TestFetchAllDefaultMaxPages(t *testing.T) {
	r := &scriptedRequester{pages: func(page int) ([]byte, error) {
		return listBody(defaultPath, 1, page), nil
	}}

	result := newTestPaginator(r, testEndpoint()).FetchAll(context.Background(), "E1", "", 0)

	assert.Equal(t, ReasonSafetyStopped, result.Reason)
	assert.Equal(t, DefaultMaxPages, result.Pages)
	assert.Equal(t, DefaultMaxPages, result.Count)
}

func TestFetchAllKeepsPartialItemsOnFailure(t *testing.T) {
	rejected := errs.New(errs.KindAuthExhausted, nil, "credentials rejected on all 2 attempts")
	r := &scriptedRequester{pages: func(page int) ([]byte, error) {
		if page == 2 {
			return nil, rejected
		}
		return listBody(defaultPath, 10, page*10), nil
	}}

	result := newTestPaginator(r, testEndpoint()).FetchAll(context.Background(), "E1", "", 10)

	assert.Equal(t, ReasonFailed, result.Reason)
	assert.ErrorIs(t, result.Err, rejected)
	assert.Equal(t, 20, result.Count)
	assert.Equal(t, 3, result.Pages)
}

func TestFetchAllParseFailure(t *testing.T) {
	r := &scriptedRequester{pages: func(int) ([]byte, error) {
		return []byte("<html>Just a moment...</html>"), nil
	}}

	result := newTestPaginator(r, testEndpoint()).FetchAll(context.Background(), "E1", "", 10)

	assert.Equal(t, ReasonFailed, result.Reason)
	assert.Equal(t, errs.KindParseFailure, errs.KindOf(result.Err))
	assert.Equal(t, 0, result.Count)
	assert.Equal(t, 1, result.Pages)
}

func TestFetchAllScalarListIsParseFailure(t *testing.T) {
	r := &scriptedRequester{pages: func(int) ([]byte, error) {
		return []byte(`{"data":{"data":{"itemList":[1,"two",null]}}}`), nil
	}}

	result := newTestPaginator(r, testEndpoint()).FetchAll(context.Background(), "E1", "", 10)

	assert.Equal(t, ReasonFailed, result.Reason)
	assert.Equal(t, errs.KindParseFailure, errs.KindOf(result.Err))
	assert.Equal(t, 1, result.Pages)
}

func TestFetchAllSkipsScalarEntriesAmongObjects(t *testing.T) {
	bodies := [][]byte{
		[]byte(`{"data":{"data":{"itemList":[{"id":"a"},7,{"id":"b"}]}}}`),
		[]byte(`{"data":{"data":{"itemList":[]}}}`),
	}
	r := &scriptedRequester{pages: func(page int) ([]byte, error) {
		return bodies[page], nil
	}}
	log := logger.NewTestLogger()

	result := New(r, testEndpoint(), log, nil).FetchAll(context.Background(), "E1", "", 10)

	assert.Equal(t, ReasonExhausted, result.Reason)
	assert.Equal(t, 2, result.Count)
	assert.True(t, log.HasMessage("dropped non-object entries"))
}

func TestFetchAllMissingPathIsEmpty(t *testing.T) {
	r := &scriptedRequester{pages: func(int) ([]byte, error) {
		return []byte(`{"data":{"status":"ok"}}`), nil
	}}

	result := newTestPaginator(r, testEndpoint()).FetchAll(context.Background(), "E1", "", 10)

	assert.Equal(t, ReasonExhausted, result.Reason)
	assert.Equal(t, 0, result.Count)
	assert.NotNil(t, result.Items)
	assert.Equal(t, 1, result.Pages)
}

func TestFetchAllFallbackPaths(t *testing.T) {
	sizes := []int{3, 0}
	r := &scriptedRequester{pages: func(page int) ([]byte, error) {
		return listBody([]string{"content"}, sizes[page], 0), nil
	}}
	e := testEndpoint()
	e.ItemPath = "events"
	e.FallbackPaths = []string{"data", "content"}

	result := newTestPaginator(r, e).FetchAll(context.Background(), "", "", 10)

	assert.Equal(t, ReasonExhausted, result.Reason)
	assert.Equal(t, 3, result.Count)
}

func TestFetchAllTopLevelList(t *testing.T) {
	sizes := []int{2, 0}
	r := &scriptedRequester{pages: func(page int) ([]byte, error) {
		return listBody(nil, sizes[page], 0), nil
	}}
	e := testEndpoint()
	e.ItemPath = "events"
	e.FallbackPaths = []string{""}

	result := newTestPaginator(r, e).FetchAll(context.Background(), "", "", 10)
	assert.Equal(t, 2, result.Count)
}

func TestFetchAllCancelledContext(t *testing.T) {
	r := &scriptedRequester{pages: func(page int) ([]byte, error) {
		return listBody(defaultPath, 1, page), nil
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := newTestPaginator(r, testEndpoint()).FetchAll(ctx, "E1", "", 10)

	assert.Equal(t, ReasonFailed, result.Reason)
	assert.ErrorIs(t, result.Err, context.Canceled)
	assert.Equal(t, 0, result.Pages)
	assert.Empty(t, r.queries)
}

func TestFetchAllDeterministic(t *testing.T) {
	sizes := []int{4, 2, 0}
	newRequester := func() *scriptedRequester {
		return &scriptedRequester{pages: func(page int) ([]byte, error) {
			return listBody(defaultPath, sizes[page], page*10), nil
		}}
	}

	first := newTestPaginator(newRequester(), testEndpoint()).FetchAll(context.Background(), "E1", "F1", 10)
	second := newTestPaginator(newRequester(), testEndpoint()).FetchAll(context.Background(), "E1", "F1", 10)

	assert.Equal(t, first, second)
}

func TestEndpointBuild(t *testing.T) {
	e := Endpoint{
		PageParam:     "pageNumber",
		FirstPage:     1,
		ResourceParam: "eventId",
		FilterParam:   "nodeId",
		Query:         map[string]string{"itemsPerPage": "12"},
		Extra: func(req PageRequest) map[string]string {
			if req.FilterID == "" {
				return nil
			}
			return map[string]string{"nodeLevel": "EventRole"}
		},
		Headers: func(req PageRequest) map[string]string {
			return map[string]string{"Referer": "https://example.test/eventDetails/" + req.ResourceID + "/5"}
		},
	}

	query, headers := e.build(PageRequest{ResourceID: "42", PageIndex: 2, FilterID: "N7"})
	assert.Equal(t, map[string]string{
		"pageNumber":   "3",
		"eventId":      "42",
		"nodeId":       "N7",
		"nodeLevel":    "EventRole",
		"itemsPerPage": "12",
	}, query)
	assert.Equal(t, "https://example.test/eventDetails/42/5", headers["Referer"])

	query, _ = e.build(PageRequest{ResourceID: "42"})
	assert.Equal(t, "1", query["pageNumber"])
	assert.NotContains(t, query, "nodeId")
	assert.NotContains(t, query, "nodeLevel")
	assert.Equal(t, "12", e.Query["itemsPerPage"])
	assert.Len(t, e.Query, 1)
}

func TestLookup(t *testing.T) {
	var body any
	require.NoError(t, json.Unmarshal([]byte(`{"a":{"b":{"c":[1,2]}},"x":"y"}`), &body))

	assert.Len(t, Lookup(body, "a.b.c"), 2)
	assert.Nil(t, Lookup(body, "a.missing.c"))
	assert.Nil(t, Lookup(body, "x.y"))
	assert.Equal(t, body, Lookup(body, ""))
}

func TestFetchAllThroughAuthenticatedClient(t *testing.T) {
	sizes := []int{50, 50, 0}
	var mu sync.Mutex
	var pages []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("pageNo"))
		mu.Lock()
		pages = append(pages, r.URL.Query().Get("pageNo"))
		mu.Unlock()
		if _, err := r.Cookie("cf_clearance"); err != nil {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write(listBody(defaultPath, sizes[page], page*50))
	}))
	defer srv.Close()

	store := auth.NewMemoryStore(auth.CredentialSet{"cf_clearance": "ok"})
	c := client.New(client.Options{Store: store, Logger: logger.NewNopLogger()})
	e := Endpoint{URL: srv.URL, PageParam: "pageNo"}

	result := newTestPaginator(c, e).FetchAll(context.Background(), "E1", "", 100)

	assert.Equal(t, ReasonExhausted, result.Reason)
	assert.Equal(t, 100, result.Count)
	assert.Equal(t, []string{"0", "1", "2"}, pages)
}
