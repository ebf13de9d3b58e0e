package content

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"quiz-practice/internal/auth"
	"quiz-practice/internal/testutil"
)

func newRouter(t *testing.T, o *testutil.FakeOracle) *mux.Router {
	t.Helper()
	r, _ := newRouterWithDB(t, o)
	return r
}

func newRouterWithDB(t *testing.T, o *testutil.FakeOracle) (*mux.Router, *gorm.DB) {
	t.Helper()
	db := testutil.DB(t)
	h := NewHandler(newService(t, db, o, Options{}), testutil.Logger(t))
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), 11)))
		})
	})
	h.RegisterRoutes(api)
	return r, db
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestGenerateHandler(t *testing.T) {
	r := newRouter(t, &testutil.FakeOracle{})

	rec := do(r, http.MethodPost, "/api/items/generate", `{"topic":"Linux","level":"basic","delivery_time":"07:30","frequency":"daily"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var res GenerateResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Item.ID == 0 || len(res.Item.Options) != 4 {
		t.Errorf("unexpected item %+v", res.Item)
	}

	rec = do(r, http.MethodGet, "/api/topics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"Linux"`) {
		t.Fatalf("topics: %d %s", rec.Code, rec.Body.String())
	}
}

func TestGenerateHandlerRejectsBadInput(t *testing.T) {
	r := newRouter(t, &testutil.FakeOracle{})

	tests := []struct {
		name string
		body string
	}{
		{"missing topic", `{"level":"basic"}`},
		{"bad frequency", `{"topic":"Linux","level":"basic","frequency":"hourly"}`},
		{"bad clock", `{"topic":"Linux","level":"basic","delivery_time":"25:00"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(r, http.MethodPost, "/api/items/generate", tt.body); rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestGenerateHandlerReportsRejectedItem(t *testing.T) {
	o := &testutil.FakeOracle{Reply: func(int, string) (string, error) { return testutil.InvalidReply, nil }}
	r := newRouter(t, o)

	rec := do(r, http.MethodPost, "/api/items/generate", `{"topic":"Linux","level":"basic"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"validation"`) {
		t.Errorf("expected validation report in %s", rec.Body.String())
	}
}

func TestAnswerHandler(t *testing.T) {
	r, db := newRouterWithDB(t, &testutil.FakeOracle{})
	own := seedItems(t, db, 11, "Linux", 1)[0]
	foreign := seedItems(t, db, 12, "Linux", 1)[0]
	path := func(id uint) string { return fmt.Sprintf("/api/items/%d/answer", id) }

	tests := []struct {
		name    string
		path    string
		body    string
		status  int
		correct bool
	}{
		{"right answer", path(own.ID), `{"selected_answer":"A","response_time":9}`, http.StatusOK, true},
		{"wrong answer", path(own.ID), `{"selected_answer":"D","response_time":20}`, http.StatusOK, false},
		{"foreign item", path(foreign.ID), `{"selected_answer":"A"}`, http.StatusNotFound, false},
		{"unknown item", path(foreign.ID + 50), `{"selected_answer":"A"}`, http.StatusNotFound, false},
		{"missing answer", path(own.ID), `{"response_time":3}`, http.StatusBadRequest, false},
		{"bad letter", path(own.ID), `{"selected_answer":"Z"}`, http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(r, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
			}
			if tt.status != http.StatusOK {
				return
			}
			var res AnswerResult
			if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if res.Correct != tt.correct || res.CorrectAnswer != "A" {
				t.Errorf("unexpected result %+v", res)
			}
		})
	}
}

func TestNormalizeClock(t *testing.T) {
	tests := map[string]string{"": "", "09:00": "09:00:00", "23:59:59": "23:59:59"}
	for in, want := range tests {
		got, err := normalizeClock(in)
		if err != nil || got != want {
			t.Errorf("normalizeClock(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := normalizeClock("9am"); err == nil {
		t.Error("expected error")
	}
}
