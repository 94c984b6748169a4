package endpoint

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type echoParams struct {
	Body        []byte `body:""`
	ContentType string `header:"Content-Type"`
}

func echoEndpoint(_ http.ResponseWriter, _ *http.Request, p echoParams) (Renderer, error) {
	return &BytesRenderer{ContentType: p.ContentType, Body: p.Body}, nil
}

func TestHandlerRendersEndpointResult(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":1}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	Handler(echoEndpoint).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("got Content-Type %q", got)
	}
	if rec.Body.String() != `{"a":1}` {
		t.Errorf("got body %q", rec.Body.String())
	}
}

func TestProcessorsRunInOrder(t *testing.T) {
	var order []string
	mk := func(name string) Processor {
		return ProcessorFunc(func(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request) error) error {
			order = append(order, name)
			return next(w, r)
		})
	}

	h := Handler(func(_ http.ResponseWriter, _ *http.Request, _ struct{}) (Renderer, error) {
		order = append(order, "endpoint")
		return &NoContentRenderer{}, nil
	}, mk("first"), mk("second"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusNoContent)
	}
	if strings.Join(order, ",") != "first,second,endpoint" {
		t.Errorf("got order %v", order)
	}
}

func TestProcessorShortCircuit(t *testing.T) {
	called := false
	deny := ProcessorFunc(func(http.ResponseWriter, *http.Request, func(http.ResponseWriter, *http.Request) error) error {
		return Error(http.StatusUnauthorized, "missing token", nil)
	})
	h := Handler(func(_ http.ResponseWriter, _ *http.Request, _ struct{}) (Renderer, error) {
		called = true
		return &NoContentRenderer{}, nil
	}, deny)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	if called {
		t.Error("endpoint ran after processor returned an error")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("got status %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if !strings.Contains(rec.Body.String(), "missing token") {
		t.Errorf("got body %q", rec.Body.String())
	}
}

func TestHandlerErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "boom"},
		{"endpoint error", Error(http.StatusMethodNotAllowed, "POST only", nil), http.StatusMethodNotAllowed, "POST only"},
		{"endpoint error without message", Error(http.StatusTeapot, "", nil), http.StatusTeapot, http.StatusText(http.StatusTeapot)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Handler(func(_ http.ResponseWriter, _ *http.Request, _ struct{}) (Renderer, error) {
				return nil, tt.err
			})
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
			if rec.Code != tt.wantCode {
				t.Errorf("got status %d, want %d", rec.Code, tt.wantCode)
			}
			if strings.TrimSpace(rec.Body.String()) != tt.wantBody {
				t.Errorf("got body %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestNilRenderer(t *testing.T) {
	h := Handler(func(_ http.ResponseWriter, _ *http.Request, _ struct{}) (Renderer, error) {
		return nil, nil
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("got status %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestErrorDoesNotDoubleWrap(t *testing.T) {
	inner := Error(http.StatusBadRequest, "bad", nil)
	outer := Error(http.StatusInternalServerError, "outer", inner)
	var ee *EndpointError
	if !errors.As(outer, &ee) || ee.Status != http.StatusBadRequest {
		t.Errorf("got %v, want the inner 400 error", outer)
	}
}

func TestUnmarshalBodyLimit(t *testing.T) {
	type limited struct {
		Body string `body:"" maxLength:"4"`
	}

	var ok limited
	if err := Unmarshal(httptest.NewRequest(http.MethodPost, "/", strings.NewReader("1234")), &ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok.Body != "1234" {
		t.Errorf("got %q", ok.Body)
	}

	var tooLong limited
	err := Unmarshal(httptest.NewRequest(http.MethodPost, "/", strings.NewReader("12345")), &tooLong)
	var ee *EndpointError
	if !errors.As(err, &ee) || ee.Status != http.StatusRequestEntityTooLarge {
		t.Errorf("got %v, want 413", err)
	}
}

func TestUnmarshalInvalidTargets(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("x"))

	var notPointer echoParams
	if err := Unmarshal(req, notPointer); err == nil {
		t.Error("expected error for non-pointer")
	}

	var wrongBody struct {
		Body int `body:""`
	}
	if err := Unmarshal(req, &wrongBody); err == nil {
		t.Error("expected error for int body field")
	}

	var twoBodies struct {
		A []byte `body:""`
		B []byte `body:""`
	}
	if err := Unmarshal(req, &twoBodies); err == nil {
		t.Error("expected error for two body fields")
	}
}

func TestJSONRenderer(t *testing.T) {
	rec := httptest.NewRecorder()
	r := &JSONRenderer{Status: http.StatusAccepted, Value: map[string]string{"q": "<a&b>"}}
	if err := r.Render(rec, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusAccepted {
		t.Errorf("got status %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"q":"<a&b>"}` {
		t.Errorf("got body %q", rec.Body.String())
	}
}
