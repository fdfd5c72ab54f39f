package special

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// mockTitler implements RandomTitler for testing.
type mockTitler struct {
	title string
	ok    bool
}

func (m *mockTitler) RandomTitle(idx int) (string, bool) {
	return m.title, m.ok
}

func TestRandomPageHandler(t *testing.T) {
	t.Run("redirects to random article", func(t *testing.T) {
		mock := &mockTitler{title: "Test_article", ok: true}
		handler := NewRandomPage(mock)

		req := httptest.NewRequest("GET", "/wiki/Special:Random", nil)
		rr := httptest.NewRecorder()

		handler.Handle(rr, req)

		if rr.Code != http.StatusSeeOther {
			t.Errorf("expected status %d, got %d", http.StatusSeeOther, rr.Code)
		}

		location := rr.Header().Get("Location")
		expected := "/wiki/Test_article"
		if location != expected {
			t.Errorf("expected redirect to %q, got %q", expected, location)
		}
	})

	t.Run("redirects to home when index is empty", func(t *testing.T) {
		mock := &mockTitler{title: "", ok: false}
		handler := NewRandomPage(mock)

		req := httptest.NewRequest("GET", "/wiki/Special:Random", nil)
		rr := httptest.NewRecorder()

		handler.Handle(rr, req)

		if rr.Code != http.StatusSeeOther {
			t.Errorf("expected status %d, got %d", http.StatusSeeOther, rr.Code)
		}

		location := rr.Header().Get("Location")
		if location != "/" {
			t.Errorf("expected redirect to /, got %q", location)
		}
	})

	t.Run("handles titles with spaces", func(t *testing.T) {
		mock := &mockTitler{title: "Article with spaces", ok: true}
		handler := NewRandomPage(mock)

		req := httptest.NewRequest("GET", "/wiki/Special:Random", nil)
		rr := httptest.NewRecorder()

		handler.Handle(rr, req)

		location := rr.Header().Get("Location")
		expected := "/wiki/Article%20with%20spaces"
		if location != expected {
			t.Errorf("expected redirect to %q, got %q", expected, location)
		}
	})
}
