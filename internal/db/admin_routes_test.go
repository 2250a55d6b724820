package db

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAttachAdminRoutes(t *testing.T) {
	db := newTestDB(t)
	mux := http.NewServeMux()
	if err := db.AttachAdminRoutes(mux); err != nil {
		t.Fatalf("AttachAdminRoutes failed: %v", err)
	}

	for _, path := range []string{"/debug/backup", "/debug/tailsql/"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			// Registered routes may answer 403 when tsweb rejects the caller.
			if w.Code == http.StatusNotFound {
				t.Errorf("route %s should be registered, got 404", path)
			}
			if path == "/debug/backup" && w.Code == http.StatusOK && w.Body.Len() == 0 {
				t.Error("backup returned an empty body")
			}
		})
	}
}
