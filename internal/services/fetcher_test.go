package services_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"race-photos-backend/internal/services"
)

func TestHTTPImageFetcher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.jpg" {
			http.Error(w, "expired", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg"))
	}))
	defer server.Close()

	f := services.NewHTTPImageFetcher(5 * time.Second)

	data, err := f.Fetch(context.Background(), server.URL+"/photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), data)

	_, err = f.Fetch(context.Background(), server.URL+"/missing.jpg")
	assert.Error(t, err)
}
