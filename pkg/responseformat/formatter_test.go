package responseformat

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type payload struct {
	Name  string   `json:"name"`
	Value *float64 `json:"value"`
}

func TestWriteResponseFormats(t *testing.T) {
	v := 4600.0
	data := payload{Name: "khumbu", Value: &v}
	f := NewFormatter()

	tests := []struct {
		name        string
		url         string
		contentType string
		decode      func([]byte, any) error
	}{
		{"json by default", "/x", "application/json", json.Unmarshal},
		{"unknown format falls back to json", "/x?format=xml", "application/json", json.Unmarshal},
		{"msgpack on request", "/x?format=msgpack", "application/x-msgpack", func(b []byte, out any) error {
			dec := msgpack.NewDecoder(bytes.NewReader(b))
			dec.SetCustomStructTag("json")
			return dec.Decode(out)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			require.NoError(t, f.WriteResponse(rec, req, data, map[string]string{"Cache-Control": "max-age=60"}))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.contentType, rec.Header().Get("Content-Type"))
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "max-age=60", rec.Header().Get("Cache-Control"))

			var got payload
			require.NoError(t, tt.decode(rec.Body.Bytes(), &got))
			assert.Equal(t, data.Name, got.Name)
			require.NotNil(t, got.Value)
			assert.Equal(t, v, *got.Value)
		})
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	require.NoError(t, NewFormatter().WriteError(rec, req, http.StatusNotFound, "aoi not found", "khumbu"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var got ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, ErrorResponse{Error: "aoi not found", Message: "khumbu"}, got)
}
