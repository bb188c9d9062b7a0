package responses

import (
	"io"
	"log"
	"mime"
	"net/http"
	"strconv"
)

// WriteFile streams body as an attachment. The caller keeps ownership of body.
func WriteFile(w http.ResponseWriter, name, contentType string, size int64, body io.Reader) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		log.Printf(`{"level":"warn","msg":"file stream interrupted","err":"%v"}`, err)
	}
}
