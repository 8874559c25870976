package adminserver

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"smiley-admin/storage"
)

// proxyGet streams a stored object. It is the target of temporary URLs issued by
// the memory backend, which carry an "expires" unix timestamp.
func proxyGet(reader storage.Reader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			http.Error(w, "object access not supported by this storage backend", http.StatusNotImplemented)
			return
		}
		objectKey := r.PathValue("key")
		if objectKey == "" {
			http.Error(w, "object key required", http.StatusBadRequest)
			return
		}
		if exp := r.URL.Query().Get("expires"); exp != "" {
			ts, err := strconv.ParseInt(exp, 10, 64)
			if err != nil || time.Now().Unix() > ts {
				http.Error(w, "link expired", http.StatusForbidden)
				return
			}
		}

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		obj, err := reader.Get(ctx, objectKey)
		if err != nil {
			log.Warn().Err(err).Str("key", objectKey).Msg("get object failed")
			if statusFor(err) == http.StatusNotFound {
				http.Error(w, "object not found", http.StatusNotFound)
				return
			}
			http.Error(w, "failed to get object", http.StatusInternalServerError)
			return
		}

		if obj.ContentType != "" {
			w.Header().Set("Content-Type", obj.ContentType)
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(obj.Data)))
		w.Header().Set("Cache-Control", "private, max-age=300")
		if _, err := w.Write(obj.Data); err != nil {
			log.Debug().Err(err).Str("key", objectKey).Msg("stream object")
		}
	}
}

// debugList lists stored keys under ?prefix=.
func debugList(lister storage.Lister, bucket string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if lister == nil {
			http.Error(w, "listing not supported by this storage backend", http.StatusNotImplemented)
			return
		}
		prefix := r.URL.Query().Get("prefix")

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		keys, err := lister.List(ctx, prefix)
		if err != nil {
			log.Error().Err(err).Str("prefix", prefix).Msg("list objects failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if keys == nil {
			keys = []string{}
		}
		log.Debug().Str("prefix", prefix).Int("count", len(keys)).Str("bucket", bucket).Msg("listed objects")
		respondJSON(w, http.StatusOK, map[string]any{"bucket": bucket, "objects": keys})
	}
}
