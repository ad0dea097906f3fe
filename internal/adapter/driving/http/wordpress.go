package httphandler

import (
	"context"
	"encoding/json"
	"net/http"
)

// WordPressPosts proxies the site's posts.
func (h *Handler) WordPressPosts(w http.ResponseWriter, r *http.Request) {
	h.proxyWordPress(w, r, "Failed to fetch posts", func(ctx context.Context) (json.RawMessage, error) {
		return h.wordpress.Posts(ctx)
	})
}

// WordPressProducts proxies the site's products.
func (h *Handler) WordPressProducts(w http.ResponseWriter, r *http.Request) {
	h.proxyWordPress(w, r, "Failed to fetch products", func(ctx context.Context) (json.RawMessage, error) {
		return h.wordpress.Products(ctx)
	})
}

// WordPressInfo proxies the site information index.
func (h *Handler) WordPressInfo(w http.ResponseWriter, r *http.Request) {
	h.proxyWordPress(w, r, "Failed to fetch site information", func(ctx context.Context) (json.RawMessage, error) {
		return h.wordpress.SiteInfo(ctx)
	})
}

func (h *Handler) proxyWordPress(
	w http.ResponseWriter,
	r *http.Request,
	label string,
	fetch func(context.Context) (json.RawMessage, error),
) {
	if h.wordpress == nil {
		writeError(w, http.StatusServiceUnavailable, label, "WordPress is not configured; set WPDISPATCH_WORDPRESS_URL")
		return
	}

	body, err := fetch(r.Context())
	if err != nil {
		h.logger.Error(label, "error", err)
		writeError(w, http.StatusInternalServerError, label, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
