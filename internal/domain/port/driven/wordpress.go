package driven

import (
	"context"
	"encoding/json"
)

// WordPressClient defines the driven port for the WordPress REST API.
// Responses are passed through untouched.
type WordPressClient interface {
	Posts(ctx context.Context) (json.RawMessage, error)
	Products(ctx context.Context) (json.RawMessage, error)
	SiteInfo(ctx context.Context) (json.RawMessage, error)
}
