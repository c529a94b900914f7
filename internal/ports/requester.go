package ports

import "context"

// Requester is the subset of the request gateway the session store needs.
type Requester interface {
	Get(ctx context.Context, path string) (any, error)
	Post(ctx context.Context, path string, body any) (any, error)
}
