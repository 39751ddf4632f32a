package obs

import (
	"context"
	"sync"
)

type requestInfoKey struct{}

// RequestInfo carries attributes resolved deep in the handler chain back out
// to the request logger, which only sees the outermost request.
type RequestInfo struct {
	mu    sync.Mutex
	owner string
}

// WithRequestInfo attaches an empty RequestInfo to ctx.
func WithRequestInfo(ctx context.Context) (context.Context, *RequestInfo) {
	info := &RequestInfo{}
	return context.WithValue(ctx, requestInfoKey{}, info), info
}

// RequestInfoFrom returns the RequestInfo attached to ctx, or nil.
func RequestInfoFrom(ctx context.Context) *RequestInfo {
	if ctx == nil {
		return nil
	}
	info, _ := ctx.Value(requestInfoKey{}).(*RequestInfo)
	return info
}

// SetOwner records the authenticated cart owner for the current request.
func SetOwner(ctx context.Context, owner string) {
	if info := RequestInfoFrom(ctx); info != nil {
		info.mu.Lock()
		info.owner = owner
		info.mu.Unlock()
	}
}

// Owner returns the recorded owner id.
func (i *RequestInfo) Owner() string {
	if i == nil {
		return ""
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.owner
}
