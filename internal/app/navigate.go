package app

import (
	"context"
	"fmt"

	"github.com/parkline/parkpos/internal/router"
)

// RedirectedError reports that the guards sent the operator somewhere
// other than the requested view.
type RedirectedError struct {
	Target string
	Result router.Result
}

func (e *RedirectedError) Error() string {
	return fmt.Sprintf("cannot open %s: redirected to %s", e.Target, e.Result.URL)
}

// Enter navigates to target and succeeds only if the target route itself
// was reached. The returned context is the route scope; it is cancelled
// once the router moves elsewhere.
func (a *App) Enter(ctx context.Context, target string) (context.Context, error) {
	res, err := a.Router.Navigate(ctx, target)
	if err != nil {
		return nil, err
	}
	if res.Redirected() {
		return nil, &RedirectedError{Target: target, Result: res}
	}
	return mergeScope(ctx, a.Router.Scope()), nil
}

// mergeScope returns a context carrying ctx's values that is cancelled
// when either ctx or scope is.
func mergeScope(ctx, scope context.Context) context.Context {
	merged, cancel := context.WithCancelCause(ctx)
	stop := context.AfterFunc(scope, func() { cancel(context.Cause(scope)) })
	context.AfterFunc(merged, func() { stop() })
	return merged
}
