// Package httputil provides retry helpers shared by the registry clients.
//
// [Retry] re-runs an operation only when it fails with a [RetryableError],
// doubling the delay between attempts. Clients wrap network errors and 5xx
// responses as retryable and leave 4xx responses alone:
//
//	err := httputil.RetryWithBackoff(ctx, func() error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return &httputil.RetryableError{Err: err}
//	    }
//	    ...
//	})
//
// A 429 response can carry the registry's Retry-After hint via
// [RetryableError.After]; see [RetryAfter].
package httputil
