// Package integrations provides the HTTP plumbing shared by registry clients.
//
// [Client] wraps an [net/http.Client] with default headers, a per-request
// timeout, JSON decoding and retries. Status codes map onto sentinel errors:
//
//   - 404 becomes [ErrNotFound] and is never retried
//   - 429 becomes [ErrRateLimited] and is retried, honouring Retry-After
//   - 5xx and transport failures become [ErrNetwork] and are retried
//   - anything else becomes [ErrNetwork] without a retry
//
// Registry-specific clients such as [npm] embed a Client and add the
// registry's addressing and response schema.
//
// [npm]: github.com/matzehuels/deptree/pkg/integrations/npm
package integrations
