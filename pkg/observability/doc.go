/*
Package observability instruments agent source trees before they build.

When injection and tracing are both enabled, each build is preceded by a
staging pass:

	1. Download the agent's uploaded tarball from the backend.
	2. Extract it into scratch space.
	3. Run the external tracing injector over the tree. It edits the
	   Dockerfile and application source in place.
	4. Validate the result: the Dockerfile must still exist and be
	   non-empty. A failing or destructive injector is discarded and
	   the pristine upload takes its place.
	5. Base64-encode every file and publish the tree as one config map,
	   agent-files-<agent>-<timestamp>, which the build job mounts and
	   decodes.

File paths become config map keys by base64-encoding them and escaping
the characters the store rejects (= + /) as _eq_, _plus_ and _slash_.
This survives arbitrary paths, including Python dunder files, and the
build job's decode init container reverses it exactly (pkg/cluster).

Errors out of Stage tell the dispatcher to build from the raw upload
instead. Staging never fails a command; an uninstrumented agent is a
degradation, not an error.

Instrumented agents additionally receive OTEL_* environment variables
(EnvVars) pointing them at the configured collector.

# See Also

  - pkg/cluster for the decode side of the key escaping
  - pkg/archive for tarball extraction
  - pkg/worker for the fallback-on-error call site
*/
package observability
