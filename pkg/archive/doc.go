/*
Package archive unpacks and repacks uploaded agent source trees.

Uploads arrive from the backend as gzip-compressed tarballs. The
observability stager extracts one into a scratch directory, lets the
tracing injector rewrite it, and walks the result back into the config
map the build job consumes. The agent card resolver peeks into the same
tarballs looking for an AgentCard.json.

Extraction is defensive about its input: entries that would escape the
target directory are rejected and single files are capped, since the
tarball contents are user uploads.

# See Also

  - pkg/observability for the staging flow
  - pkg/agentcard for card discovery inside uploads
*/
package archive
