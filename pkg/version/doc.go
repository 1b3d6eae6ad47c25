/*
Package version resolves semantic versions and reaps old deployments.

Rollback never rebuilds: it must deploy the exact image that a version
produced when it was first built. The authoritative link is the version
mapping recorded on every BuildRecord; ResolveImageTag queries it and
only synthesises a v<semver> tag when no mapping exists, which covers
agents deployed before mappings were introduced.

CleanupOldDeployments is the single reap policy shared by update,
rollback and rebuild:

	1. List the agent's deployments.
	2. If a version is given, keep only names containing -v<version>-
	   or ending in -<version>.
	3. Sort lexicographically; the -<timestamp> suffix makes this
	   chronological.
	4. Retain the newest keep_latest, delete the rest.
	5. Count, log, never raise.

Rollback reaps the failed current version with keep_latest 0 (everything
of that version goes). Rebuild reaps with keep_latest 1 so the instance
it just deployed survives.

PreviousActive is the operator-side fallback for rollbacks that name no
target: the newest semver below the current one that was ever active or
archived, never a failed or in-flight build.

# See Also

  - pkg/worker for the flows invoking resolution and reaping
  - pkg/cluster for the list/delete primitives underneath
*/
package version
