/*
Package auth grants deployed agents their runtime permissions.

After an agent registers in the discovery registry, the worker asks the
auth service to provision permissions scoped to the agent's owner:

	POST <auth-service>/auth/agents/<agent_id>/permissions?owner_id=<owner>

Grants are best-effort. A missing owner, a rejection or an unreachable
auth service all come back as false; the deployment still completes and
the outcome is recorded in the upload history as permissions_created.
Agents that failed to register are never offered to this service at all.

# See Also

  - pkg/worker for the register-then-grant ordering
  - pkg/backend for the registry upsert that gates the grant
*/
package auth
