/*
Package agentcard produces the registry document for a deployed agent.

An agent's card is its public face in the discovery registry: name,
description, capabilities, skills, tools, prompts. The resolver tries
three sources in order:

	1. AgentCard.json shipped at the root of the agent's upload
	2. the external generator binary, which analyses the extracted
	   source tree with an LLM and prints a card on stdout
	3. a minimal card: empty capability lists, version 1.0.0

Whatever the source, the deployment facts are stamped on top and cannot
be overridden by the upload: id (the agent name), url (the computed
public URL), deployment_type (kubernetes), and the deployed version and
owner_id when known.

Resolve never fails. Registration with a minimal card is strictly better
than no registration, so every error in this chain degrades to the next
source and only logs.

# See Also

  - pkg/backend for the tarball download and the upsert this feeds
  - pkg/archive for the extraction underneath
*/
package agentcard
