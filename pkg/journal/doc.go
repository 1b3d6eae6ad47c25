/*
Package journal gives stream messages at-most-once side effects.

The stream delivers at-least-once: a worker crash between finishing a
command and acknowledging its message redelivers the whole command. The
records the dispatcher creates along the way (BuildRecord,
DeploymentRecord, registry upsert) must not be duplicated on that second
pass, so each message's effects are journalled in a local bbolt file
keyed by stream message ID.

Before creating a record the dispatcher checks the journal: an entry
carrying a build_id means that build record exists, reuse it. After each
effect the entry is updated; on command completion it is marked
Completed. Entries that stay open mark commands that died mid-flight and
are kept until an operator inspects them; completed entries are pruned
by age (cmd/slipway-journal).

Journal I/O is best-effort. A broken journal degrades the worker to
plain at-least-once behavior, it never blocks a command.

# Usage

	j, err := journal.Open(cfg.JournalPath)
	if err != nil {
		return err
	}
	defer j.Close()

	entry, _ := j.Get(msg.ID)
	if entry == nil {
		entry = &journal.Entry{MessageID: msg.ID, Action: string(cmd.Action())}
	}
	if entry.BuildID == "" {
		entry.BuildID = client.CreateBuildRecord(ctx, record)
		_ = j.Put(entry)
	}

# See Also

  - pkg/worker for the guarded effect points
  - pkg/stream for the delivery semantics this compensates
  - cmd/slipway-journal for offline inspection and pruning
*/
package journal
