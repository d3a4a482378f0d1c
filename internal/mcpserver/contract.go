package mcpserver

// EditorProtocolContract describes the HTTP event protocol and the timing
// contract that editor plugins integrating with the ftmemo daemon must follow.
const EditorProtocolContract = `# ftmemo Editor Integration Protocol

The daemon listens on localhost (default port 7437). All endpoints live under
` + "`/api`" + ` and optionally require ` + "`Authorization: Bearer <token>`" + `.

## Events

### Buffer opened

` + "```" + `
POST /api/events/open
{"path": "/abs/or/rel/path", "filetype": "<current filetype or empty>"}
-> {"restored": true, "filetype": "python"}   # apply this filetype
-> {"restored": false}                        # nothing stored; do nothing
` + "```" + `

**Timing contract (mandatory):** send this event only AFTER the editor's own
automatic filetype detection for the buffer has completed, e.g. from a
deferred callback following the buffer-open autocommand. Sending it earlier
lets the host's detection overwrite the restored value.

When ` + "`restored`" + ` is true, apply the returned filetype to the buffer. The echo
event your editor then fires back is recognized and never misclassified as a
manual change.

### Filetype changed

` + "```" + `
POST /api/events/filetype
{"path": "...", "filetype": "rust"}
-> {"manual": true|false}
` + "```" + `

Send one event per observed filetype/option change, again with a minimal
deferral so the fully committed option value is reported, not a transient one.
Do not send events with an empty filetype; they are ignored.

A ` + "`500`" + ` response means the mapping could not be written to disk; surface it
to the user. The in-memory state is kept, so the next change retries the save.

## Maintenance

- ` + "`GET /api/mappings`" + ` — list all stored mappings.
- ` + "`DELETE /api/mappings?path=...`" + ` — clear one mapping; on
  ` + "`{\"reset\": true}`" + ` set the buffer's filetype to empty.
- ` + "`POST /api/cleanup`" + ` — drop mappings whose files no longer exist.
- ` + "`GET /api/history?path=&limit=`" + ` — recent mapping changes.
- ` + "`GET /api/events`" + ` — SSE stream (` + "`mapping.saved`" + `, ` + "`mapping.restored`" + `,
  ` + "`mapping.cleared`" + `, ` + "`mapping.removed`" + `, throttled ` + "`mappings.updated`" + `);
  attach to keep multiple editor instances in sync.

## Semantics

Paths are canonicalized server-side (absolute, symlinks resolved), so the same
physical file maps to the same entry no matter how it was opened. Unnamed
buffers and nonexistent targets are silently ignored. The daemon decides
whether a change was manual by comparing against the last filetype it observed
for that path; the first sighting of a path is never treated as manual.
`
