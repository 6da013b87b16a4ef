package mcpserver

// CorpusGuide describes the corpus layout and identifier conventions
// for LLM consumers reading governance documents through this server.
const CorpusGuide = `# Muninn Corpus Guide

Muninn serves a read-only corpus of AI governance documents hosted in a
public repository. Documents never change through this server; they are
fetched, cached, and searched.

## Categories

| Category   | Filename prefix | Repository directory |
|------------|-----------------|----------------------|
| risk       | ` + "`ri-`" + `          | ` + "`risks/`" + `            |
| mitigation | ` + "`mi-`" + `          | ` + "`mitigations/`" + `      |
| framework  | ` + "`fw-`" + `          | ` + "`frameworks/`" + `       |

Category arguments accept singular or plural forms (` + "`risk`" + ` or ` + "`risks`" + `).

## Identifiers

A document stored as ` + "`risks/ri-10_supply-chain.md`" + ` has the canonical
identifier ` + "`10_supply-chain`" + `: the filename stem with the category prefix
removed. Tools accept any of these forms and resolve them to the same
document:

- ` + "`10_supply-chain`" + ` (canonical)
- ` + "`ri-10_supply-chain`" + ` or ` + "`ri-10_supply-chain.md`" + ` (full stem / filename)
- ` + "`10`" + ` (bare sequence number; matches exactly, so ` + "`1`" + ` never resolves
  to ` + "`10_supply-chain`" + `)

## Document format

` + "```" + `markdown
---
title: Human-readable title       # used in listings and search
sequence: 10                      # ordering within the category
doc_status: active                # lifecycle marker
---

Body in standard Markdown.
` + "```" + `

Frontmatter is optional. Documents without it, or with malformed YAML,
are still served: the complete original text becomes the body and the
title falls back to the first H1 heading or the filename.

## Outcomes

Every document response carries an ` + "`outcome`" + ` field:

- ` + "`cached`" + ` / ` + "`fetched`" + ` - fresh content, no caveats.
- ` + "`stale`" + ` - the upstream host was unavailable and an expired cached
  copy was served. ` + "`retry_at`" + ` hints when to try again.
- ` + "`metadata_only`" + ` - rate limited with nothing cached; only
  filename-derived fields are present and the body is empty.
- ` + "`parse_degraded`" + ` - the document was fetched but its frontmatter did
  not parse; the body is the complete original text.

## Usage

Prefer ` + "`search_documents`" + ` to locate material: it runs entirely against
local state and costs no upstream requests. Fetch full bodies with
` + "`get_document`" + ` only for the documents you need.
`
