package mcpserver

// PostFormatContract describes the canonical post structure that LLM
// consumers should follow when creating drafts.
const PostFormatContract = `# Quill Post Format Contract

Every draft created through the MCP tools MUST follow this structure.

## Fields

- **title** (required): plain text, at most 200 characters after trimming.
  It is the headline shown in every listing.
- **description** (required): a short teaser, at most 1000 characters after
  trimming. Shown on the public index instead of the body.
- **content** (required): the full post body in Markdown. No length limit.
- **tags** (optional): comma-separated plain words, e.g.
  ` + "`" + `go, web-development, tutorial` + "`" + `. Order is preserved; empty segments
  are dropped; casing is kept as written.

## Rules

1. Drafts created over MCP are ALWAYS unpublished. A human admin reviews and
   publishes them through the admin panel.
2. Do not embed images as data URIs in the content; reference uploaded
   assets by their ` + "`" + `/uploads/...` + "`" + ` path or an absolute URL.
3. Write the description as standalone text; it must make sense without the
   body.
4. Encoding is UTF-8.

## Example

` + "```" + `json
{
  "title": "Profiling Go services in production",
  "description": "A practical walkthrough of pprof, flame graphs, and the traps of sampling under load.",
  "content": "## Why profile in production\n\nSynthetic benchmarks lie...",
  "tags": "go, performance, pprof"
}
` + "```" + `
`
