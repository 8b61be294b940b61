package mcpserver

// CatalogFormatContract describes the YAML catalog format that LLM consumers
// should follow when drafting threat catalog files.
const CatalogFormatContract = `# Threatmap Catalog Format

Threat catalog files are YAML documents stored in the catalog directory.
Each file may declare any number of threats (with nested mitigations) and
subdomains. Files are re-imported whenever they change.

## Structure

` + "```" + `yaml
threats:
  - id: ADV001                 # REQUIRED, unique across the catalog
    name: Credential stuffing  # REQUIRED
    description: Reuse of leaked passwords against the login form
    severity: High             # REQUIRED: Critical | High | Medium | Low
    domain: Services           # REQUIRED: the architecture domain it targets
    mitigations:
      - id: MIT001             # REQUIRED, unique across the catalog
        name: MFA              # REQUIRED
        status: Planned        # REQUIRED: Planned | In Progress | Implemented | Verified
        domain: Services       # REQUIRED
subdomains:
  - id: SD01                   # optional, derived from parent_domain and name
    parent_domain: Services    # REQUIRED
    name: Customer portal      # REQUIRED
` + "```" + `

## Rules

1. **Ids are stable.** Saving an existing id replaces the record.
2. **Mitigations belong to exactly one threat**, the one they are nested under.
3. **Removing a threat or mitigation from a file deletes it** on the next
   import, unless another file still declares it. Deleting the whole file
   does the same.
4. **Unknown keys are rejected.** A file that fails validation is skipped as
   a whole and the previous import stays in place.
5. **File names** end with ` + "`" + `.yaml` + "`" + ` or ` + "`" + `.yml` + "`" + `; names starting with a dot are ignored.
6. **Encoding** is UTF-8.

## Tools

- ` + "`" + `save_threat` + "`" + ` / ` + "`" + `save_mitigation` + "`" + ` write records directly, bypassing the catalog files.
- ` + "`" + `get_analysis` + "`" + ` returns coverage of the current selection.
`
