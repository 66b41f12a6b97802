// Package variable defines the data model shared by the resolver, the
// expander, the reacquisition flow and template substitution. A Variable is a
// named, ordered list of entries; each Entry is a tagged union over text, file
// and directory kinds. Consumers switch over Entry.Kind exhaustively and treat
// an unknown kind as ErrUnknownKind. Resolution mutates entries in place:
// file values are replaced with wrapped content or a diagnostic, and Metadata
// is stamped with the outcome. Live capability handles never appear here;
// entries only carry the registry id plus descriptive metadata (path, size,
// modification time) so a lost handle can be reacquired.
package variable
