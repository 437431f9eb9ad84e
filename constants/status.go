package constants

// FileStatus is the canonical status for rows in processed_files.
type FileStatus string

// Stable values (store these exact strings in DB).
const (
	FileStatusSuccess FileStatus = "success" // all chunks extracted cleanly
	FileStatusPartial FileStatus = "partial" // some chunks errored but records were stored
	FileStatusFailed  FileStatus = "failed"  // no usable output at all
)
