package source

// FileID identifies a file registered in a FileTable. Zero means unknown.
type FileID uint32
