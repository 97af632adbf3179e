//go:build !darwin

package replicate

// DefaultDirLinks is false where the filesystem refuses link(2) on
// directories: matched directories are recreated and their children
// linked individually instead.
const DefaultDirLinks = false
