//go:build darwin

package replicate

// DefaultDirLinks is true on Darwin: HFS+/APFS archives use directory
// hard links, so an unchanged subtree collapses to a single link.
const DefaultDirLinks = true
