package chain

// FormatAddress shortens addr to its first start and last end characters,
// joined by "...". Addresses too short to shorten are returned unchanged.
func FormatAddress(addr string, start, end int) string {
	if addr == "" {
		return ""
	}
	if start < 0 {
		start = 0
	}
	if end < 0 {
		end = 0
	}
	if len(addr) <= start+end {
		return addr
	}
	return addr[:start] + "..." + addr[len(addr)-end:]
}
