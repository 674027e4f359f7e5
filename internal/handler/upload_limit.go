package handler

import "strconv"

// formatUploadLimit renders a byte limit for error messages, rounded down
// to the largest whole unit.
func formatUploadLimit(limit int64) string {
	switch {
	case limit <= 0:
		return "0B"
	case limit >= 1<<20:
		return strconv.FormatInt(limit>>20, 10) + "MB"
	case limit >= 1<<10:
		return strconv.FormatInt(limit>>10, 10) + "KB"
	default:
		return strconv.FormatInt(limit, 10) + "B"
	}
}
