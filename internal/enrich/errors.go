package enrich

import "strings"

// classifyError maps known provider failures to messages fit for display on
// the node. Unrecognized errors pass through verbatim.
func classifyError(err error) string {
	if err == nil {
		return ""
	}
	message := err.Error()
	switch {
	case strings.Contains(message, "status 404"):
		return "Content not found. It may have been removed or made private."
	case strings.Contains(message, "status 401"), strings.Contains(message, "status 403"):
		return "The content provider rejected our API key."
	case strings.Contains(message, "status 429"):
		return "The content provider is rate limiting requests. Try again later."
	case strings.Contains(message, "context deadline exceeded"), strings.Contains(message, "Client.Timeout"):
		return "The request to the content provider timed out."
	default:
		return message
	}
}
