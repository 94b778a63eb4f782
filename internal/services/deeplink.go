package services

import "strings"

// DeepLinkEndpoints holds the WhatsApp endpoint bases links are built against.
type DeepLinkEndpoints struct {
	Web    string
	Mobile string
}

// BuildDeepLink assembles a send link against the given endpoint base. The
// text must already be link-safe.
func BuildDeepLink(endpoint, phone, encodedText string) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return ""
	}
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	return endpoint + "send?phone=" + strings.TrimSpace(phone) + "&text=" + encodedText
}
