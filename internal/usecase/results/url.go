package results

// DefaultViewerBaseURL is the external judgment viewer.
const DefaultViewerBaseURL = "https://thejudgements.in/searchResult?url="

// ResolveDocumentURL links a document to the viewer. An empty source URL means no link.
func ResolveDocumentURL(raw, base string) string {
	if raw == "" {
		return ""
	}
	return base + raw
}
