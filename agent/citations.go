package medagent

import (
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
)

// The model wraps knowledge-base attributions in <sources> markers that are
// not meant for end users. They are stripped before citation spans are
// applied, and the span offsets are rewritten to account for the removal.
var numberedSourcesPattern = regexp.MustCompile(`\n\n<sources>\n\d+\n</sources>\n\n`)

const (
	redactedSourcesMarker = "<sources><REDACTED></sources>"
	emptySourcesMarker    = "<sources></sources>"
)

// stripSourceMarkers removes all source-marker variants from chunk text.
func stripSourceMarkers(text string) string {
	text = numberedSourcesPattern.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, redactedSourcesMarker, "")
	text = strings.ReplaceAll(text, emptySourcesMarker, "")
	return text
}

// CitedDocument is one knowledge-base reference surfaced to the caller.
type CitedDocument struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// annotateCitations rewrites a chunk's text so each cited span is followed
// by its source URL in brackets. Span offsets arrive relative to the raw
// chunk text; after marker stripping each citation's span shifts left by
// its ordinal, so the start is pulled back by i+1 and the end by i+2 less
// a fixed four-byte correction.
//
// A citation whose references carry no resolvable URL truncates the
// annotated answer at that citation's start; everything accumulated so far
// is returned. The list of references seen up to that point is returned
// alongside the text either way.
func annotateCitations(rawText string, citations []types.Citation) (string, []CitedDocument) {
	cleaned := stripSourceMarkers(rawText)
	if len(citations) == 0 {
		return cleaned, nil
	}

	var (
		b    strings.Builder
		docs []CitedDocument
	)
	for i, citation := range citations {
		span := citationSpan(citation)
		if span == nil {
			continue
		}
		start := clamp(int(*span.Start)-(i+1), len(cleaned))
		end := clamp(int(*span.End)-(i+2)+4, len(cleaned))
		if end < start {
			end = start
		}

		url := referenceURL(citation.RetrievedReferences)
		if url == "" {
			if i == 0 {
				return cleaned[:start], docs
			}
			return b.String(), docs
		}

		citedText := cleaned[start:end]
		if i == 0 {
			b.WriteString(cleaned[:start])
		}
		b.WriteString(citedText)
		b.WriteString(" [")
		b.WriteString(url)
		b.WriteString("] ")

		docs = append(docs, CitedDocument{URL: url, Text: citedText})
	}
	return b.String(), docs
}

func citationSpan(c types.Citation) *types.Span {
	if c.GeneratedResponsePart == nil || c.GeneratedResponsePart.TextResponsePart == nil {
		return nil
	}
	span := c.GeneratedResponsePart.TextResponsePart.Span
	if span == nil || span.Start == nil || span.End == nil {
		return nil
	}
	return span
}

// referenceURL picks the first reference carrying an S3 location URI.
func referenceURL(refs []types.RetrievedReference) string {
	for _, ref := range refs {
		if ref.Location != nil && ref.Location.S3Location != nil && ref.Location.S3Location.Uri != nil {
			return *ref.Location.S3Location.Uri
		}
	}
	return ""
}

func clamp(n, max int) int {
	if n < 0 {
		return 0
	}
	if n > max {
		return max
	}
	return n
}
