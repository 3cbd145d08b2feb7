package medagent

import (
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"

	"medagent/logger"
)

// MediaFile is a binary artifact produced by the agent, typically a chart
// rendered by the code interpreter.
type MediaFile struct {
	Name     string
	MimeType string
	Bytes    []byte
}

// HTMLFile is an HTML artifact produced by the agent, decoded to text.
type HTMLFile struct {
	Name    string
	Content string
}

// mediaCollector accumulates file events across a stream. Files are keyed
// by name with last-write-wins so a re-rendered chart replaces its earlier
// version, while the final ordering preserves first appearance.
type mediaCollector struct {
	imageOrder []string
	images     map[string]MediaFile

	htmlOrder []string
	html      map[string]HTMLFile

	logger logger.Logger
}

func newMediaCollector(log logger.Logger) *mediaCollector {
	if log == nil {
		log = logger.NewNoop()
	}
	return &mediaCollector{
		images: make(map[string]MediaFile),
		html:   make(map[string]HTMLFile),
		logger: log,
	}
}

// Add classifies one batch of output files into images and HTML documents.
// Files that are neither are dropped; an HTML payload that is not valid
// UTF-8 drops that single file with a warning.
func (c *mediaCollector) Add(files []types.OutputFile) {
	for _, f := range files {
		name := ""
		if f.Name != nil {
			name = *f.Name
		}
		mimeType := ""
		if f.Type != nil {
			mimeType = *f.Type
		}

		switch {
		case strings.HasPrefix(mimeType, "image/"):
			if _, seen := c.images[name]; !seen {
				c.imageOrder = append(c.imageOrder, name)
			}
			c.images[name] = MediaFile{Name: name, MimeType: mimeType, Bytes: f.Bytes}

		case mimeType == "text/html" || strings.HasSuffix(name, ".html"):
			if !utf8.Valid(f.Bytes) {
				c.logger.Warn("dropping html file with invalid utf-8",
					logger.String("file_name", name))
				continue
			}
			if _, seen := c.html[name]; !seen {
				c.htmlOrder = append(c.htmlOrder, name)
			}
			c.html[name] = HTMLFile{Name: name, Content: string(f.Bytes)}
		}
	}
}

// Images returns the collected images in first-appearance order.
func (c *mediaCollector) Images() []MediaFile {
	out := make([]MediaFile, 0, len(c.imageOrder))
	for _, name := range c.imageOrder {
		out = append(out, c.images[name])
	}
	return out
}

// HTMLFiles returns the collected HTML documents in first-appearance order.
func (c *mediaCollector) HTMLFiles() []HTMLFile {
	out := make([]HTMLFile, 0, len(c.htmlOrder))
	for _, name := range c.htmlOrder {
		out = append(out, c.html[name])
	}
	return out
}
