package main

import (
	"testing"

	medagent "medagent/agent"
	"medagent/session"
)

func TestRecordAssistantTurn(t *testing.T) {
	sess := session.NewManagerWithID("s-1")
	sess.AddUserMessage("any running melanoma trials?")

	result := &medagent.Result{
		TraceID: "trace-42",
		Answer:  "Two trials are recruiting.",
		Images: []medagent.MediaFile{
			{Name: "chart.png", MimeType: "image/png", Bytes: []byte("png")},
		},
		HTMLFiles: []medagent.HTMLFile{
			{Name: "summary.html", Content: "<p>ok</p>"},
		},
	}

	recordAssistantTurn(sess, result)

	msgs := sess.Messages()
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	last := msgs[1]
	if last.Role != session.RoleAssistant {
		t.Errorf("role = %q", last.Role)
	}
	if last.Content != result.Answer {
		t.Errorf("content = %q", last.Content)
	}
	if last.TraceID != "trace-42" {
		t.Errorf("trace id = %q", last.TraceID)
	}

	if imgs := sess.MessageImages("trace-42"); len(imgs) != 1 || imgs[0].Name != "chart.png" {
		t.Errorf("images = %v", imgs)
	}
	if html := sess.MessageHTML("trace-42"); len(html) != 1 || html[0].Name != "summary.html" {
		t.Errorf("html = %v", html)
	}
}

func TestLoadDocumentsRejectsUnknownType(t *testing.T) {
	if _, err := loadDocuments([]string{"notes.txt"}); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}
