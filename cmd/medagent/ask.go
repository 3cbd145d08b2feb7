package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	medagent "medagent/agent"
	"medagent/directory"
	"medagent/events"
	"medagent/observability"
	"medagent/session"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the supervisor agent a question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var (
	flagAgentID      string
	flagAgentAliasID string
	flagSessionID    string
	flagUserID       string
	flagTracer       string
	flagFiles        []string
	flagOutDir       string
)

func init() {
	f := askCmd.Flags()
	f.StringVar(&flagAgentID, "agent-id", "", "Bedrock agent id")
	f.StringVar(&flagAgentAliasID, "agent-alias-id", "", "Bedrock agent alias id")
	f.StringVar(&flagSessionID, "session", "", "session id (default: new session)")
	f.StringVar(&flagUserID, "user", "cli", "user id reported to the tracer")
	f.StringVar(&flagTracer, "tracer", observability.ProviderLangfuse, "tracer provider (langfuse, noop)")
	f.StringSliceVar(&flagFiles, "file", nil, "PDF or HTML file to attach (repeatable)")
	f.StringVar(&flagOutDir, "out-dir", ".", "directory for generated images and HTML files")

	_ = viper.BindPFlag("agent-id", f.Lookup("agent-id"))
	_ = viper.BindPFlag("agent-alias-id", f.Lookup("agent-alias-id"))

	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Close()

	agentID := viper.GetString("agent-id")
	aliasID := viper.GetString("agent-alias-id")
	if agentID == "" || aliasID == "" {
		return fmt.Errorf("agent id and alias id are required (flags or BEDROCK_AGENT_ID / BEDROCK_AGENT_ALIAS_ID)")
	}

	ctx := cmd.Context()
	cfg, err := awsConfig(ctx)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}

	tracer := observability.GetTracer(flagTracer, log)
	defer tracer.Shutdown()

	ag := medagent.New(
		bedrockagentruntime.NewFromConfig(cfg),
		agentID, aliasID,
		medagent.WithResolver(directory.New(bedrockagent.NewFromConfig(cfg), log)),
		medagent.WithTracer(tracer),
		medagent.WithLogger(log),
		medagent.WithObserver(events.LogObserver{Logger: log}),
	)

	var sess *session.Manager
	if flagSessionID != "" {
		sess = session.NewManagerWithID(flagSessionID)
	} else {
		sess = session.NewManager()
	}

	docs, err := loadDocuments(flagFiles)
	if err != nil {
		return err
	}

	sess.AddUserMessage(strings.Join(args, " "))
	sess.SetDocuments(docs)

	result, err := ag.Invoke(ctx, medagent.Request{
		SessionID: sess.ID(),
		UserID:    flagUserID,
		Prompt:    sess.Transcript(),
		Documents: sess.Documents(),
	})
	if err != nil {
		return err
	}

	recordAssistantTurn(sess, result)

	fmt.Println(result.Answer)

	if len(result.Citations) > 0 {
		fmt.Println("\nReferences:")
		for _, doc := range result.Citations {
			fmt.Printf("- %s\n", doc.URL)
		}
	}

	if err := saveMedia(result, flagOutDir); err != nil {
		return err
	}

	fmt.Printf("\nSession: %s\n", sess.ID())
	fmt.Printf("Tokens: %d in / %d out (%d total), steps: %s\n",
		result.Stats.InputTokens, result.Stats.OutputTokens,
		result.Stats.TotalTokens(), result.Stats.StepLabel())

	return nil
}

// recordAssistantTurn stores the invocation outcome on the session so a
// later turn's transcript includes the answer and the turn's media stays
// retrievable by trace id.
func recordAssistantTurn(sess *session.Manager, result *medagent.Result) {
	sess.AddAssistantMessage(result.Answer, result.TraceID, result.Images, result.HTMLFiles)
}

// loadDocuments reads the attached files, inferring the media type from
// the extension. Only PDF and HTML are accepted by the agent runtime.
func loadDocuments(paths []string) ([]medagent.InputDocument, error) {
	var docs []medagent.InputDocument
	for _, path := range paths {
		var mediaType string
		switch strings.ToLower(filepath.Ext(path)) {
		case ".pdf":
			mediaType = "application/pdf"
		case ".html":
			mediaType = "text/html"
		default:
			return nil, fmt.Errorf("unsupported file type: %s (only .pdf and .html)", path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		docs = append(docs, medagent.InputDocument{
			Name:      filepath.Base(path),
			MediaType: mediaType,
			Data:      data,
		})
	}
	return docs, nil
}

func saveMedia(result *medagent.Result, outDir string) error {
	for _, img := range result.Images {
		path := filepath.Join(outDir, img.Name)
		if err := os.WriteFile(path, img.Bytes, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Printf("Saved image: %s\n", path)
	}
	for _, html := range result.HTMLFiles {
		path := filepath.Join(outDir, html.Name)
		if err := os.WriteFile(path, []byte(html.Content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Printf("Saved HTML: %s\n", path)
	}
	return nil
}
