package main

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"medagent/logger"
)

var rootCmd = &cobra.Command{
	Use:   "medagent",
	Short: "Clinical-trials assistant over Bedrock agents",
	Long: `medagent drives a multi-agent clinical-trials assistant running on
Amazon Bedrock Agents. It sends questions to the supervisor agent, consumes
the response stream into a citation-annotated answer, and ships span events
to Langfuse.

It also hosts the agent's tools: the ClinicalTrials.gov registry tools as an
HTTP action group or an MCP stdio server, and a browser for the knowledge
base documents in S3.`,
	SilenceUsage: true,
}

var (
	flagRegion    string
	flagLogLevel  string
	flagLogFormat string
	flagLogFile   string
)

func init() {
	// Local .env beats nothing, real environment beats .env.
	_ = godotenv.Load()

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagRegion, "region", "eu-central-1", "AWS region")
	pf.StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&flagLogFormat, "log-format", "text", "log format (text, json)")
	pf.StringVar(&flagLogFile, "log-file", "", "log file path")

	_ = viper.BindPFlag("region", pf.Lookup("region"))
	_ = viper.BindPFlag("log-level", pf.Lookup("log-level"))
	_ = viper.BindPFlag("log-format", pf.Lookup("log-format"))
	_ = viper.BindPFlag("log-file", pf.Lookup("log-file"))

	_ = viper.BindEnv("region", "BEDROCK_REGION")
	_ = viper.BindEnv("agent-id", "BEDROCK_AGENT_ID")
	_ = viper.BindEnv("agent-alias-id", "BEDROCK_AGENT_ALIAS_ID")
	_ = viper.BindEnv("kb-bucket", "RAG_BUCKET")
}

func newLogger() (logger.Logger, error) {
	cfg := logger.Config{
		Level:  viper.GetString("log-level"),
		Format: viper.GetString("log-format"),
		Output: "stderr",
	}
	if path := viper.GetString("log-file"); path != "" {
		cfg.EnableFile = true
		cfg.FilePath = path
	}
	return logger.New(cfg)
}

func awsConfig(ctx context.Context) (aws.Config, error) {
	return config.LoadDefaultConfig(ctx, config.WithRegion(viper.GetString("region")))
}
