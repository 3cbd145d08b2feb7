package main

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"medagent/kb"
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Browse the knowledge base documents",
}

var kbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List knowledge base documents with download links",
	RunE:  runKBList,
}

var (
	flagKBBucket string
	flagKBLinks  bool
)

func init() {
	f := kbListCmd.Flags()
	f.StringVar(&flagKBBucket, "bucket", "", "knowledge base S3 bucket")
	f.BoolVar(&flagKBLinks, "links", false, "print presigned download links")
	_ = viper.BindPFlag("kb-bucket", f.Lookup("bucket"))

	kbCmd.AddCommand(kbListCmd)
	rootCmd.AddCommand(kbCmd)
}

func runKBList(cmd *cobra.Command, _ []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Close()

	bucket := viper.GetString("kb-bucket")
	if bucket == "" {
		return fmt.Errorf("bucket is required (flag or RAG_BUCKET)")
	}

	ctx := cmd.Context()
	cfg, err := awsConfig(ctx)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	browser := kb.NewBrowser(client, s3.NewPresignClient(client), bucket, log)

	files := browser.ListFiles(ctx)
	if len(files) == 0 {
		fmt.Println("no knowledge base documents found")
		return nil
	}

	for _, file := range files {
		fmt.Printf("%10d  %s\n", file.Size, file.Key)
		if flagKBLinks {
			url, err := browser.DownloadURL(ctx, file.Key)
			if err != nil {
				return fmt.Errorf("presign %s: %w", file.Key, err)
			}
			fmt.Printf("            %s\n", url)
		}
	}
	return nil
}
