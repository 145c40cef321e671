package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/uploadrelay/uploadrelay/internal/pipeline"
)

func newSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <image>...",
		Short: "Upload status images and notify the customer",
		Long: `Upload one or more images into the order's status folder on the document
library and email them to the customer on file for the order.

The folder path is <customer_root>/<STATUS>/<order-id>; missing folders are
created. Files are renamed to <STATUS>_<random-id> so repeat runs never
collide. Images larger than uploads.max_image_size are recompressed before
sending.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSend,
	}

	cmd.Flags().StringP("project", "p", "", "order / project ID (required)")
	cmd.Flags().StringP("status", "s", "", "new status: PRODUCTION, SHIPPED, PICKUP, or INSTALLATION (required)")
	cmd.Flags().Bool("no-upload", false, "skip the document library upload")
	cmd.Flags().Bool("no-email", false, "skip the customer email")

	_ = cmd.MarkFlagRequired("project") //nolint:errcheck // flag exists
	_ = cmd.MarkFlagRequired("status")  //nolint:errcheck // flag exists

	return cmd
}

func runSend(cmd *cobra.Command, args []string) error {
	logger := buildLogger()
	ctx := cmd.Context()

	projectID, _ := cmd.Flags().GetString("project") //nolint:errcheck // flag exists
	status, _ := cmd.Flags().GetString("status")     //nolint:errcheck // flag exists
	noUpload, _ := cmd.Flags().GetBool("no-upload")  //nolint:errcheck // flag exists
	noEmail, _ := cmd.Flags().GetBool("no-email")    //nolint:errcheck // flag exists

	store, err := openStore(logger)
	if err != nil {
		return err
	}
	defer store.Close()

	p, err := newPipeline(ctx, store, logger, noUpload, noEmail)
	if err != nil {
		return err
	}

	summary, err := p.Run(ctx, pipeline.Request{
		ProjectID: projectID,
		Status:    status,
		Files:     args,
	})
	if err != nil {
		return err
	}

	if flagJSON {
		return json.NewEncoder(os.Stdout).Encode(summaryJSON(summary))
	}

	printSummary(summary, noUpload, noEmail)

	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", summary.Failed, summary.Failed+summary.Uploaded)
	}

	if summary.EmailErr != nil {
		return fmt.Errorf("email delivery failed: %w", summary.EmailErr)
	}

	return nil
}

// sendOutput is the machine-readable form of a run summary. Errors are
// flattened to strings so they survive JSON encoding.
type sendOutput struct {
	ProjectID  string       `json:"project_id"`
	Status     string       `json:"status"`
	FolderPath string       `json:"folder_path"`
	Uploaded   int          `json:"uploaded"`
	Failed     int          `json:"failed"`
	Files      []fileOutput `json:"files,omitempty"`
	Recipient  string       `json:"recipient,omitempty"`
	EmailSent  bool         `json:"email_sent"`
	EmailError string       `json:"email_error,omitempty"`
}

type fileOutput struct {
	Filename string `json:"filename"`
	URL      string `json:"url,omitempty"`
	Error    string `json:"error,omitempty"`
}

func summaryJSON(s *pipeline.Summary) sendOutput {
	out := sendOutput{
		ProjectID:  s.ProjectID,
		Status:     s.Status,
		FolderPath: s.FolderPath,
		Uploaded:   s.Uploaded,
		Failed:     s.Failed,
		Recipient:  s.Recipient,
		EmailSent:  s.EmailSent,
	}

	if s.EmailErr != nil {
		out.EmailError = s.EmailErr.Error()
	}

	for _, r := range s.Results {
		f := fileOutput{Filename: r.Filename, URL: r.URL}
		if r.Err != nil {
			f.Error = r.Err.Error()
		}

		out.Files = append(out.Files, f)
	}

	return out
}

func printSummary(s *pipeline.Summary, noUpload, noEmail bool) {
	if !noUpload {
		statusf(flagQuiet, "Uploaded %d of %d files to %s\n",
			s.Uploaded, s.Uploaded+s.Failed, s.FolderPath)

		for _, r := range s.Results {
			if r.Err != nil {
				statusf(flagQuiet, "  failed: %s: %v\n", r.Filename, r.Err)
			}
		}
	}

	if !noEmail {
		if s.EmailSent {
			statusf(flagQuiet, "Emailed %s\n", s.Recipient)
		} else if s.EmailErr != nil {
			statusf(flagQuiet, "Email to %s failed: %v\n", s.Recipient, s.EmailErr)
		}
	}
}
