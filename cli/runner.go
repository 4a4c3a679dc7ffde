// Command execution for CLI commands.
//
// Information Hiding:
// - Command dispatch logic hidden
// - Pipeline/stream setup hidden
// - Output formatting hidden

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/richinex/radiant/diagnosis"
	"github.com/richinex/radiant/llm"
	"github.com/richinex/radiant/model"
	"github.com/richinex/radiant/stream"
)

// DiagnoseOptions holds the diagnose command's inputs.
type DiagnoseOptions struct {
	MediaPaths        []string
	Modality          string
	RegionOfInterest  string
	StructuredImaging bool
	PatientID         string
	AudioOut          string
	Save              bool
}

// Diagnose runs the full diagnostic protocol on a study and prints the
// formatted result. With Save set, the result is stored as a pending
// diagnosis record.
func Diagnose(ctx context.Context, app *App, opts DiagnoseOptions) error {
	req := model.ReasoningRequest{
		Modality:          model.Modality(opts.Modality),
		RegionOfInterest:  opts.RegionOfInterest,
		StructuredImaging: opts.StructuredImaging,
		PatientID:         opts.PatientID,
	}
	for _, path := range opts.MediaPaths {
		req.Media = append(req.Media, model.MediaRef{
			Handle:   path,
			MimeType: mimeForPath(path),
		})
	}

	spec, err := app.Settings.CallSpec(model.DefaultSchema())
	if err != nil {
		return err
	}

	out := make(chan stream.Chunk, 4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for chunk := range out {
			printChunk(chunk, opts.AudioOut)
		}
	}()

	result, err := app.Aggregator.Diagnose(ctx, req, spec, out)
	<-done
	if err != nil {
		return err
	}

	if result.Degraded {
		fmt.Println("\n(result is degraded: no model produced a valid diagnosis)")
	}

	if opts.Save && !result.Degraded {
		rec, err := app.Diagnoses.Create(ctx, opts.PatientID, result)
		if err != nil {
			return err
		}
		fmt.Printf("\nSaved as diagnosis %s (status: %s)\n", rec.ID, rec.Status)
	}

	return nil
}

// Ask answers a single clinical question, streaming the reply.
func Ask(ctx context.Context, app *App, prompt, audioOut string) error {
	spec, err := app.Settings.CallSpec(model.ChatSchema())
	if err != nil {
		return err
	}

	out := make(chan stream.Chunk, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for chunk := range out {
			printChunk(chunk, audioOut)
		}
	}()

	app.Aggregator.Chat(ctx, spec, prompt, out)
	<-done
	fmt.Println()
	return nil
}

// Chat starts an interactive chat session with persisted history.
func Chat(ctx context.Context, app *App, sessionID string) error {
	if sessionID == "" {
		sessionID = "default"
	}

	history, err := app.Store.LoadConversation(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	if len(history) > 0 {
		fmt.Printf("Resuming session %q (%d messages)\n", sessionID, len(history))
	}

	spec, err := app.Settings.CallSpec(model.ChatSchema())
	if err != nil {
		return err
	}

	fmt.Println("Type your question ('exit' to quit):")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		history = append(history, llm.UserMessage(input))

		chunks := make(chan string, 16)
		printDone := make(chan struct{})
		go func() {
			defer close(printDone)
			for chunk := range chunks {
				fmt.Print(chunk)
			}
		}()

		reply, streamErr := app.Invoker.InvokeStream(ctx, spec, history, chunks)
		close(chunks)
		<-printDone
		fmt.Println()

		if streamErr != nil {
			fmt.Fprintf(os.Stderr, "stream failed: %v\n", streamErr)
			if reply == "" {
				// Nothing was said; drop the failed turn.
				history = history[:len(history)-1]
				continue
			}
		}

		history = append(history, llm.AssistantMessage(reply))
		if err := app.Store.SaveConversation(ctx, sessionID, history); err != nil {
			fmt.Fprintf(os.Stderr, "failed to save history: %v\n", err)
		}
	}

	return scanner.Err()
}

// Review transitions a diagnosis record's status.
func Review(ctx context.Context, app *App, id, status, reviewer string) error {
	err := app.Diagnoses.SetStatus(ctx, id, status, reviewer)
	switch {
	case err == nil:
		fmt.Printf("Diagnosis %s is now %s\n", id, status)
		return nil
	case errors.Is(err, diagnosis.ErrInvalidStatus):
		return fmt.Errorf("%q is not a valid status (pending, reviewed, approved, rejected)", status)
	case errors.Is(err, diagnosis.ErrNotFound):
		return fmt.Errorf("no diagnosis with id %q", id)
	case errors.Is(err, diagnosis.ErrTerminalStatus):
		return fmt.Errorf("diagnosis %q has reached a terminal status and cannot change", id)
	default:
		return err
	}
}

// Show prints one diagnosis record.
func Show(ctx context.Context, app *App, id string) error {
	rec, err := app.Diagnoses.Get(ctx, id)
	if err != nil {
		return err
	}
	printRecord(rec)
	return nil
}

// History lists a patient's diagnosis records, newest first.
func History(ctx context.Context, app *App, patientID string) error {
	records, err := app.Diagnoses.ListByPatient(ctx, patientID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Printf("No diagnoses for patient %q\n", patientID)
		return nil
	}
	for _, rec := range records {
		fmt.Printf("%s  %-9s  %s  %s\n",
			rec.CreatedAt.Format(time.RFC3339), rec.Status, rec.ID, rec.Result.PrimarySuggestion)
	}
	return nil
}

// Stats prints diagnosis counts per status.
func Stats(ctx context.Context, app *App) error {
	stats, err := app.Diagnoses.Stats(ctx)
	if err != nil {
		return err
	}
	for _, status := range []model.Status{
		model.StatusPending, model.StatusReviewed, model.StatusApproved, model.StatusRejected,
	} {
		fmt.Printf("%-9s %d\n", status, stats[status])
	}
	return nil
}

// Sources prints the registered knowledge tools.
func Sources(app *App) error {
	fmt.Println(app.Registry.Description())
	return nil
}

// AddCase stores a prior case for precedent lookups.
func AddCase(ctx context.Context, app *App, patientID, finding, diagnosed string) error {
	rec := model.CaseRecord{
		ID:        uuid.NewString(),
		PatientID: patientID,
		Finding:   finding,
		Diagnosis: diagnosed,
		CreatedAt: time.Now().UTC(),
	}
	if err := app.Store.SaveCase(ctx, rec); err != nil {
		return err
	}
	fmt.Printf("Stored case %s\n", rec.ID)
	return nil
}

func printChunk(chunk stream.Chunk, audioOut string) {
	if chunk.Text != "" {
		fmt.Print(chunk.Text)
	}
	if chunk.Err != "" {
		fmt.Fprintf(os.Stderr, "\nstream error: %s\n", chunk.Err)
	}
	if chunk.Audio != nil && audioOut != "" {
		if err := os.WriteFile(audioOut, chunk.Audio.Data, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "\nfailed to write audio: %v\n", err)
		} else {
			fmt.Printf("\nAudio written to %s\n", audioOut)
		}
	}
}

func printRecord(rec model.DiagnosisRecord) {
	fmt.Printf("ID:        %s\n", rec.ID)
	fmt.Printf("Patient:   %s\n", rec.PatientID)
	fmt.Printf("Status:    %s\n", rec.Status)
	if rec.Reviewer != "" {
		fmt.Printf("Reviewer:  %s\n", rec.Reviewer)
	}
	fmt.Printf("Created:   %s\n", rec.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Diagnosis: %s\n", rec.Result.PrimarySuggestion)
	for _, f := range rec.Result.SecondaryFindings {
		fmt.Printf("  - %s\n", f)
	}
	if rec.Result.Trace.Justification != "" {
		fmt.Printf("Justification: %s\n", rec.Result.Trace.Justification)
	}
	for _, inv := range rec.Result.Lookups {
		fmt.Printf("  [%d] %s(%q)\n", inv.Order+1, inv.Tool, inv.Term)
	}
}

func mimeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".dcm", ".dicom":
		return "application/dicom"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".mp4":
		return "video/mp4"
	case ".nii", ".gz":
		return "application/octet-stream"
	default:
		return "application/octet-stream"
	}
}
