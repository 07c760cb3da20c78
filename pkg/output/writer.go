package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/perarneng/gmail2s3/pkg/interfaces"
)

var (
	invalidFilenameChars = regexp.MustCompile(`[^\p{L}\p{N}\s._-]`)
	whitespaceRun        = regexp.MustCompile(`\s+`)
	dashRun              = regexp.MustCompile(`-+`)
	dateComment          = regexp.MustCompile(`\s*\([^)]+\)\s*$`)
)

type FileWriter struct {
	root   string
	logger interfaces.Logger
}

func NewFileWriter(root string, logger interfaces.Logger) interfaces.OutputWriter {
	return &FileWriter{
		root:   filepath.Clean(root),
		logger: logger,
	}
}

func (w *FileWriter) Root() string { return w.root }

// ValidateOutputDir creates the scratch root if needed and checks it is a directory.
func (w *FileWriter) ValidateOutputDir(outputDir string) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create scratch directory %s: %w", outputDir, err)
	}
	info, err := os.Stat(outputDir)
	if err != nil {
		return fmt.Errorf("error checking scratch directory: %w", err)
	}
	if !info.IsDir() {
		w.logger.Error(fmt.Sprintf("Scratch path is not a directory: %s", outputDir))
		return fmt.Errorf("scratch path is not a directory: %s", outputDir)
	}
	w.logger.Debug(fmt.Sprintf("Scratch directory validated: %s", outputDir))
	return nil
}

func (w *FileWriter) messageDir(email *interfaces.EmailMessage) string {
	ts := w.messageTime(email).UTC()
	return filepath.Join(w.root, ts.Format("2006"), ts.Format("01"), email.ID)
}

func (w *FileWriter) AttachmentPath(email *interfaces.EmailMessage, filename string) string {
	return filepath.Join(w.messageDir(email), "attachments", filename)
}

func (w *FileWriter) MessagePath(email *interfaces.EmailMessage) string {
	return filepath.Join(w.messageDir(email), email.ID+".json")
}

// WriteAttachment writes data under the message's attachments directory,
// overwriting any previous file with the same name.
func (w *FileWriter) WriteAttachment(email *interfaces.EmailMessage, attachment interfaces.Attachment, data []byte) (string, error) {
	filename := SanitizeFilename(attachment.Filename, "attachment")
	path := w.AttachmentPath(email, filename)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create attachment folder: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write attachment %s: %w", filename, err)
	}
	w.logger.Debug(fmt.Sprintf("Wrote attachment: %s (%d bytes)", path, len(data)))
	return path, nil
}

// WriteMessage dumps the full message (headers, bodies, attachment metadata) as JSON.
func (w *FileWriter) WriteMessage(email *interfaces.EmailMessage) (string, error) {
	path := w.MessagePath(email)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create email folder: %w", err)
	}
	data, err := json.MarshalIndent(email, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode message %s: %w", email.ID, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write message dump: %w", err)
	}
	w.logger.Debug(fmt.Sprintf("Wrote email %s to %s", email.ID, path))
	return path, nil
}

// RelativeKey strips the scratch root from localPath and returns a
// slash-separated key suitable for the object store.
func (w *FileWriter) RelativeKey(localPath string) (string, error) {
	rel, err := filepath.Rel(w.root, filepath.Clean(localPath))
	if err != nil {
		return "", fmt.Errorf("path %s is not under %s: %w", localPath, w.root, err)
	}
	if rel == "." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == ".." {
		return "", fmt.Errorf("path %s is not under %s", localPath, w.root)
	}
	return filepath.ToSlash(rel), nil
}

func (w *FileWriter) messageTime(email *interfaces.EmailMessage) time.Time {
	if !email.Timestamp.IsZero() {
		return email.Timestamp
	}
	return w.parseEmailDate(email.Date)
}

func (w *FileWriter) parseEmailDate(dateStr string) time.Time {
	cleanDateStr := dateComment.ReplaceAllString(dateStr, "")

	formats := []string{
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"Mon, 02 Jan 2006 15:04:05 -0700",
		"2 Jan 2006 15:04:05 -0700",
		"02 Jan 2006 15:04:05 -0700",
		"Mon, 2 Jan 2006 15:04:05 MST",
		time.RFC1123Z,
		time.RFC1123,
		time.RFC3339,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, cleanDateStr); err == nil {
			return t
		}
	}

	w.logger.Warn(fmt.Sprintf("Could not parse date '%s', using current time", dateStr))
	return time.Now()
}

// SanitizeFilename keeps letters, digits, '.', '_' and '-' in any script,
// collapses whitespace into dashes and strips leading dots. The extension is
// cleaned separately so it survives; an empty stem becomes fallback.
// Applying it twice gives the same result.
func SanitizeFilename(name, fallback string) string {
	ext := filepath.Ext(name)
	stem := cleanFilenamePart(strings.TrimSuffix(name, ext))
	ext = cleanFilenamePart(strings.TrimPrefix(ext, "."))
	if stem == "" {
		stem = cleanFilenamePart(fallback)
	}
	if ext == "" {
		return stem
	}
	return stem + "." + ext
}

func cleanFilenamePart(s string) string {
	cleaned := invalidFilenameChars.ReplaceAllString(s, "")
	cleaned = whitespaceRun.ReplaceAllString(cleaned, "-")
	cleaned = dashRun.ReplaceAllString(cleaned, "-")
	// never let a filename climb out of the attachments directory
	cleaned = strings.TrimLeft(cleaned, ".-")
	return strings.TrimRight(cleaned, "-")
}
