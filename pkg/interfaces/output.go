package interfaces

// OutputWriter owns the scratch directory layout:
// {root}/{YYYY}/{MM}/{id}/attachments/{filename} and {root}/{YYYY}/{MM}/{id}/{id}.json.
type OutputWriter interface {
	ValidateOutputDir(outputDir string) error
	Root() string
	AttachmentPath(email *EmailMessage, filename string) string
	MessagePath(email *EmailMessage) string
	WriteAttachment(email *EmailMessage, attachment Attachment, data []byte) (string, error)
	WriteMessage(email *EmailMessage) (string, error)
	RelativeKey(localPath string) (string, error)
}
