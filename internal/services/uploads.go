package services

import (
	"archive/zip"
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
	"golang.org/x/crypto/blake2b"

	"studyai-backend/internal/models"
)

const previewRunes = 500

// UploadStore keeps workspace uploads on local disk under <root>/<user dir>/<id><ext>.
type UploadStore struct {
	root     string
	maxBytes int64
}

func NewUploadStore(root string, maxBytes int64) *UploadStore {
	return &UploadStore{root: root, maxBytes: maxBytes}
}

// Save writes the upload to disk and returns its metadata. Documents get a
// short text preview when the format is one we can read.
func (s *UploadStore) Save(userID string, kind models.UploadKind, filename, mimeType string, r io.Reader) (models.UploadedFile, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return models.UploadedFile{}, fieldError("file", "file name is required")
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		if guessed := mime.TypeByExtension(filepath.Ext(filename)); guessed != "" {
			mimeType = guessed
		}
	}

	switch kind {
	case models.UploadDocument:
	case models.UploadMedia:
		if !isMediaType(mimeType) {
			return models.UploadedFile{}, fieldError("file", "media uploads must be images or videos")
		}
	default:
		return models.UploadedFile{}, fieldError("kind", "kind must be document or media")
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return models.UploadedFile{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return models.UploadedFile{}, fieldError("file", fmt.Sprintf("file exceeds %d MB limit", s.maxBytes/(1024*1024)))
	}
	if len(data) == 0 {
		return models.UploadedFile{}, fieldError("file", "file is empty")
	}

	sum := blake2b.Sum256(data)
	f := models.UploadedFile{
		ID:         uuid.New(),
		Name:       filename,
		MimeType:   mimeType,
		Size:       int64(len(data)),
		Kind:       kind,
		Checksum:   hex.EncodeToString(sum[:]),
		UploadedAt: time.Now().UTC(),
	}
	f.URL = fmt.Sprintf("/api/v1/workspace/files/%s/content", f.ID)

	path := s.Path(userID, f)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return models.UploadedFile{}, fmt.Errorf("create upload dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return models.UploadedFile{}, fmt.Errorf("write upload: %w", err)
	}

	if kind == models.UploadDocument {
		if text, err := ExtractTextFromPath(path); err == nil {
			f.Preview = truncateRunes(text, previewRunes)
		}
	}
	return f, nil
}

// Path is where the bytes of f live for userID.
func (s *UploadStore) Path(userID string, f models.UploadedFile) string {
	return filepath.Join(s.userDir(userID), f.ID.String()+strings.ToLower(filepath.Ext(f.Name)))
}

// userDir names the directory by a digest of the user id, so no token subject
// can address a path outside the root.
func (s *UploadStore) userDir(userID string) string {
	sum := blake2b.Sum256([]byte(userID))
	return filepath.Join(s.root, hex.EncodeToString(sum[:16]))
}

func (s *UploadStore) Open(userID string, f models.UploadedFile) (*os.File, error) {
	return os.Open(s.Path(userID, f))
}

func (s *UploadStore) Remove(userID string, f models.UploadedFile) error {
	err := os.Remove(s.Path(userID, f))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// RemoveAll drops every upload belonging to userID.
func (s *UploadStore) RemoveAll(userID string) error {
	return os.RemoveAll(s.userDir(userID))
}

func isMediaType(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/") || strings.HasPrefix(mimeType, "video/")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}

// ExtractTextFromPath reads plain text out of .txt, .pdf and .docx files.
func ExtractTextFromPath(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".txt", ".md":
		return extractTXT(path)
	case ".pdf":
		return extractPDF(path)
	case ".docx":
		return extractDOCX(path)
	default:
		return "", fmt.Errorf("unsupported file type for text extraction: %s", ext)
	}
}

func extractTXT(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	text := normalizeExtractedText(string(b))
	if text == "" {
		return "", fmt.Errorf("text file is empty")
	}

	return text, nil
}

func extractPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var b strings.Builder
	totalPage := reader.NumPage()
	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(content)
		b.WriteString("\n")
	}

	text := normalizeExtractedText(b.String())
	if text == "" {
		return "", fmt.Errorf("no extractable text found in pdf")
	}

	return text, nil
}

func extractDOCX(path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", err
	}
	defer r.Close()

	var documentXML []byte
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			if err != nil {
				return "", err
			}
			defer rc.Close()

			documentXML, err = io.ReadAll(rc)
			if err != nil {
				return "", err
			}
			break
		}
	}

	if len(documentXML) == 0 {
		return "", fmt.Errorf("docx document.xml not found")
	}

	text := stripDOCXML(documentXML)
	text = normalizeExtractedText(text)
	if text == "" {
		return "", fmt.Errorf("no extractable text found in docx")
	}

	return text, nil
}

var xmlTagPattern = regexp.MustCompile(`<[^>]+>`)

func stripDOCXML(src []byte) string {
	s := string(src)

	// DOCX paragraphs and line breaks
	s = strings.ReplaceAll(s, "</w:p>", "\n")
	s = strings.ReplaceAll(s, "<w:br/>", "\n")
	s = strings.ReplaceAll(s, "<w:br />", "\n")
	s = strings.ReplaceAll(s, "<w:tab/>", "\t")

	// Remove all xml tags
	s = xmlTagPattern.ReplaceAllString(s, "")

	// Basic XML entities
	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&apos;", "'",
	)
	s = replacer.Replace(s)

	return s
}

func normalizeExtractedText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	buf := bytes.Buffer{}

	emptyCount := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			emptyCount++
			if emptyCount > 1 {
				continue
			}
			buf.WriteString("\n")
			continue
		}
		emptyCount = 0
		buf.WriteString(trimmed)
		buf.WriteString("\n")
	}

	return strings.TrimSpace(buf.String())
}

