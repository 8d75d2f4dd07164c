package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"regexp"
	"strconv"
	"strings"

	"scdl/types"

	"github.com/dhowden/tag"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

var (
	ErrFileNotFound        = errors.New("file not found")
	ErrExtensionNotAllowed = errors.New("file type not allowed")
)

// AudioExtensions lists the result file types the service hands out
var AudioExtensions = []string{".mp3", ".m4a", ".opus", ".flac", ".wav", ".ogg"}

var trackPrefix = regexp.MustCompile(`^(\d+)[\.\-\s]+(.+)`)

// FileService interface defines methods for result file management
type FileService interface {
	ScanAudioFiles(ctx context.Context, prefix string) ([]types.FileDescriptor, error)
	Open(ctx context.Context, filePath string) (*blob.Reader, error)
	RemoveAll(ctx context.Context, prefix string) (int, error)
	ValidateFilePath(filePath string) error
	GetContentType(filePath string) string
}

// fileService implements the FileService interface on top of a bucket
// whose keys are "<download id>/<relative path>"
type fileService struct {
	bucket *blob.Bucket
}

// NewFileService creates a new file service
func NewFileService(bucket *blob.Bucket) FileService {
	return &fileService{bucket: bucket}
}

// ScanAudioFiles lists the audio files stored under prefix, with metadata
func (fs *fileService) ScanAudioFiles(ctx context.Context, prefix string) ([]types.FileDescriptor, error) {
	var files []types.FileDescriptor

	iter := fs.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
		}

		if obj.IsDir || !IsAudioFile(obj.Key) {
			continue
		}

		files = append(files, types.FileDescriptor{
			Path:     obj.Key,
			Name:     path.Base(obj.Key),
			Size:     obj.Size,
			Metadata: fs.extractAudioMetadata(ctx, obj.Key),
		})
	}

	return files, nil
}

// Open validates filePath and opens it for reading
func (fs *fileService) Open(ctx context.Context, filePath string) (*blob.Reader, error) {
	if err := fs.ValidateFilePath(filePath); err != nil {
		return nil, err
	}
	if !IsAudioFile(filePath) {
		return nil, ErrExtensionNotAllowed
	}

	r, err := fs.bucket.NewReader(ctx, filePath, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	return r, nil
}

// RemoveAll deletes every object under prefix and reports how many went
func (fs *fileService) RemoveAll(ctx context.Context, prefix string) (int, error) {
	if strings.TrimSpace(prefix) == "" {
		return 0, fmt.Errorf("empty prefix not allowed")
	}

	removed := 0
	iter := fs.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return removed, err
		}
		if obj.IsDir {
			continue
		}

		if err := fs.bucket.Delete(ctx, obj.Key); err != nil && gcerrors.Code(err) != gcerrors.NotFound {
			return removed, fmt.Errorf("failed to delete %s: %w", obj.Key, err)
		}
		removed++
	}

	return removed, nil
}

// GetContentType returns the appropriate MIME type for an audio file
func (fs *fileService) GetContentType(filePath string) string {
	switch strings.ToLower(path.Ext(filePath)) {
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".opus":
		return "audio/opus"
	case ".flac":
		return "audio/flac"
	case ".wav":
		return "audio/wav"
	case ".ogg":
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}

// ValidateFilePath checks for path traversal attempts and other security issues
func (fs *fileService) ValidateFilePath(filePath string) error {
	if strings.TrimSpace(filePath) == "" {
		return fmt.Errorf("empty path not allowed")
	}

	if strings.HasPrefix(filePath, "/") || strings.HasPrefix(filePath, "\\") {
		return fmt.Errorf("absolute paths not allowed")
	}

	for _, part := range strings.FieldsFunc(filePath, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return fmt.Errorf("path traversal not allowed")
		}
	}

	return nil
}

// IsAudioFile reports whether name has one of the served extensions
func IsAudioFile(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, allowed := range AudioExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// extractAudioMetadata reads tags with a path-based fallback for missing fields
func (fs *fileService) extractAudioMetadata(ctx context.Context, key string) *types.AudioMetadata {
	r, err := fs.bucket.NewReader(ctx, key, nil)
	if err != nil {
		log.Printf("Warning: Could not open audio file %s: %v", key, err)
		return extractMetadataFromPath(key)
	}
	defer r.Close()

	meta, err := tag.ReadFrom(r)
	if err != nil {
		return extractMetadataFromPath(key)
	}

	metadata := &types.AudioMetadata{
		Title:  meta.Title(),
		Artist: meta.Artist(),
		Album:  meta.Album(),
	}
	metadata.TrackNumber, _ = meta.Track()

	if metadata.Title == "" || metadata.Album == "" || metadata.TrackNumber == 0 {
		fallback := extractMetadataFromPath(key)
		if metadata.Title == "" {
			metadata.Title = fallback.Title
		}
		if metadata.Album == "" {
			metadata.Album = fallback.Album
		}
		if metadata.TrackNumber == 0 {
			metadata.TrackNumber = fallback.TrackNumber
		}
	}

	return metadata
}

// extractMetadataFromPath derives metadata from a key shaped like
// "<id>/<playlist>/<NN - title>.<ext>" or "<id>/<title>.<ext>"
func extractMetadataFromPath(key string) *types.AudioMetadata {
	metadata := &types.AudioMetadata{}

	parts := strings.Split(key, "/")
	if len(parts) >= 3 {
		metadata.Album = parts[len(parts)-2]
	}

	filename := path.Base(key)
	title := strings.TrimSuffix(filename, path.Ext(filename))

	if matches := trackPrefix.FindStringSubmatch(title); len(matches) > 2 {
		title = matches[2]
		if trackNum, err := strconv.Atoi(matches[1]); err == nil {
			metadata.TrackNumber = trackNum
		}
	}

	metadata.Title = title
	return metadata
}
