package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/nfnt/resize"
	"github.com/rs/zerolog/log"

	"github.com/fitpair/coachlink/config"
	"github.com/fitpair/coachlink/models"
)

const (
	attachmentFolder = "attachments"
	thumbnailFolder  = "thumbnails"
	maxUploadBytes   = 25 << 20

	thumbnailWidth = 320
	feedWidth      = 1080
	feedHeight     = 1080
)

// MediaService is the blob-store collaborator: it stores an uploaded file
// and returns the attachment descriptor carried on messages.
type MediaService interface {
	UploadAttachment(ctx context.Context, fileHeader *multipart.FileHeader) (*models.Attachment, error)
}

type mediaService struct {
	client *s3.Client
	conf   *config.Config
}

func NewMediaService(client *s3.Client, conf *config.Config) MediaService {
	return &mediaService{
		client: client,
		conf:   conf,
	}
}

// NewS3Client builds the S3 client from static credentials in config.
func NewS3Client(ctx context.Context, conf *config.Config) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(conf.AWSRegion),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(conf.AWSAccessKeyID, conf.AWSSecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(cfg), nil
}

func (m *mediaService) UploadAttachment(ctx context.Context, fileHeader *multipart.FileHeader) (*models.Attachment, error) {
	if fileHeader.Size > maxUploadBytes {
		return nil, fmt.Errorf("file exceeds the %d byte upload limit", maxUploadBytes)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %v", err)
	}
	defer file.Close()

	buf, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %v", err)
	}

	mime := mimetype.Detect(buf)
	storageID := uuid.New().String() + filepath.Ext(fileHeader.Filename)
	key := attachmentFolder + "/" + storageID

	if err := m.putObject(ctx, key, buf, mime.String()); err != nil {
		return nil, fmt.Errorf("failed to upload file: %v", err)
	}

	if strings.HasPrefix(mime.String(), "image/") {
		// Thumbnail failure is not fatal; the original already landed.
		if err := m.uploadThumbnails(ctx, storageID, buf); err != nil {
			log.Warn().Err(err).Str("storage_id", storageID).Msg("could not generate thumbnails")
		}
	}

	return &models.Attachment{
		URL:       m.objectURL(key),
		StorageID: storageID,
		Filename:  fileHeader.Filename,
		MimeType:  mime.String(),
		Size:      fileHeader.Size,
	}, nil
}

func (m *mediaService) uploadThumbnails(ctx context.Context, storageID string, buf []byte) error {
	img, _, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		return err
	}

	thumb := resize.Resize(thumbnailWidth, 0, img, resize.Lanczos3)
	feed := imaging.Fit(img, feedWidth, feedHeight, imaging.Lanczos)

	for suffix, variant := range map[string]image.Image{"thumb": thumb, "feed": feed} {
		var out bytes.Buffer
		if err := imaging.Encode(&out, variant, imaging.JPEG); err != nil {
			return err
		}
		key := fmt.Sprintf("%s/%s_%s.jpg", thumbnailFolder, storageID, suffix)
		if err := m.putObject(ctx, key, out.Bytes(), "image/jpeg"); err != nil {
			return err
		}
	}
	return nil
}

func (m *mediaService) putObject(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.conf.S3Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	return err
}

func (m *mediaService) objectURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", m.conf.S3Bucket, m.conf.AWSRegion, key)
}

// AttachmentKind maps a mime type onto the message kind it implies.
func AttachmentKind(mimeType string) string {
	if strings.HasPrefix(mimeType, "image/") {
		return models.MessageKindImage
	}
	return models.MessageKindDocument
}
